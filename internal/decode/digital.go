// internal/decode/digital.go
package decode

import "github.com/tamzrod/coupler-io/internal/cards"

// Digital maps each bit 1:1 to a channel. value = raw != 0.
func Digital(window []Word, s cards.Settings) []Reading {
	out := make([]Reading, s.Channels)
	for ch := 0; ch < s.Channels; ch++ {
		r := Reading{Channel: ch + 1, Index: ch}

		switch {
		case ch >= len(window):
			r.State = StateMissing
		case !window[ch].Valid:
			r.State = StateInvalid
		default:
			raw := int(window[ch].Value)
			r.State = StateOK
			r.Raw = &raw
			r.Value = ptr(raw != 0)
		}

		out[ch] = r
	}
	return out
}
