// internal/decode/voltage.go
package decode

import (
	"math"

	"github.com/tamzrod/coupler-io/internal/cards"
)

// Voltage decodes one signed data word per channel into volts and a
// percentage of the configured band.
func Voltage(window []Word, s cards.Settings) []Reading {
	dataOff, statusOff := s.WordOrder.Offsets()
	wpc := s.WordsPerChannel
	if wpc < 1 {
		wpc = 1
	}
	band := &VoltRange{MinV: s.Band.MinV, MaxV: s.Band.MaxV}

	out := make([]Reading, s.Channels)
	for ch := 0; ch < s.Channels; ch++ {
		base := ch * wpc
		dataIdx := base + dataOff

		r := Reading{Channel: ch + 1, Index: dataIdx, Unit: s.Units}

		if statusOff >= 0 {
			if idx := base + statusOff; idx < len(window) && window[idx].Valid {
				r.StatusWord = ptr(window[idx].Value)
			}
		}

		switch {
		case dataIdx >= len(window):
			r.State = StateMissing
			out[ch] = r
			continue
		case !window[dataIdx].Valid:
			r.State = StateInvalid
			out[ch] = r
			continue
		}

		raw := Signed(window[dataIdx].Value)
		volts := float64(raw) / s.RawMax * s.FullScaleV

		r.Raw = &raw
		r.Volts = ptr(round(volts, 3))
		r.Range = band

		if Adapting(raw, s) {
			r.State = StateAdapting
		} else {
			r.State = StateOK
			r.Percent = Percent(volts, s.Band, s.Decimals)
		}

		out[ch] = r
	}
	return out
}

// Adapting reports whether raw sits inside the self-calibration window.
// The window is closed: |raw-adaptRaw| <= tol.
func Adapting(raw int, s cards.Settings) bool {
	if !s.Adaptation {
		return false
	}
	d := raw - s.AdaptRaw
	if d < 0 {
		d = -d
	}
	return d <= s.AdaptTol
}

// Percent scales volts into the band, clamped to [0,100].
// Returns nil for a degenerate band.
func Percent(volts float64, b cards.Band, decimals int) *float64 {
	if b.MaxV <= b.MinV {
		return nil
	}
	p := (volts - b.MinV) / (b.MaxV - b.MinV) * 100
	p = math.Max(0, math.Min(100, p))
	return ptr(round(p, decimals))
}
