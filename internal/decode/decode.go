// internal/decode/decode.go
package decode

import (
	"time"

	"github.com/tamzrod/coupler-io/internal/cards"
)

// Decode selects the decoder by card family and stamps card identity on
// every reading. Pure: the same window and card give the same readings.
func Decode(card *cards.Descriptor, window []Word) []Reading {
	var out []Reading

	switch card.Type.Family {
	case cards.FamilyDigitalInput, cards.FamilyDigitalOutput:
		out = Digital(window, card.Settings)
	case cards.FamilyAnalogTemperature:
		out = Temperature(window, card.Settings)
	case cards.FamilyAnalogVoltage:
		out = Voltage(window, card.Settings)
	default:
		out = make([]Reading, card.Channels)
		for ch := range out {
			out[ch] = Reading{Channel: ch + 1, Index: ch, State: StateInvalid}
		}
	}

	for i := range out {
		stamp(&out[i], card)
	}
	return out
}

// ErrorReadings builds one error-shaped reading per channel of a card
// whose read failed.
func ErrorReadings(card *cards.Descriptor, err error) []Reading {
	out := make([]Reading, card.Channels)
	for ch := range out {
		out[ch] = Reading{Channel: ch + 1, Index: ch, State: StateError}
		if err != nil {
			out[ch].Error = err.Error()
		}
		stamp(&out[ch], card)
	}
	return out
}

// Stamp sets the event time on a batch of readings.
func Stamp(rs []Reading, at time.Time) {
	for i := range rs {
		rs[i].At = at
	}
}

func stamp(r *Reading, card *cards.Descriptor) {
	r.Card = card.Label
	r.Type = card.Type.Name
	r.Topic = card.Topic()
	r.CardIndex = card.Index
}
