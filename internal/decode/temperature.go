// internal/decode/temperature.go
package decode

import (
	"fmt"

	"github.com/tamzrod/coupler-io/internal/cards"
)

// Sensor state codes reported in the status word.
const (
	SensorOK           = 0
	SensorNotConnected = 65
	SensorUnconfigured = 66
)

var sensorMessages = map[int]string{
	SensorOK:           "OK - Sensor connected",
	SensorNotConnected: "No sensor connected",
	SensorUnconfigured: "Unconfigured",
}

// SensorMessage maps a status word to its text.
func SensorMessage(code int) string {
	if msg, ok := sensorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown state: %d", code)
}

// Temperature decodes status/data pairs. The data word is hundredths of a
// degree (or of an ohm for res_* sensors) in two's complement.
// The range state and the sensor state are reported side by side.
func Temperature(window []Word, s cards.Settings) []Reading {
	dataOff, statusOff := s.WordOrder.Offsets()
	wpc := s.WordsPerChannel
	if wpc < 1 {
		wpc = 1
	}

	out := make([]Reading, s.Channels)
	for ch := 0; ch < s.Channels; ch++ {
		base := ch * wpc
		dataIdx := base + dataOff

		sensor := cards.Sensor{Name: cards.DefaultSensor}
		if ch < len(s.Sensors) {
			sensor = s.Sensors[ch]
		}

		r := Reading{
			Channel:    ch + 1,
			Index:      dataIdx,
			SensorType: sensor.Name,
			Unit:       s.Units,
		}

		if statusOff >= 0 {
			if idx := base + statusOff; idx < len(window) && window[idx].Valid {
				code := int(window[idx].Value)
				r.StatusWord = ptr(window[idx].Value)
				r.SensorState = &code
				r.SensorMessage = SensorMessage(code)
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
		r.Raw = &raw
		measured := float64(raw) / 100

		if sensor.Resistance {
			r.Resistance = ptr(round(measured, s.Decimals))
			r.Unit = "Ω"
		} else {
			r.Celsius = ptr(round(measured, s.Decimals))
			r.Fahrenheit = ptr(round(measured*9/5+32, s.Decimals))
		}

		if measured < sensor.Min || measured > sensor.Max {
			r.State = StateOutOfRange
		} else {
			r.State = StateOK
		}

		if s.Scale != nil {
			r.Scaled = ptr(round(s.Scale.Apply(float64(window[dataIdx].Value)), s.Decimals))
			r.ScaledUnit = s.Scale.Units
		}
		if ch < len(s.Limits) {
			if v, ok := r.Measured(); ok {
				r.Alarms = EvaluateAlarms(v, s.Limits[ch])
			}
		}

		out[ch] = r
	}
	return out
}

// ---- alarms ----

// Alarms flags a measured value outside the channel limits.
type Alarms struct {
	Low  bool `json:"low"`
	High bool `json:"high"`
}

// EvaluateAlarms compares v against l. Nil when l has no threshold.
func EvaluateAlarms(v float64, l cards.Limits) *Alarms {
	if !l.Set() {
		return nil
	}
	return &Alarms{
		Low:  l.Low != nil && v < *l.Low,
		High: l.High != nil && v > *l.High,
	}
}

// Measured returns the value alarms and smoothing act on: the scaled value
// when the card has a scale, otherwise celsius or ohms.
func (r *Reading) Measured() (float64, bool) {
	switch {
	case r.Scaled != nil:
		return *r.Scaled, true
	case r.Celsius != nil:
		return *r.Celsius, true
	case r.Resistance != nil:
		return *r.Resistance, true
	}
	return 0, false
}

// SetMeasured replaces the field Measured reads. Fahrenheit follows celsius.
func (r *Reading) SetMeasured(v float64, decimals int) {
	switch {
	case r.Scaled != nil:
		r.Scaled = ptr(round(v, decimals))
	case r.Celsius != nil:
		r.Celsius = ptr(round(v, decimals))
		r.Fahrenheit = ptr(round(v*9/5+32, decimals))
	case r.Resistance != nil:
		r.Resistance = ptr(round(v, decimals))
	}
}
