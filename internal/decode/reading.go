// internal/decode/reading.go
package decode

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// State is the per-channel outcome of a decode.
type State string

const (
	StateOK         State = "ok"
	StateInvalid    State = "invalid"
	StateMissing    State = "missing"
	StateOutOfRange State = "out_of_range"
	StateAdapting   State = "adapting"
	StateError      State = "error" // read failed, no data
)

// Word is one raw register or coil value. Valid is false when the source
// delivered something that is not a 16-bit number.
type Word struct {
	Value uint16
	Valid bool
}

// W is shorthand for a valid word.
func W(v uint16) Word { return Word{Value: v, Valid: true} }

// FromRegisters wraps register values read from the device.
func FromRegisters(regs []uint16) []Word {
	out := make([]Word, len(regs))
	for i, r := range regs {
		out[i] = W(r)
	}
	return out
}

// FromBits wraps coil or discrete-input values read from the device.
func FromBits(bits []bool) []Word {
	out := make([]Word, len(bits))
	for i, b := range bits {
		if b {
			out[i] = W(1)
		} else {
			out[i] = W(0)
		}
	}
	return out
}

// ParseWords converts a loosely typed window (e.g. a decoded JSON array)
// into words. Numbers in [-32768, 65535], numeric strings and booleans are
// valid; negative values are stored in two's complement.
func ParseWords(raw []any) []Word {
	out := make([]Word, len(raw))
	for i, v := range raw {
		out[i] = parseWord(v)
	}
	return out
}

func parseWord(v any) Word {
	var f float64
	switch x := v.(type) {
	case bool:
		if x {
			return W(1)
		}
		return W(0)
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint16:
		return W(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Word{}
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return Word{}
		}
		f = n
	default:
		return Word{}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < -32768 || f > 65535 {
		return Word{}
	}
	if f < 0 {
		return W(uint16(int16(f)))
	}
	return W(uint16(f))
}

// Signed interprets a word as a 16-bit two's-complement integer.
func Signed(v uint16) int {
	n := int(v)
	if n >= 32768 {
		n -= 65536
	}
	return n
}

// VoltRange is the band used for percent scaling.
type VoltRange struct {
	MinV float64 `json:"minV"`
	MaxV float64 `json:"maxV"`
}

// Reading is one decoded channel. Ephemeral: produced per poll or read-back.
type Reading struct {
	Card      string `json:"card,omitempty"`
	Type      string `json:"type"`
	Topic     string `json:"topic"`
	CardIndex int    `json:"cardIndex"`
	Channel   int    `json:"channel"` // 1-based
	Index     int    `json:"index"`   // window index of the data word
	State     State  `json:"state"`

	// digital
	Value *bool `json:"value,omitempty"`

	Raw        *int    `json:"raw,omitempty"` // signed data word
	StatusWord *uint16 `json:"statusWord,omitempty"`
	Unit       string  `json:"unit,omitempty"`

	// temperature
	Celsius       *float64 `json:"celsius,omitempty"`
	Fahrenheit    *float64 `json:"fahrenheit,omitempty"`
	Resistance    *float64 `json:"resistance,omitempty"`
	SensorType    string   `json:"sensorType,omitempty"`
	SensorState   *int     `json:"sensorState,omitempty"`
	SensorMessage string   `json:"sensorMessage,omitempty"`
	Scaled        *float64 `json:"scaled,omitempty"`
	ScaledUnit    string   `json:"scaledUnit,omitempty"`
	Alarms        *Alarms  `json:"alarms,omitempty"`

	// voltage
	Volts   *float64   `json:"volts,omitempty"`
	Percent *float64   `json:"percent,omitempty"`
	Range   *VoltRange `json:"range,omitempty"`

	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func ptr[T any](v T) *T { return &v }
