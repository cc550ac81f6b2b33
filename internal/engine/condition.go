// internal/engine/condition.go
package engine

import (
	"math"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
)

// conditioner smooths and deadbands measured values per channel.
// Not safe for concurrent use; the engine calls it under mu.
type conditioner struct {
	filtered map[channelKey]float64
	held     map[channelKey]float64
}

func newConditioner() *conditioner {
	return &conditioner{
		filtered: make(map[channelKey]float64),
		held:     make(map[channelKey]float64),
	}
}

// apply runs the low-pass filter then the deadband on r's measured value,
// then re-evaluates the alarms against the value that goes out.
// Readings without a measured value pass through and leave the state alone.
func (c *conditioner) apply(card *cards.Descriptor, r *decode.Reading) {
	s := card.Settings
	if s.FilterTau <= 0 && s.Deadband <= 0 {
		return
	}
	x, ok := r.Measured()
	if !ok {
		return
	}
	k := channelKey{r.CardIndex, r.Channel}

	y := x
	if s.FilterTau > 0 {
		prev, seen := c.filtered[k]
		if !seen {
			prev = x
		}
		y = prev + (x-prev)/math.Max(1, s.FilterTau)
		c.filtered[k] = y
	}

	out := y
	if last, seen := c.held[k]; seen && math.Abs(y-last) < s.Deadband {
		out = last
	} else {
		c.held[k] = y
	}

	r.SetMeasured(out, s.Decimals)
	if i := r.Channel - 1; i >= 0 && i < len(s.Limits) {
		if v, ok := r.Measured(); ok {
			r.Alarms = decode.EvaluateAlarms(v, s.Limits[i])
		}
	}
}
