// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/config"
)

// Build constructs a Poller over the registry's cards.
// The executor owns the session lifecycle; the poller never dials.
func Build(pc config.PollConfig, reg *cards.Registry, exec Executor, onCycle func(CycleResult)) (*Poller, error) {
	return New(
		Config{
			Cards:       reg.Cards(),
			DefaultRate: time.Duration(pc.IntervalMs) * time.Millisecond,
			MinTick:     time.Duration(pc.MinTickMs) * time.Millisecond,
			OnCycle:     onCycle,
		},
		exec,
	)
}
