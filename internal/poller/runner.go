// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/transport"
)

// Run starts the ticker loop and emits each channel reading as its own
// event on out. Ticks are skipped while the session is not connected.
// No overlap. No retries.
func (p *Poller) Run(ctx context.Context, out chan<- decode.Reading) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if p.exec.State() != transport.Connected {
				continue
			}
			for _, r := range p.PollOnce(ctx, now) {
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
