// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
)

// MinTick is the floor of the scheduler tick.
const MinTick = 50 * time.Millisecond

// Config is the runtime config the scheduler needs.
type Config struct {
	Cards       []*cards.Descriptor
	DefaultRate time.Duration // used by cards with no poll rate of their own
	MinTick     time.Duration

	// OnCycle, when set, receives the summary of every cycle.
	OnCycle func(CycleResult)
}

// Poller reads every participating card at its own rate.
// Cards are visited in configuration order. Overlapping cycles never run.
type Poller struct {
	cfg   Config
	exec  Executor
	cards []*cards.Descriptor // pollable only
	tick  time.Duration

	mu       sync.Mutex // serializes cycles, guards lastPoll
	lastPoll map[int]time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, exec Executor) (*Poller, error) {
	if exec == nil {
		return nil, errors.New("poller: executor required")
	}
	if cfg.DefaultRate <= 0 {
		return nil, errors.New("poller: default rate must be > 0")
	}
	if cfg.MinTick < MinTick {
		cfg.MinTick = MinTick
	}

	p := &Poller{
		cfg:      cfg,
		exec:     exec,
		lastPoll: make(map[int]time.Time),
	}
	for _, c := range cfg.Cards {
		if c.Pollable {
			p.cards = append(p.cards, c)
		}
	}
	p.tick = p.computeTick()
	return p, nil
}

func (p *Poller) rate(c *cards.Descriptor) time.Duration {
	if c.PollRate > 0 {
		return c.PollRate
	}
	return p.cfg.DefaultRate
}

// computeTick is the smallest participating rate, floored at MinTick.
func (p *Poller) computeTick() time.Duration {
	tick := p.cfg.DefaultRate
	for i, c := range p.cards {
		if r := p.rate(c); i == 0 || r < tick {
			tick = r
		}
	}
	if tick < p.cfg.MinTick {
		tick = p.cfg.MinTick
	}
	return tick
}

// Tick returns the scheduler tick interval.
func (p *Poller) Tick() time.Duration {
	return p.tick
}

// Cards returns the participating cards in configuration order.
func (p *Poller) Cards() []*cards.Descriptor {
	return p.cards
}

// LastPoll returns when the card was last read.
func (p *Poller) LastPoll(card *cards.Descriptor) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastPoll[card.Index]
	return t, ok
}

// due reports whether the card's rate has elapsed. A tenth of a tick of
// slack absorbs ticker jitter; it can never advance a read by a whole tick.
// Caller holds mu.
func (p *Poller) due(c *cards.Descriptor, now time.Time) bool {
	last, ok := p.lastPoll[c.Index]
	if !ok {
		return true
	}
	return now.Sub(last)+p.tick/10 >= p.rate(c)
}

// PollOnce performs one cycle: one read per due card.
// A failed read yields error readings for that card only; the cycle goes on.
func (p *Poller) PollOnce(ctx context.Context, now time.Time) []decode.Reading {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := CycleResult{At: now}
	var out []decode.Reading

	for _, c := range p.cards {
		if ctx.Err() != nil {
			break
		}
		if !p.due(c, now) {
			continue
		}
		p.lastPoll[c.Index] = now
		res.Polled++

		window, err := Read(ctx, p.exec, BlockFor(c))
		var rs []decode.Reading
		if err != nil {
			res.Failed = append(res.Failed, CardError{Card: c, Err: err})
			rs = decode.ErrorReadings(c, err)
		} else {
			rs = decode.Decode(c, window)
		}
		decode.Stamp(rs, now)
		out = append(out, rs...)
	}

	if p.cfg.OnCycle != nil && res.Polled > 0 {
		p.cfg.OnCycle(res)
	}
	return out
}
