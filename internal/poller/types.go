// internal/poller/types.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/transport"
)

// Executor runs requests against the shared coupler session.
// *transport.Manager satisfies it.
type Executor interface {
	Do(ctx context.Context, fn func(transport.Client) error) error
	State() transport.State
}

// ReadBlock describes one Modbus read geometry.
// Geometry only: no semantics.
type ReadBlock struct {
	Kind     cards.Kind
	Address  uint16
	Quantity uint16
}

// BlockFor returns the read geometry of a card's full range.
func BlockFor(card *cards.Descriptor) ReadBlock {
	return ReadBlock{Kind: card.Kind, Address: card.Start, Quantity: card.Quantity}
}

// CardError is one failed card read inside a cycle.
type CardError struct {
	Card *cards.Descriptor
	Err  error
}

// CycleResult summarizes one PollOnce call.
type CycleResult struct {
	At     time.Time
	Polled int // cards read, successful or not
	Failed []CardError
}

// Err returns the first card error of the cycle, if any.
func (c CycleResult) Err() error {
	if len(c.Failed) == 0 {
		return nil
	}
	return c.Failed[0].Err
}
