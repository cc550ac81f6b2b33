// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/poller"
	"github.com/tamzrod/coupler-io/internal/transport"
)

// Dispatcher turns write commands into single-coil writes on output cards.
// All protocol traffic goes through the shared executor.
type Dispatcher struct {
	outputs []*cards.Descriptor
	exec    poller.Executor
	log     zerolog.Logger
	now     func() time.Time
}

func New(outputs []*cards.Descriptor, exec poller.Executor, log zerolog.Logger) (*Dispatcher, error) {
	if exec == nil {
		return nil, errors.New("writer: executor required")
	}
	return &Dispatcher{
		outputs: outputs,
		exec:    exec,
		log:     log,
		now:     time.Now,
	}, nil
}

// Outputs returns the addressable output cards.
func (d *Dispatcher) Outputs() []*cards.Descriptor {
	return d.outputs
}

// Validate resolves the card, checks the channel and coerces the value.
// No protocol traffic.
func (d *Dispatcher) Validate(cmd Command) (*cards.Descriptor, bool, error) {
	card, err := Resolve(d.outputs, cmd)
	if err != nil {
		return nil, false, err
	}
	if cmd.Channel < 1 || cmd.Channel > card.Channels {
		return nil, false, fmt.Errorf("%w: channel %d not in [1,%d] on %s",
			ErrChannelRange, cmd.Channel, card.Channels, card.Topic())
	}
	v, err := CoerceBool(cmd.Value)
	if err != nil {
		return nil, false, err
	}
	return card, v, nil
}

// Dispatch writes one coil. Rejected commands issue no protocol traffic.
// A failed read-back is reported in the result; the write is not undone.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	card, value, err := d.Validate(cmd)
	if err != nil {
		d.log.Warn().Err(err).Str("target", cmd.Target).Int("channel", cmd.Channel).Msg("write rejected")
		return Result{}, err
	}

	addr := card.Start + uint16(cmd.Channel-1)
	res := Result{Card: card, Target: card.Topic(), Channel: cmd.Channel, Address: addr, Value: value}

	err = d.exec.Do(ctx, func(c transport.Client) error {
		return c.WriteSingleCoil(addr, value)
	})
	if err != nil {
		d.log.Warn().Err(err).Str("card", card.Topic()).Uint16("address", addr).Msg("write failed")
		return res, fmt.Errorf("writer: %s ch%d: %w", card.Topic(), cmd.Channel, err)
	}

	d.log.Debug().Str("card", card.Topic()).Int("channel", cmd.Channel).Bool("value", value).Msg("write ok")

	if card.ReadOnWrite {
		rb := d.readBack(ctx, card, cmd.Channel, addr)
		res.ReadBack = &rb
	}
	return res, nil
}

// readBack reads the single coil just written and decodes it as a
// reading of the card's channel.
func (d *Dispatcher) readBack(ctx context.Context, card *cards.Descriptor, channel int, addr uint16) decode.Reading {
	at := d.now()

	window, err := poller.Read(ctx, d.exec, poller.ReadBlock{
		Kind:     card.ReadBackKind,
		Address:  addr,
		Quantity: 1,
	})

	var r decode.Reading
	if err != nil {
		d.log.Warn().Err(err).Str("card", card.Topic()).Int("channel", channel).Msg("read-back failed")
		r = decode.ErrorReadings(card, err)[channel-1]
	} else {
		// Place the single bit at the channel's slot so decode sees the
		// card's own layout.
		full := make([]decode.Word, card.Channels)
		full[channel-1] = window[0]
		r = decode.Decode(card, full)[channel-1]
	}
	r.At = at
	return r
}
