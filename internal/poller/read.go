// internal/poller/read.go
package poller

import (
	"context"
	"fmt"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/transport"
)

// Read issues exactly one request for the block and returns the raw window.
func Read(ctx context.Context, exec Executor, rb ReadBlock) ([]decode.Word, error) {
	var window []decode.Word

	err := exec.Do(ctx, func(c transport.Client) error {
		switch rb.Kind {
		case cards.KindCoil:
			bits, err := c.ReadCoils(rb.Address, rb.Quantity)
			if err != nil {
				return err
			}
			window = decode.FromBits(bits)

		case cards.KindDiscreteInput:
			bits, err := c.ReadDiscreteInputs(rb.Address, rb.Quantity)
			if err != nil {
				return err
			}
			window = decode.FromBits(bits)

		case cards.KindInputRegister:
			regs, err := c.ReadInputRegisters(rb.Address, rb.Quantity)
			if err != nil {
				return err
			}
			window = decode.FromRegisters(regs)

		default:
			return fmt.Errorf("poller: unsupported register kind %s", rb.Kind)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return window, nil
}
