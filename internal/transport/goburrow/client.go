// internal/transport/goburrow/client.go
package goburrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"

	"github.com/tamzrod/coupler-io/internal/transport"
)

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration

	// Serial applies to rtu:// endpoints only. Address is taken from the
	// endpoint.
	Serial serial.Config
}

// handler is the part of the goburrow handlers the client needs.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Client is one goburrow session. Not safe for concurrent use; the
// transport manager serializes access.
type Client struct {
	handler handler
	client  modbus.Client
}

// Dial opens a TCP or RTU session depending on the endpoint scheme.
func Dial(cfg Config) (*Client, error) {
	scheme, addr, err := transport.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var h handler
	switch scheme {
	case transport.SchemeRTU:
		rh := modbus.NewRTUClientHandler(addr)
		sc := cfg.Serial
		sc.Address = addr
		sc.Timeout = cfg.Timeout
		rh.Config = sc
		rh.SlaveId = cfg.UnitID
		h = rh
	default:
		th := modbus.NewTCPClientHandler(addr)
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.UnitID
		h = th
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("goburrow: connect %s: %w", cfg.Endpoint, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Dialer adapts Dial to the transport contract.
func Dialer(cfg Config) transport.Dialer {
	return func() (transport.Client, error) {
		c, err := Dial(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (c *Client) Close() error {
	return c.handler.Close()
}

func (c *Client) ReadCoils(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadCoils(addr, qty)
	if err != nil {
		return nil, classify(err)
	}
	return unpackBits(b, qty)
}

func (c *Client) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	b, err := c.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, classify(err)
	}
	return unpackBits(b, qty)
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, classify(err)
	}
	return unpackRegisters(b, qty)
}

func (c *Client) WriteSingleCoil(addr uint16, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	_, err := c.client.WriteSingleCoil(addr, v)
	return classify(err)
}

// classify maps goburrow exception responses onto transport.DeviceError.
// Everything else is treated as a link failure by the manager.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return &transport.DeviceError{FunctionCode: me.FunctionCode, ExceptionCode: me.ExceptionCode}
	}
	return err
}

// ------------------------------------------------------------
// payload helpers
// ------------------------------------------------------------

func unpackBits(b []byte, qty uint16) ([]bool, error) {
	if len(b)*8 < int(qty) {
		return nil, fmt.Errorf("goburrow: short bit payload: %d bytes for %d bits", len(b), qty)
	}
	out := make([]bool, qty)
	for i := range out {
		out[i] = b[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}

func unpackRegisters(b []byte, qty uint16) ([]uint16, error) {
	if len(b) < int(qty)*2 {
		return nil, fmt.Errorf("goburrow: short register payload: %d bytes for %d registers", len(b), qty)
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out, nil
}
