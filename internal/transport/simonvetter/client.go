// internal/transport/simonvetter/client.go
package simonvetter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/tamzrod/coupler-io/internal/transport"
)

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration

	// rtu only
	BaudRate uint
	DataBits uint
	Parity   string // N, E, O
	StopBits uint
}

// exceptions lists the errors simonvetter returns for exception responses.
var exceptions = []error{
	modbus.ErrIllegalFunction,
	modbus.ErrIllegalDataAddress,
	modbus.ErrIllegalDataValue,
	modbus.ErrServerDeviceFailure,
	modbus.ErrAcknowledge,
	modbus.ErrServerDeviceBusy,
	modbus.ErrMemoryParityError,
	modbus.ErrGWPathUnavailable,
	modbus.ErrGWTargetFailedToRespond,
}

// Client wraps a simonvetter ModbusClient.
type Client struct {
	mc *modbus.ModbusClient
}

// Dial builds the client configuration from the endpoint and opens it.
func Dial(cfg Config) (*Client, error) {
	scheme, addr, err := transport.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	mcfg := &modbus.ClientConfiguration{
		URL:     scheme + "://" + addr,
		Timeout: cfg.Timeout,
	}
	if scheme == transport.SchemeRTU {
		mcfg.Speed = cfg.BaudRate
		mcfg.DataBits = cfg.DataBits
		mcfg.StopBits = cfg.StopBits
		mcfg.Parity = parity(cfg.Parity)
	}

	mc, err := modbus.NewClient(mcfg)
	if err != nil {
		return nil, fmt.Errorf("simonvetter: %w", err)
	}
	mc.SetUnitId(cfg.UnitID)

	if err := mc.Open(); err != nil {
		return nil, fmt.Errorf("simonvetter: open %s: %w", cfg.Endpoint, err)
	}
	return &Client{mc: mc}, nil
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
	return c.mc.Close()
}

func (c *Client) ReadCoils(addr, qty uint16) ([]bool, error) {
	v, err := c.mc.ReadCoils(addr, qty)
	return v, classify(err, 1)
}

func (c *Client) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	v, err := c.mc.ReadDiscreteInputs(addr, qty)
	return v, classify(err, 2)
}

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	v, err := c.mc.ReadRegisters(addr, qty, modbus.INPUT_REGISTER)
	return v, classify(err, 4)
}

func (c *Client) WriteSingleCoil(addr uint16, value bool) error {
	return classify(c.mc.WriteCoil(addr, value), 5)
}

func classify(err error, fc uint8) error {
	if err == nil {
		return nil
	}
	for i, e := range exceptions {
		if errors.Is(err, e) {
			return &transport.DeviceError{FunctionCode: fc, ExceptionCode: exceptionCode(i)}
		}
	}
	return err
}

// exceptionCode maps a position in exceptions to its Modbus code.
// Codes 7 and 9 are not reported by the library.
func exceptionCode(i int) uint8 {
	codes := [...]uint8{1, 2, 3, 4, 5, 6, 8, 10, 11}
	return codes[i]
}

func parity(p string) uint {
	switch strings.ToUpper(p) {
	case "E", "EVEN":
		return modbus.PARITY_EVEN
	case "O", "ODD":
		return modbus.PARITY_ODD
	default:
		return modbus.PARITY_NONE
	}
}
