// internal/transport/client.go
package transport

import (
	"errors"
	"fmt"
)

// Client is one open session to the coupler.
// Implementations are not required to be safe for concurrent use;
// the Manager serializes every call.
type Client interface {
	ReadCoils(addr, qty uint16) ([]bool, error)
	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)
	WriteSingleCoil(addr uint16, value bool) error
	Close() error
}

// Dialer opens a new session.
type Dialer func() (Client, error)

var (
	// ErrNotConnected is returned when no session is established.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("transport: manager closed")

	// ErrDeviceException matches any exception response from the device.
	// The link is still healthy when a request fails with it.
	ErrDeviceException = errors.New("transport: device exception")
)

// DeviceError is a Modbus exception response.
type DeviceError struct {
	FunctionCode  uint8
	ExceptionCode uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("transport: device exception fc=%d code=%d", e.FunctionCode, e.ExceptionCode)
}

func (e *DeviceError) Is(target error) bool { return target == ErrDeviceException }

// Code exposes the exception code for status reporting.
func (e *DeviceError) Code() uint16 { return uint16(e.ExceptionCode) }

// IsDeviceException reports whether err came back from the device rather
// than from the link.
func IsDeviceException(err error) bool {
	return errors.Is(err, ErrDeviceException)
}
