// internal/engine/dialer.go
package engine

import (
	"fmt"

	"github.com/goburrow/serial"

	"github.com/tamzrod/coupler-io/internal/config"
	"github.com/tamzrod/coupler-io/internal/transport"
	"github.com/tamzrod/coupler-io/internal/transport/goburrow"
	"github.com/tamzrod/coupler-io/internal/transport/simonvetter"
)

// DialerFor selects the driver named by coupler.driver.
func DialerFor(c config.CouplerConfig) (transport.Dialer, error) {
	if _, _, err := transport.ParseEndpoint(c.Endpoint); err != nil {
		return nil, err
	}

	timeout := ms(c.TimeoutMs)

	switch c.Driver {
	case "", "goburrow":
		return goburrow.Dialer(goburrow.Config{
			Endpoint: c.Endpoint,
			UnitID:   c.UnitID,
			Timeout:  timeout,
			Serial: serial.Config{
				BaudRate: c.Serial.BaudRate,
				DataBits: c.Serial.DataBits,
				StopBits: c.Serial.StopBits,
				Parity:   c.Serial.Parity,
			},
		}), nil

	case "simonvetter":
		return simonvetter.Dialer(simonvetter.Config{
			Endpoint: c.Endpoint,
			UnitID:   c.UnitID,
			Timeout:  timeout,
			BaudRate: uint(c.Serial.BaudRate),
			DataBits: uint(c.Serial.DataBits),
			StopBits: uint(c.Serial.StopBits),
			Parity:   c.Serial.Parity,
		}), nil

	default:
		return nil, fmt.Errorf("engine: unsupported driver %q", c.Driver)
	}
}
