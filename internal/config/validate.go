// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Word order values shared with the card registry.
const (
	WordOrderStatusData = "status-data"
	WordOrderDataStatus = "data-status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
//
// Per-card problems (unknown type, malformed settings) are not reported
// here: the card registry excludes the offending card and keeps the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// COUPLER
	// ------------------------------------------------------------

	c := cfg.Coupler
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("config: coupler.endpoint required")
	}

	switch strings.ToLower(c.Driver) {
	case "", "goburrow", "simonvetter":
	default:
		return fmt.Errorf("config: coupler.driver %q unsupported (goburrow|simonvetter)", c.Driver)
	}

	if c.TimeoutMs < 0 {
		return fmt.Errorf("config: coupler.timeout_ms must be >= 0 (got %d)", c.TimeoutMs)
	}
	if c.ReconnectDelayMs < 0 {
		return fmt.Errorf("config: coupler.reconnect_delay_ms must be >= 0 (got %d)", c.ReconnectDelayMs)
	}

	if c.WordOrder != "" && !ValidWordOrder(c.WordOrder) {
		return fmt.Errorf(
			"config: coupler.word_order %q invalid (%s|%s)",
			c.WordOrder, WordOrderStatusData, WordOrderDataStatus,
		)
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("config: poll.interval_ms must be >= 0 (got %d)", cfg.Poll.IntervalMs)
	}
	if cfg.Poll.MinTickMs != 0 && cfg.Poll.MinTickMs < DefaultMinTickMs {
		return fmt.Errorf("config: poll.min_tick_ms must be >= %d (got %d)", DefaultMinTickMs, cfg.Poll.MinTickMs)
	}

	// ------------------------------------------------------------
	// CARDS
	// ------------------------------------------------------------

	if len(cfg.Cards) == 0 {
		return errors.New("config: at least one card required")
	}
	for i, card := range cfg.Cards {
		if card.PollRateMs < 0 {
			return fmt.Errorf("config: cards[%d] (%s): poll_rate_ms must be >= 0", i, card.Label)
		}
		if card.Channels < 0 {
			return fmt.Errorf("config: cards[%d] (%s): channels must be >= 0", i, card.Label)
		}
	}

	// ------------------------------------------------------------
	// OUTER SURFACES
	// ------------------------------------------------------------

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2 (got %d)", cfg.MQTT.QoS)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: log.format %q unsupported (json|console)", cfg.Log.Format)
	}

	return nil
}

// ValidWordOrder reports whether s names a known status/data pair order.
func ValidWordOrder(s string) bool {
	switch strings.ToLower(s) {
	case WordOrderStatusData, WordOrderDataStatus:
		return true
	}
	return false
}
