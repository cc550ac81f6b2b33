// internal/config/normalize.go
package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs        = 1000
	DefaultReconnectDelayMs = 5000
	DefaultPollIntervalMs   = 1000
	DefaultMinTickMs        = 50
	DefaultMQTTPrefix       = "coupler"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	c := &cfg.Coupler
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = "goburrow"
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.ReconnectDelayMs == 0 {
		c.ReconnectDelayMs = DefaultReconnectDelayMs
	}
	c.WordOrder = strings.ToLower(c.WordOrder)

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 9600
	}
	if c.Serial.DataBits == 0 {
		c.Serial.DataBits = 8
	}
	if c.Serial.Parity == "" {
		c.Serial.Parity = "N"
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = 1
	}

	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultPollIntervalMs
	}
	if cfg.Poll.MinTickMs == 0 {
		cfg.Poll.MinTickMs = DefaultMinTickMs
	}

	for i := range cfg.Cards {
		card := &cfg.Cards[i]
		card.Type = strings.TrimSpace(card.Type)
		card.Direction = strings.ToLower(strings.TrimSpace(card.Direction))
		card.Settings.WordOrder = strings.ToLower(card.Settings.WordOrder)
	}

	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = DefaultMQTTPrefix
	}
	cfg.MQTT.Prefix = strings.TrimSuffix(cfg.MQTT.Prefix, "/")

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
