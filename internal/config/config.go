// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Coupler CouplerConfig `yaml:"coupler"`
	Poll    PollConfig    `yaml:"poll"`
	Cards   []CardConfig  `yaml:"cards"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// ---- COUPLER ----

type CouplerConfig struct {
	// Endpoint is host:port for TCP, or rtu:///dev/ttyUSB0 for serial.
	Endpoint         string `yaml:"endpoint"`
	Driver           string `yaml:"driver"` // goburrow (default) | simonvetter
	UnitID           uint8  `yaml:"unit_id"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`

	// WordOrder is the coupler-wide status/data pair order for analog cards.
	// There is no default: two-word analog cards need it here or per card.
	WordOrder string `yaml:"word_order"`

	Base   BaseConfig   `yaml:"base"`
	Serial SerialConfig `yaml:"serial"`
}

// BaseConfig holds the first address of each register kind.
type BaseConfig struct {
	Coils          uint16 `yaml:"coils"`
	DiscreteInputs uint16 `yaml:"discrete_inputs"`
	InputRegisters uint16 `yaml:"input_registers"`
}

type SerialConfig struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	MinTickMs  int `yaml:"min_tick_ms"`
}

// ---- CARDS ----

type CardConfig struct {
	Type      string `yaml:"type"`
	Label     string `yaml:"label"`
	Filter    string `yaml:"filter"`
	Direction string `yaml:"direction"` // optional; derived from type when empty
	Channels  int    `yaml:"channels"`  // optional override

	WordsPerChannel int `yaml:"words_per_channel"` // optional override

	PollRateMs  int  `yaml:"poll_rate_ms"`
	PollOutput  bool `yaml:"poll_output"`
	ReadOnWrite bool `yaml:"read_on_write"`

	Settings SettingsConfig `yaml:"settings"`
}

// SettingsConfig is the raw per-card settings object. Recognised keys depend
// on the card family; unknown keys are ignored by yaml.
type SettingsConfig struct {
	// temperature
	WordOrder string            `yaml:"word_order"`
	Sensor    string            `yaml:"sensor"`
	Channels  []ChannelSettings `yaml:"channels"`

	// voltage
	Range      string   `yaml:"range"` // 0-10V | 0.5-10V | 2-10V | custom
	MinV       *float64 `yaml:"min_v"`
	MaxV       *float64 `yaml:"max_v"`
	AdaptRaw   *int     `yaml:"adapt_raw"`
	AdaptTol   *int     `yaml:"adapt_tol"`
	FullScaleV *float64 `yaml:"full_scale_v"`
	RawMax     *int     `yaml:"raw_max"`

	Units    string `yaml:"units"`
	Decimals *int   `yaml:"decimals"`

	// temperature conditioning
	Scale     *ScaleConfig `yaml:"scale"`
	AlarmLow  *float64     `yaml:"alarm_low"`
	AlarmHigh *float64     `yaml:"alarm_high"`
	Deadband  *float64     `yaml:"deadband"`
	FilterTau *float64     `yaml:"filter_tau"` // samples; 0 or 1 disables smoothing
}

// ScaleConfig maps the raw data word linearly onto an engineering range.
// A preset fills every field; explicit fields override the preset.
type ScaleConfig struct {
	Preset string   `yaml:"preset"` // none | 0-10V | 0-5V | 4-20mA | -50..150C | custom
	RawMin *float64 `yaml:"raw_min"`
	RawMax *float64 `yaml:"raw_max"`
	EngMin *float64 `yaml:"eng_min"`
	EngMax *float64 `yaml:"eng_max"`
	Units  string   `yaml:"units"`
}

// ChannelSettings overrides sensor assignment, valid range and alarm limits
// for one channel.
type ChannelSettings struct {
	Sensor    string   `yaml:"sensor"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	AlarmLow  *float64 `yaml:"alarm_low"`
	AlarmHigh *float64 `yaml:"alarm_high"`
}

// ---- OUTER SURFACES ----

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes. No validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}
