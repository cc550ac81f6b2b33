// internal/cards/settings.go
package cards

import (
	"fmt"
	"strings"

	"github.com/tamzrod/coupler-io/internal/config"
)

// WordOrder is the position of the status and data words inside a pair.
type WordOrder int

const (
	// WordOrderSingle means one data word per channel, no status word.
	WordOrderSingle WordOrder = iota
	WordOrderStatusData
	WordOrderDataStatus
)

func (o WordOrder) String() string {
	switch o {
	case WordOrderStatusData:
		return config.WordOrderStatusData
	case WordOrderDataStatus:
		return config.WordOrderDataStatus
	default:
		return "single"
	}
}

// Offsets returns the data and status word offsets inside one channel.
// status is -1 when the layout has no status word.
func (o WordOrder) Offsets() (data, status int) {
	switch o {
	case WordOrderStatusData:
		return 1, 0
	case WordOrderDataStatus:
		return 0, 1
	default:
		return 0, -1
	}
}

// Sensor is the resolved sensor assignment of one temperature channel.
type Sensor struct {
	Name       string
	Min        float64 // celsius, or ohms when Resistance
	Max        float64
	Resistance bool
}

// sensorPresets holds the valid measuring range of each supported element.
var sensorPresets = map[string]Sensor{
	"pt100":    {Name: "pt100", Min: -200, Max: 850},
	"pt200":    {Name: "pt200", Min: -200, Max: 850},
	"pt500":    {Name: "pt500", Min: -200, Max: 850},
	"pt1000":   {Name: "pt1000", Min: -200, Max: 850},
	"ni100":    {Name: "ni100", Min: -60, Max: 250},
	"ni120":    {Name: "ni120", Min: -60, Max: 250},
	"ni1000":   {Name: "ni1000", Min: -60, Max: 250},
	"ntc10k":   {Name: "ntc10k", Min: -40, Max: 150},
	"ntc20k":   {Name: "ntc20k", Min: -40, Max: 150},
	"kty":      {Name: "kty", Min: -50, Max: 150},
	"res_1200": {Name: "res_1200", Min: 10, Max: 1200, Resistance: true},
	"res_5000": {Name: "res_5000", Min: 10, Max: 5000, Resistance: true},
}

// DefaultSensor is assigned to channels with no sensor configured.
const DefaultSensor = "pt1000"

// SensorCustom takes its range entirely from the channel's min/max.
const SensorCustom = "custom"

// Band is a voltage range used for percent scaling.
type Band struct {
	Name string
	MinV float64
	MaxV float64
}

const (
	BandZeroTen    = "0-10V"
	BandHalfTen    = "0.5-10V"
	BandTwoTen     = "2-10V"
	BandCustom     = "custom"
	defaultBand    = BandHalfTen
	defaultRawMax  = 32767
	defaultFullV   = 10.0
	defaultAdapt   = 1648
	defaultTol     = 80
	defaultVoltDec = 1
	defaultTempDec = 2
)

var bandPresets = map[string]Band{
	BandZeroTen: {Name: BandZeroTen, MinV: 0.0, MaxV: 10.0},
	BandHalfTen: {Name: BandHalfTen, MinV: 0.5, MaxV: 10.0},
	BandTwoTen:  {Name: BandTwoTen, MinV: 2.0, MaxV: 10.0},
}

// Scale maps a raw data word linearly onto [EngMin, EngMax].
type Scale struct {
	Preset string
	RawMin float64
	RawMax float64
	EngMin float64
	EngMax float64
	Units  string
}

// Apply scales one raw word.
func (s Scale) Apply(raw float64) float64 {
	return s.EngMin + (raw-s.RawMin)/(s.RawMax-s.RawMin)*(s.EngMax-s.EngMin)
}

const (
	ScaleNone   = "none"
	ScaleCustom = "custom"
)

var scalePresets = map[string]Scale{
	"0-10V":     {RawMin: 0, RawMax: 65535, EngMin: 0, EngMax: 10, Units: "V"},
	"0-5V":      {RawMin: 0, RawMax: 65535, EngMin: 0, EngMax: 5, Units: "V"},
	"4-20mA":    {RawMin: 0, RawMax: 65535, EngMin: 4, EngMax: 20, Units: "mA"},
	"-50..150C": {RawMin: 0, RawMax: 65535, EngMin: -50, EngMax: 150, Units: "°C"},
}

// Limits are the alarm thresholds of one channel. Nil means unchecked.
type Limits struct {
	Low  *float64
	High *float64
}

// Set reports whether either threshold is configured.
func (l Limits) Set() bool { return l.Low != nil || l.High != nil }

// Settings is the per-card decode configuration, compiled once when the
// registry is built. Never recomputed per decode call.
type Settings struct {
	Family          Family
	Channels        int
	WordsPerChannel int
	WordOrder       WordOrder

	// temperature
	Sensors   []Sensor
	Scale     *Scale
	Limits    []Limits // per channel
	Deadband  float64
	FilterTau float64

	// voltage
	Band       Band
	Adaptation bool // adaptation detection active (0.5-10V band only)
	AdaptRaw   int
	AdaptTol   int
	FullScaleV float64
	RawMax     float64

	Units    string
	Decimals int
}

// compileSettings builds the immutable Settings for one card.
// Precedence: channel value > card value > coupler default > preset default.
func compileSettings(t TypeInfo, channels, wpc int, raw config.SettingsConfig, coupler string) (Settings, error) {
	s := Settings{
		Family:          t.Family,
		Channels:        channels,
		WordsPerChannel: wpc,
		Units:           raw.Units,
	}

	switch t.Family {
	case FamilyDigitalInput, FamilyDigitalOutput:
		return s, nil

	case FamilyAnalogTemperature, FamilyAnalogVoltage:
		order, err := resolveWordOrder(wpc, raw.WordOrder, coupler)
		if err != nil {
			return s, err
		}
		s.WordOrder = order
	}

	if t.Family == FamilyAnalogTemperature {
		s.Decimals = intOr(raw.Decimals, defaultTempDec)
		if s.Decimals < 0 {
			return s, fmt.Errorf("decimals must be >= 0 (got %d)", s.Decimals)
		}
		s.Sensors = make([]Sensor, channels)
		s.Limits = make([]Limits, channels)
		for ch := 0; ch < channels; ch++ {
			var cs config.ChannelSettings
			if ch < len(raw.Channels) {
				cs = raw.Channels[ch]
			}
			sensor, err := resolveSensor(cs, raw.Sensor)
			if err != nil {
				return s, fmt.Errorf("channel %d: %w", ch+1, err)
			}
			s.Sensors[ch] = sensor
			s.Limits[ch] = Limits{Low: floatPtrOr(cs.AlarmLow, raw.AlarmLow), High: floatPtrOr(cs.AlarmHigh, raw.AlarmHigh)}
			if l := s.Limits[ch]; l.Low != nil && l.High != nil && *l.High < *l.Low {
				return s, fmt.Errorf("channel %d: alarm_high (%v) below alarm_low (%v)", ch+1, *l.High, *l.Low)
			}
		}
		scale, err := resolveScale(raw.Scale)
		if err != nil {
			return s, err
		}
		s.Scale = scale
		s.Deadband = floatOr(raw.Deadband, 0)
		if s.Deadband < 0 {
			return s, fmt.Errorf("deadband must be >= 0 (got %v)", s.Deadband)
		}
		s.FilterTau = floatOr(raw.FilterTau, 0)
		if s.FilterTau < 0 {
			return s, fmt.Errorf("filter_tau must be >= 0 (got %v)", s.FilterTau)
		}
		if s.Units == "" {
			s.Units = "°C / °F"
		}
		return s, nil
	}

	// FamilyAnalogVoltage
	band, err := resolveBand(raw)
	if err != nil {
		return s, err
	}
	s.Band = band
	s.Adaptation = band.Name == BandHalfTen
	s.AdaptRaw = intOr(raw.AdaptRaw, defaultAdapt)
	s.AdaptTol = intOr(raw.AdaptTol, defaultTol)
	if s.AdaptTol < 0 {
		return s, fmt.Errorf("adapt_tol must be >= 0 (got %d)", s.AdaptTol)
	}
	s.FullScaleV = floatOr(raw.FullScaleV, defaultFullV)
	s.RawMax = float64(intOr(raw.RawMax, defaultRawMax))
	if s.RawMax <= 0 {
		return s, fmt.Errorf("raw_max must be > 0 (got %v)", s.RawMax)
	}
	s.Decimals = intOr(raw.Decimals, defaultVoltDec)
	if s.Decimals < 0 {
		return s, fmt.Errorf("decimals must be >= 0 (got %d)", s.Decimals)
	}
	if s.Units == "" {
		s.Units = "%"
	}
	return s, nil
}

func resolveWordOrder(wpc int, card, coupler string) (WordOrder, error) {
	if wpc == 1 {
		return WordOrderSingle, nil
	}
	if wpc != 2 {
		return WordOrderSingle, fmt.Errorf("words_per_channel must be 1 or 2 for analog cards (got %d)", wpc)
	}
	order := card
	if order == "" {
		order = coupler
	}
	switch strings.ToLower(order) {
	case config.WordOrderStatusData:
		return WordOrderStatusData, nil
	case config.WordOrderDataStatus:
		return WordOrderDataStatus, nil
	case "":
		return WordOrderSingle, fmt.Errorf("word_order required for two-word channels (%s|%s)",
			config.WordOrderStatusData, config.WordOrderDataStatus)
	default:
		return WordOrderSingle, fmt.Errorf("word_order %q invalid", order)
	}
}

func resolveSensor(cs config.ChannelSettings, cardSensor string) (Sensor, error) {
	name := strings.ToLower(cs.Sensor)
	if name == "" {
		name = strings.ToLower(cardSensor)
	}
	if name == "" {
		name = DefaultSensor
	}

	var sensor Sensor
	if name == SensorCustom {
		if cs.Min == nil || cs.Max == nil {
			return sensor, fmt.Errorf("sensor %q needs min and max", SensorCustom)
		}
		sensor = Sensor{Name: SensorCustom}
	} else {
		preset, ok := sensorPresets[name]
		if !ok {
			return sensor, fmt.Errorf("unknown sensor %q", name)
		}
		sensor = preset
	}

	if cs.Min != nil {
		sensor.Min = *cs.Min
	}
	if cs.Max != nil {
		sensor.Max = *cs.Max
	}
	if sensor.Max <= sensor.Min {
		return sensor, fmt.Errorf("sensor range max (%v) must exceed min (%v)", sensor.Max, sensor.Min)
	}
	return sensor, nil
}

func resolveBand(raw config.SettingsConfig) (Band, error) {
	name := raw.Range
	if name == "" {
		name = defaultBand
	}
	if strings.EqualFold(name, BandCustom) {
		b := Band{
			Name: BandCustom,
			MinV: floatOr(raw.MinV, 0.5),
			MaxV: floatOr(raw.MaxV, 10.0),
		}
		if b.MaxV <= b.MinV {
			return b, fmt.Errorf("custom range max_v (%v) must exceed min_v (%v)", b.MaxV, b.MinV)
		}
		return b, nil
	}
	for key, b := range bandPresets {
		if strings.EqualFold(key, name) {
			return b, nil
		}
	}
	return Band{}, fmt.Errorf("unknown range %q", name)
}

// resolveScale returns nil when no scaling is configured.
func resolveScale(raw *config.ScaleConfig) (*Scale, error) {
	if raw == nil {
		return nil, nil
	}
	name := raw.Preset
	if name == "" {
		name = ScaleCustom
	}
	if strings.EqualFold(name, ScaleNone) {
		return nil, nil
	}

	sc := Scale{RawMin: 0, RawMax: 65535, EngMin: 0, EngMax: 10}
	if !strings.EqualFold(name, ScaleCustom) {
		preset, ok := scalePresets[name]
		if !ok {
			return nil, fmt.Errorf("unknown scale preset %q", name)
		}
		sc = preset
	}
	sc.Preset = name
	sc.RawMin = floatOr(raw.RawMin, sc.RawMin)
	sc.RawMax = floatOr(raw.RawMax, sc.RawMax)
	sc.EngMin = floatOr(raw.EngMin, sc.EngMin)
	sc.EngMax = floatOr(raw.EngMax, sc.EngMax)
	if raw.Units != "" {
		sc.Units = raw.Units
	}
	if sc.RawMax == sc.RawMin {
		return nil, fmt.Errorf("scale raw_min and raw_max must differ (both %v)", sc.RawMin)
	}
	return &sc, nil
}

func floatPtrOr(p, def *float64) *float64 {
	if p != nil {
		return p
	}
	return def
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
