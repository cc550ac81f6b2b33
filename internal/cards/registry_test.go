// internal/cards/registry_test.go
package cards

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/coupler-io/internal/config"
)

func defaults() Defaults {
	return Defaults{
		WordOrder: config.WordOrderStatusData,
		PollRate:  time.Second,
	}
}

func TestBuild_AddressesPerKind(t *testing.T) {
	entries := []config.CardConfig{
		{Type: "KL1808", Label: "di-1"},
		{Type: "KL3208", Label: "temp-1"},
		{Type: "KL2808", Label: "do-1"},
		{Type: "KL1808", Label: "di-2"},
		{Type: "KL3468", Label: "volt-1"},
		{Type: "KL3204", Label: "temp-2"},
		{Type: "KL2808", Label: "do-2"},
	}

	r, errs := Build(entries, defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	want := []struct {
		label string
		kind  Kind
		start uint16
		qty   uint16
	}{
		{"di-1", KindDiscreteInput, 0, 8},
		{"temp-1", KindInputRegister, 0, 16},
		{"do-1", KindCoil, 0, 8},
		{"di-2", KindDiscreteInput, 8, 8},
		{"volt-1", KindInputRegister, 16, 16},
		{"temp-2", KindInputRegister, 32, 8},
		{"do-2", KindCoil, 8, 8},
	}

	cards := r.Cards()
	if len(cards) != len(want) {
		t.Fatalf("expected %d cards, got %d", len(want), len(cards))
	}
	for i, w := range want {
		c := cards[i]
		if c.Label != w.label || c.Kind != w.kind || c.Start != w.start || c.Quantity != w.qty {
			t.Fatalf("card %d: got label=%s kind=%s start=%d qty=%d, want %+v",
				i, c.Label, c.Kind, c.Start, c.Quantity, w)
		}
	}
}

// Ranges within one kind are disjoint and contiguous in configuration order.
func TestBuild_ContiguousDisjoint(t *testing.T) {
	types := []string{"KL1808", "KL3208", "KL2808", "KL3468", "KL3464", "KL1408", "KL2408", "KL3204"}
	var entries []config.CardConfig
	for i := 0; i < 40; i++ {
		entries = append(entries, config.CardConfig{Type: types[(i*5+i/3)%len(types)]})
	}

	r, errs := Build(entries, defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	next := map[Kind]uint16{}
	for _, c := range r.Cards() {
		if c.Start != next[c.Kind] {
			t.Fatalf("card %d (%s): start=%d, want %d (gap or overlap)", c.Index, c.Type.Name, c.Start, next[c.Kind])
		}
		next[c.Kind] = c.Start + c.Quantity
	}
	for k, n := range next {
		if r.Span(k) != uint32(n) {
			t.Fatalf("span %s: got=%d want=%d", k, r.Span(k), n)
		}
	}
}

func TestBuild_UnknownTypeExcluded(t *testing.T) {
	entries := []config.CardConfig{
		{Type: "KL1808", Label: "a"},
		{Type: "KL9999", Label: "bogus"},
		{Type: "KL1808", Label: "b"},
	}

	r, errs := Build(entries, defaults())
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	var ce *ConfigError
	if !errors.As(errs[0], &ce) || ce.Index != 1 || !errors.Is(errs[0], ErrUnknownType) {
		t.Fatalf("unexpected error: %v", errs[0])
	}

	cards := r.Cards()
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	// excluded card consumes no address space
	if cards[1].Start != 8 {
		t.Fatalf("second card start=%d, want 8", cards[1].Start)
	}
}

func TestBuild_MissingWordOrderExcluded(t *testing.T) {
	entries := []config.CardConfig{
		{Type: "KL3208", Label: "t"},
		{Type: "KL3208", Label: "t2", Settings: config.SettingsConfig{WordOrder: config.WordOrderDataStatus}},
		{Type: "KL3468", Label: "v", WordsPerChannel: 1},
	}

	r, errs := Build(entries, Defaults{PollRate: time.Second})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 cards, got %d", r.Len())
	}
	if r.Cards()[0].Settings.WordOrder != WordOrderDataStatus {
		t.Fatalf("card word order not applied")
	}
	if r.Cards()[1].Settings.WordOrder != WordOrderSingle || r.Cards()[1].Quantity != 8 {
		t.Fatalf("single-word voltage card mis-sized: %+v", r.Cards()[1])
	}
}

func TestBuild_MalformedSettings(t *testing.T) {
	bad := 1.0
	neg := -1
	negf := -1.0
	alarmHi := 40.0
	entries := []config.CardConfig{
		{Type: "KL3468", Settings: config.SettingsConfig{Range: "4-20mA"}},
		{Type: "KL3468", Settings: config.SettingsConfig{Range: "custom", MinV: &bad, MaxV: &bad}},
		{Type: "KL3208", Settings: config.SettingsConfig{Sensor: "thermocouple-k"}},
		{Type: "KL3208", Settings: config.SettingsConfig{Channels: []config.ChannelSettings{{Sensor: "custom"}}}},
		{Type: "KL2808", Direction: "input"},
		{Type: "KL3208", Settings: config.SettingsConfig{Decimals: &neg}},
		{Type: "KL3208", Settings: config.SettingsConfig{Scale: &config.ScaleConfig{Preset: "0-20mA"}}},
		{Type: "KL3208", Settings: config.SettingsConfig{Scale: &config.ScaleConfig{RawMin: &bad, RawMax: &bad}}},
		{Type: "KL3208", Settings: config.SettingsConfig{AlarmLow: &alarmHi, AlarmHigh: &bad}},
		{Type: "KL3208", Settings: config.SettingsConfig{Deadband: &negf}},
		{Type: "KL3208", Settings: config.SettingsConfig{FilterTau: &negf}},
	}

	r, errs := Build(entries, defaults())
	if len(errs) != len(entries) {
		t.Fatalf("expected %d errors, got %d: %v", len(entries), len(errs), errs)
	}
	if r.Len() != 0 {
		t.Fatalf("expected no cards, got %d", r.Len())
	}
}

func TestBuild_SettingsPrecedence(t *testing.T) {
	lo, hi := -10.0, 40.0
	entries := []config.CardConfig{{
		Type: "KL3204",
		Settings: config.SettingsConfig{
			Sensor: "ni1000",
			Channels: []config.ChannelSettings{
				{Sensor: "pt100"},
				{Min: &lo, Max: &hi},
				{Sensor: "custom", Min: &lo, Max: &hi},
			},
		},
	}}

	r, errs := Build(entries, defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	s := r.Cards()[0].Settings.Sensors
	if s[0].Name != "pt100" || s[0].Min != -200 {
		t.Fatalf("ch1: %+v", s[0])
	}
	if s[1].Name != "ni1000" || s[1].Min != lo || s[1].Max != hi {
		t.Fatalf("ch2: %+v", s[1])
	}
	if s[2].Name != "custom" || s[2].Max != hi {
		t.Fatalf("ch3: %+v", s[2])
	}
	if s[3].Name != "ni1000" || s[3].Max != 250 {
		t.Fatalf("ch4: %+v", s[3])
	}
}

func TestBuild_OutputsAndPolling(t *testing.T) {
	entries := []config.CardConfig{
		{Type: "digital-output", Label: "do-1", ReadOnWrite: true},
		{Type: "kl1808", Label: "di-1", PollRateMs: 200},
		{Type: "KL2408", Label: "do-2", PollOutput: true},
	}
	r, errs := Build(entries, defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	outs := r.Outputs()
	if len(outs) != 2 || outs[0].OutputIndex != 1 || outs[1].OutputIndex != 2 {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
	if outs[0].Pollable || !outs[1].Pollable {
		t.Fatalf("output pollable flags wrong")
	}
	if !outs[0].ReadOnWrite {
		t.Fatalf("read_on_write not carried")
	}
	if di := r.Cards()[1]; !di.Pollable || di.PollRate != 200*time.Millisecond {
		t.Fatalf("input card poll settings wrong: %+v", di)
	}
}

func TestBuild_BaseOffsets(t *testing.T) {
	d := defaults()
	d.Base = config.BaseConfig{Coils: 100, InputRegisters: 0x800}
	r, _ := Build([]config.CardConfig{{Type: "KL2808"}, {Type: "KL3468"}}, d)

	if r.Cards()[0].Start != 100 || r.Cards()[1].Start != 0x800 {
		t.Fatalf("base offsets not applied: %d %d", r.Cards()[0].Start, r.Cards()[1].Start)
	}
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		filter, fallback, topic string
		want                    bool
	}{
		{"", "KL1808", "KL1808", true},
		{"", "KL1808", "kl1808", false},
		{"rack1/di", "", "rack1/di", true},
		{"rack1/*", "", "rack1/do/3", true},
		{"rack1/*", "", "rack2/do", false},
		{"/^do-[0-9]+$/", "", "do-12", true},
		{"/^do-[0-9]+$/", "", "do-x", false},
		{"a.b*", "", "axb1", false},
		{"a.b*", "", "a.b1", true},
	}
	for _, tt := range tests {
		m, err := CompileFilter(tt.filter, tt.fallback)
		if err != nil {
			t.Fatalf("CompileFilter(%q) err=%v", tt.filter, err)
		}
		if got := m(tt.topic); got != tt.want {
			t.Errorf("CompileFilter(%q,%q)(%q) = %v; want %v", tt.filter, tt.fallback, tt.topic, got, tt.want)
		}
	}

	if _, err := CompileFilter("/([/", ""); err == nil {
		t.Fatalf("expected error for bad regex")
	}
}

func TestBuild_BadFilterExcluded(t *testing.T) {
	entries := []config.CardConfig{
		{Type: "KL2808", Label: "pumps", Filter: "/([/"},
		{Type: "KL2808", Label: "valves", Filter: "/^valve-[0-9]+$/"},
	}

	r, errs := Build(entries, defaults())
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var ce *ConfigError
	if !errors.As(errs[0], &ce) || ce.Index != 0 {
		t.Fatalf("err=%v", errs[0])
	}
	if r.Len() != 1 || r.Cards()[0].Start != 0 {
		t.Fatalf("bad filter card consumed address space: %+v", r.Cards())
	}
	if !r.Cards()[0].Match("valve-3") || r.Cards()[0].Match("pump-3") {
		t.Fatalf("compiled matcher not stored")
	}
}

func TestBuild_TemperatureConditioning(t *testing.T) {
	lo, hi, chHi := 5.0, 60.0, 90.0
	db, tau := 0.5, 4.0
	entries := []config.CardConfig{{
		Type: "KL3208",
		Settings: config.SettingsConfig{
			Scale:     &config.ScaleConfig{Preset: "4-20mA"},
			AlarmLow:  &lo,
			AlarmHigh: &hi,
			Deadband:  &db,
			FilterTau: &tau,
			Channels:  []config.ChannelSettings{{}, {AlarmHigh: &chHi}},
		},
	}, {
		Type:     "KL3208",
		Settings: config.SettingsConfig{Scale: &config.ScaleConfig{Preset: "none"}},
	}}

	r, errs := Build(entries, defaults())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	s := r.Cards()[0].Settings
	if s.Scale == nil || s.Scale.EngMin != 4 || s.Scale.EngMax != 20 || s.Scale.Units != "mA" {
		t.Fatalf("scale=%+v", s.Scale)
	}
	if got := s.Scale.Apply(65535); got != 20 {
		t.Fatalf("full scale=%v", got)
	}
	if s.Deadband != 0.5 || s.FilterTau != 4 {
		t.Fatalf("deadband=%v tau=%v", s.Deadband, s.FilterTau)
	}
	if len(s.Limits) != 8 || *s.Limits[0].Low != 5 || *s.Limits[0].High != 60 {
		t.Fatalf("ch1 limits=%+v", s.Limits[0])
	}
	if *s.Limits[1].Low != 5 || *s.Limits[1].High != 90 {
		t.Fatalf("ch2 limits=%+v", s.Limits[1])
	}
	if r.Cards()[1].Settings.Scale != nil || r.Cards()[1].Settings.Limits[0].Set() {
		t.Fatalf("second card should be unconditioned: %+v", r.Cards()[1].Settings)
	}
}
