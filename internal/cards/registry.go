// internal/cards/registry.go
package cards

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tamzrod/coupler-io/internal/config"
)

// ErrUnknownType is wrapped by ConfigError for unresolvable card types.
var ErrUnknownType = errors.New("unknown card type")

// ConfigError reports a card excluded from the registry.
type ConfigError struct {
	Index int // position in the configured card list
	Label string
	Type  string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cards[%d] (type=%q label=%q): %v", e.Index, e.Type, e.Label, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Descriptor is one card with its address range assigned.
// Immutable after Build.
type Descriptor struct {
	Index       int // position among accepted cards
	OutputIndex int // 1-based position among output cards, 0 for inputs

	Type            TypeInfo
	Label           string
	Filter          string
	Direction       Direction
	Channels        int
	WordsPerChannel int
	Kind            Kind
	ReadBackKind    Kind

	Start    uint16
	Quantity uint16

	Settings    Settings
	PollRate    time.Duration
	Pollable    bool
	ReadOnWrite bool

	matcher Matcher
}

// Topic is the routing identity of the card: filter, else label, else type.
func (d *Descriptor) Topic() string {
	switch {
	case d.Filter != "":
		return d.Filter
	case d.Label != "":
		return d.Label
	default:
		return d.Type.Name
	}
}

// End returns the last address (inclusive) of the card's range.
func (d *Descriptor) End() uint16 {
	return d.Start + d.Quantity - 1
}

// AddressSpace keeps one running counter per register kind.
type AddressSpace struct {
	next [kindCount]uint32
}

// NewAddressSpace seeds the counters with the configured base offsets.
func NewAddressSpace(base config.BaseConfig) *AddressSpace {
	a := &AddressSpace{}
	a.next[KindCoil] = uint32(base.Coils)
	a.next[KindDiscreteInput] = uint32(base.DiscreteInputs)
	a.next[KindInputRegister] = uint32(base.InputRegisters)
	return a
}

// Assign hands out qty contiguous addresses of kind k.
func (a *AddressSpace) Assign(k Kind, qty uint16) (uint16, error) {
	start := a.next[k]
	if start+uint32(qty) > 1<<16 {
		return 0, fmt.Errorf("%s space exhausted: %d+%d exceeds 65536", k, start, qty)
	}
	a.next[k] = start + uint32(qty)
	return uint16(start), nil
}

// Next returns the next free address of kind k.
func (a *AddressSpace) Next(k Kind) uint32 {
	return a.next[k]
}

// Defaults are the coupler-level values cards fall back to.
type Defaults struct {
	WordOrder string
	PollRate  time.Duration
	Base      config.BaseConfig
}

// Registry is the ordered, address-resolved card set of one coupler.
type Registry struct {
	cards   []*Descriptor
	outputs []*Descriptor
	space   *AddressSpace
}

// Build resolves every configured card in order. Cards that fail to resolve
// are excluded and reported; they consume no address space.
func Build(entries []config.CardConfig, d Defaults) (*Registry, []error) {
	r := &Registry{space: NewAddressSpace(d.Base)}
	var errs []error

	for i, e := range entries {
		desc, err := r.resolve(e, d)
		if err != nil {
			errs = append(errs, &ConfigError{Index: i, Label: e.Label, Type: e.Type, Err: err})
			continue
		}
		desc.Index = len(r.cards)
		if desc.Direction == DirectionOutput {
			r.outputs = append(r.outputs, desc)
			desc.OutputIndex = len(r.outputs)
		}
		r.cards = append(r.cards, desc)
	}

	return r, errs
}

func (r *Registry) resolve(e config.CardConfig, d Defaults) (*Descriptor, error) {
	t, ok := LookupType(e.Type)
	if !ok {
		return nil, ErrUnknownType
	}

	dir := t.Direction
	switch strings.ToLower(e.Direction) {
	case "":
	case "input":
		if dir != DirectionInput {
			return nil, fmt.Errorf("direction input conflicts with %s card", t.Family)
		}
	case "output":
		if dir != DirectionOutput {
			return nil, fmt.Errorf("direction output conflicts with %s card", t.Family)
		}
	default:
		return nil, fmt.Errorf("direction %q invalid (input|output)", e.Direction)
	}

	channels := t.Channels
	if e.Channels > 0 {
		channels = e.Channels
	}
	wpc := t.WordsPerChannel
	if e.WordsPerChannel > 0 {
		if t.BitBased && e.WordsPerChannel != 1 {
			return nil, fmt.Errorf("words_per_channel must be 1 for %s card", t.Family)
		}
		wpc = e.WordsPerChannel
	}

	settings, err := compileSettings(t, channels, wpc, e.Settings, d.WordOrder)
	if err != nil {
		return nil, err
	}

	matcher, err := CompileFilter(e.Filter, t.Name)
	if err != nil {
		return nil, err
	}

	qty := channels * wpc
	if t.BitBased {
		qty = channels
	}
	if qty > 0xFFFF {
		return nil, fmt.Errorf("quantity %d too large", qty)
	}

	start, err := r.space.Assign(t.Kind, uint16(qty))
	if err != nil {
		return nil, err
	}

	rate := d.PollRate
	if e.PollRateMs > 0 {
		rate = time.Duration(e.PollRateMs) * time.Millisecond
	}

	return &Descriptor{
		Type:            t,
		Label:           e.Label,
		Filter:          e.Filter,
		Direction:       dir,
		Channels:        channels,
		WordsPerChannel: wpc,
		Kind:            t.Kind,
		ReadBackKind:    t.ReadBackKind,
		Start:           start,
		Quantity:        uint16(qty),
		Settings:        settings,
		PollRate:        rate,
		Pollable:        dir == DirectionInput || e.PollOutput,
		ReadOnWrite:     e.ReadOnWrite,
		matcher:         matcher,
	}, nil
}

// Cards returns the accepted cards in configuration order.
func (r *Registry) Cards() []*Descriptor {
	return r.cards
}

// Outputs returns the output-direction cards in configuration order.
func (r *Registry) Outputs() []*Descriptor {
	return r.outputs
}

// Len returns the number of accepted cards.
func (r *Registry) Len() int {
	return len(r.cards)
}

// Span returns the number of addresses used in kind k, including the base.
func (r *Registry) Span(k Kind) uint32 {
	return r.space.Next(k)
}
