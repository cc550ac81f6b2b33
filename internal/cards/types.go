// internal/cards/types.go
package cards

import "strings"

// Family is the closed set of card families the decoder understands.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyDigitalInput
	FamilyDigitalOutput
	FamilyAnalogTemperature
	FamilyAnalogVoltage
)

func (f Family) String() string {
	switch f {
	case FamilyDigitalInput:
		return "digital-input"
	case FamilyDigitalOutput:
		return "digital-output"
	case FamilyAnalogTemperature:
		return "analog-temperature"
	case FamilyAnalogVoltage:
		return "analog-voltage"
	default:
		return "unknown"
	}
}

// Digital reports whether the family is bit based.
func (f Family) Digital() bool {
	return f == FamilyDigitalInput || f == FamilyDigitalOutput
}

// Kind is a register kind. Each kind is a disjoint address space.
type Kind int

const (
	KindCoil Kind = iota
	KindDiscreteInput
	KindInputRegister

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindCoil:
		return "coil"
	case KindDiscreteInput:
		return "discrete-input"
	case KindInputRegister:
		return "input-register"
	default:
		return "unknown"
	}
}

// FunctionCode returns the Modbus read function code for the kind.
func (k Kind) FunctionCode() uint8 {
	switch k {
	case KindCoil:
		return 1
	case KindDiscreteInput:
		return 2
	case KindInputRegister:
		return 4
	default:
		return 0
	}
}

// Direction of a card as seen from the controller.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// TypeInfo is the constant layout metadata of one card type.
type TypeInfo struct {
	Name            string
	Family          Family
	Channels        int
	WordsPerChannel int
	Kind            Kind
	ReadBackKind    Kind
	BitBased        bool
	Direction       Direction
}

var (
	digitalIn = TypeInfo{
		Family: FamilyDigitalInput, Channels: 8, WordsPerChannel: 1,
		Kind: KindDiscreteInput, ReadBackKind: KindDiscreteInput,
		BitBased: true, Direction: DirectionInput,
	}
	digitalOut = TypeInfo{
		Family: FamilyDigitalOutput, Channels: 8, WordsPerChannel: 1,
		Kind: KindCoil, ReadBackKind: KindCoil,
		BitBased: true, Direction: DirectionOutput,
	}
	temperature = TypeInfo{
		Family: FamilyAnalogTemperature, Channels: 8, WordsPerChannel: 2,
		Kind: KindInputRegister, ReadBackKind: KindInputRegister,
		Direction: DirectionInput,
	}
	voltage = TypeInfo{
		Family: FamilyAnalogVoltage, Channels: 8, WordsPerChannel: 2,
		Kind: KindInputRegister, ReadBackKind: KindInputRegister,
		Direction: DirectionInput,
	}
)

// typeTable maps lower-cased type tags and model names to metadata.
var typeTable = map[string]TypeInfo{
	"digital-input":      named(digitalIn, "digital-input"),
	"kl1808":             named(digitalIn, "KL1808"),
	"kl1408":             named(digitalIn, "KL1408"),
	"digital-output":     named(digitalOut, "digital-output"),
	"kl2808":             named(digitalOut, "KL2808"),
	"kl2408":             named(digitalOut, "KL2408"),
	"analog-temperature": named(temperature, "analog-temperature"),
	"kl3208":             named(temperature, "KL3208"),
	"kl3204":             withChannels(named(temperature, "KL3204"), 4),
	"analog-voltage":     named(voltage, "analog-voltage"),
	"kl3468":             named(voltage, "KL3468"),
	"kl3464":             withChannels(named(voltage, "KL3464"), 4),
}

func named(t TypeInfo, name string) TypeInfo {
	t.Name = name
	return t
}

func withChannels(t TypeInfo, n int) TypeInfo {
	t.Channels = n
	return t
}

// LookupType resolves a type tag or model name, case-insensitively.
func LookupType(name string) (TypeInfo, bool) {
	t, ok := typeTable[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}
