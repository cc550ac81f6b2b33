// internal/writer/types.go
package writer

import (
	"errors"

	"github.com/tamzrod/coupler-io/internal/cards"
	"github.com/tamzrod/coupler-io/internal/decode"
)

var (
	ErrUnknownCard  = errors.New("writer: unknown target card")
	ErrChannelRange = errors.New("writer: channel out of range")
	ErrBadValue     = errors.New("writer: value not coercible to bool")
)

// Command is one single-channel write request.
// The card is named by Target (label, filter, type name, "#N" or "do-N")
// or by Index, the 1-based position among output cards.
type Command struct {
	Target  string `json:"card,omitempty"`
	Index   int    `json:"index,omitempty"`
	Channel int    `json:"channel"`
	Value   any    `json:"value"`
}

// Result is the outcome of an accepted write.
type Result struct {
	Card    *cards.Descriptor `json:"-"`
	Target  string            `json:"card"`
	Channel int               `json:"channel"`
	Address uint16            `json:"address"`
	Value   bool              `json:"value"`

	// ReadBack is set when the card has read-on-write enabled. It carries
	// the device's actual post-write state, or an error reading when the
	// read-back failed.
	ReadBack *decode.Reading `json:"readBack,omitempty"`
}
