// internal/writer/resolve.go
package writer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/coupler-io/internal/cards"
)

// positionalPrefixes name output cards by 1-based position ("do-2").
var positionalPrefixes = []string{"#", "do-", "dout-", "out-", "output-"}

// Resolve finds the output card a command addresses.
// Order: label, filter, type name, then position.
func Resolve(outputs []*cards.Descriptor, cmd Command) (*cards.Descriptor, error) {
	target := strings.TrimSpace(cmd.Target)

	if target == "" {
		if cmd.Index > 0 {
			return byIndex(outputs, cmd.Index)
		}
		return nil, fmt.Errorf("%w: no card given", ErrUnknownCard)
	}

	for _, c := range outputs {
		if c.Label != "" && strings.EqualFold(c.Label, target) {
			return c, nil
		}
	}

	for _, c := range outputs {
		if c.Filter == "" {
			continue
		}
		if strings.EqualFold(c.Filter, target) || c.Match(target) {
			return c, nil
		}
	}

	for _, c := range outputs {
		if strings.EqualFold(c.Type.Name, target) {
			return c, nil
		}
	}

	lower := strings.ToLower(target)
	for _, p := range positionalPrefixes {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		n, err := strconv.Atoi(lower[len(p):])
		if err != nil {
			break
		}
		return byIndex(outputs, n)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCard, target)
}

func byIndex(outputs []*cards.Descriptor, n int) (*cards.Descriptor, error) {
	if n < 1 || n > len(outputs) {
		return nil, fmt.Errorf("%w: output #%d (have %d)", ErrUnknownCard, n, len(outputs))
	}
	return outputs[n-1], nil
}
