// internal/cards/filter.go
package cards

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher tests a routing string against a card's filter.
type Matcher func(topic string) bool

// CompileFilter turns a filter into a Matcher.
//
//	/expr/   regular expression
//	a*b      wildcard, * matches any run of characters
//	text     exact match
//
// An empty filter matches the fallback exactly. A regex that does not
// compile is a configuration error.
func CompileFilter(filter, fallback string) (Matcher, error) {
	if filter == "" {
		return func(t string) bool { return t == fallback }, nil
	}

	if len(filter) >= 2 && strings.HasPrefix(filter, "/") && strings.HasSuffix(filter, "/") {
		re, err := regexp.Compile(filter[1 : len(filter)-1])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", filter, err)
		}
		return re.MatchString, nil
	}

	if strings.Contains(filter, "*") {
		parts := strings.Split(filter, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		re := regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
		return re.MatchString, nil
	}

	return func(t string) bool { return t == filter }, nil
}

// Match reports whether topic routes to the card, using the matcher
// compiled at build time.
func (d *Descriptor) Match(topic string) bool {
	if d.matcher == nil {
		return false
	}
	return d.matcher(topic)
}
