// internal/writer/route.go
package writer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseRoute splits a routing-style identifier with a channel suffix,
// e.g. "do-1/3", "kl2808/ch3" or "pumps/channel/2", into target and
// 1-based channel.
func ParseRoute(route string) (target string, channel int, err error) {
	route = strings.Trim(strings.TrimSpace(route), "/")
	i := strings.LastIndex(route, "/")
	if i <= 0 {
		return "", 0, fmt.Errorf("writer: route %q has no channel suffix", route)
	}

	target, suffix := route[:i], route[i+1:]
	target = strings.TrimSuffix(target, "/channel")

	s := strings.ToLower(suffix)
	s = strings.TrimPrefix(s, "channel")
	s = strings.TrimPrefix(s, "ch")

	channel, err = strconv.Atoi(s)
	if err != nil {
		return "", 0, fmt.Errorf("writer: route %q: bad channel %q", route, suffix)
	}
	return target, channel, nil
}

// CoerceBool accepts bool, numbers (non-zero is true) and the strings
// true/1/on and false/0/off, case-insensitive.
func CoerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case int8:
		return x != 0, nil
	case int16:
		return x != 0, nil
	case int32:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case uint:
		return x != 0, nil
	case uint8:
		return x != 0, nil
	case uint16:
		return x != 0, nil
	case uint32:
		return x != 0, nil
	case uint64:
		return x != 0, nil
	case float32:
		return coerceFloat(float64(x))
	case float64:
		return coerceFloat(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrBadValue, x)
		}
		return coerceFloat(f)
	case []byte:
		return coerceString(string(x))
	case string:
		return coerceString(x)
	case fmt.Stringer:
		return coerceString(x.String())
	}
	return false, fmt.Errorf("%w: %T", ErrBadValue, v)
}

func coerceFloat(f float64) (bool, error) {
	if math.IsNaN(f) {
		return false, fmt.Errorf("%w: NaN", ErrBadValue)
	}
	return f != 0, nil
}

func coerceString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadValue, s)
}
