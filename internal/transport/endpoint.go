// internal/transport/endpoint.go
package transport

import (
	"fmt"
	"strings"
)

const (
	SchemeTCP = "tcp"
	SchemeRTU = "rtu"
)

// ParseEndpoint splits "tcp://host:port", "rtu:///dev/ttyUSB0" or a bare
// "host:port" into scheme and address.
func ParseEndpoint(endpoint string) (scheme, addr string, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", "", fmt.Errorf("transport: endpoint required")
	}

	i := strings.Index(endpoint, "://")
	if i < 0 {
		return SchemeTCP, endpoint, nil
	}

	scheme = strings.ToLower(endpoint[:i])
	addr = endpoint[i+3:]
	if addr == "" {
		return "", "", fmt.Errorf("transport: endpoint %q has no address", endpoint)
	}

	switch scheme {
	case SchemeTCP, SchemeRTU:
		return scheme, addr, nil
	default:
		return "", "", fmt.Errorf("transport: unsupported scheme %q", scheme)
	}
}
