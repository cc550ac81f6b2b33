package transport

import "testing"

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in     string
		scheme string
		addr   string
		bad    bool
	}{
		{in: "192.168.1.10:502", scheme: SchemeTCP, addr: "192.168.1.10:502"},
		{in: "tcp://coupler:502", scheme: SchemeTCP, addr: "coupler:502"},
		{in: "RTU:///dev/ttyUSB0", scheme: SchemeRTU, addr: "/dev/ttyUSB0"},
		{in: "", bad: true},
		{in: "udp://x:1", bad: true},
		{in: "tcp://", bad: true},
	}

	for _, tc := range cases {
		scheme, addr, err := ParseEndpoint(tc.in)
		if tc.bad {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: err=%v", tc.in, err)
		}
		if scheme != tc.scheme || addr != tc.addr {
			t.Fatalf("%q: got %s %s", tc.in, scheme, addr)
		}
	}
}
