// Package iprange parses the "start-end" IPv4 ranges used to scope upload
// credentials to a set of client addresses.
package iprange

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Unrestricted is the configuration value meaning "no IP scoping".
const Unrestricted = "*"

// ErrInvalidRange is returned for text that is not a "start-end" pair of
// dotted-quad IPv4 addresses.
var ErrInvalidRange = errors.New("invalid ip range")

// Range is an inclusive range of IPv4 addresses.
type Range struct {
	Start netip.Addr
	End   netip.Addr
}

// Parse splits text on "-" and validates both halves as IPv4 addresses.
// It does not check that Start <= End.
func Parse(text string) (Range, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q: want start-end", ErrInvalidRange, text)
	}

	start, err := parseIPv4(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: start: %v", ErrInvalidRange, text, err)
	}
	end, err := parseIPv4(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: end: %v", ErrInvalidRange, text, err)
	}

	return Range{Start: start, End: end}, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return addr, nil
}

// String renders the range as "start-end".
func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Contains reports whether addr lies within the range, bounds included.
// A reversed range contains nothing.
func (r Range) Contains(addr netip.Addr) bool {
	return addr.Is4() && r.Start.Compare(addr) <= 0 && addr.Compare(r.End) <= 0
}
