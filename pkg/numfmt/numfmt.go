// Package numfmt parses and prints the unsigned quantities used by the API
// and the CLI.
package numfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseUint64 parses a base-10 unsigned integer, rejecting signs,
// separators and values above 2^64-1.
func ParseUint64(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid digit %q", r)
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("number out of range: %s", s)
	}
	return v, nil
}

// FormatSeconds renders a duration in seconds as a compact "1d 2h 3m 4s" string.
func FormatSeconds(total uint64) string {
	if total == 0 {
		return "0s"
	}
	units := []struct {
		suffix string
		size   uint64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		if n := total / u.size; n > 0 {
			parts = append(parts, strconv.FormatUint(n, 10)+u.suffix)
			total %= u.size
		}
	}
	return strings.Join(parts, " ")
}
