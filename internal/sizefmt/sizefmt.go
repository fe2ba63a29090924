// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package sizefmt parses the k/m/g/t byte-count suffixes accepted by the
// chase tool's size flags ("-m", "-s", "-T", "-O", "-p", "-F").
package sizefmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts a string like "256", "64k", "1.5m", "2g" into a byte count.
// Suffixes are case-insensitive and denote binary multiples (1024-based).
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("sizefmt: empty size")
	}

	mult := int64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	case 't', 'T':
		mult = 1 << 40
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("sizefmt: invalid size %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("sizefmt: negative size %q", s)
	}
	return int64(f * float64(mult)), nil
}

// MustParse is Parse but panics on error; useful for compile-time-known
// default flag values.
func MustParse(s string) int64 {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
