package services

import (
	"strconv"
	"strings"

	"milex/internal/core"
)

// NormalizeLimit maps every non-positive limit to 0, meaning unbounded.
func NormalizeLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}

// ParseLimit is permissive: empty, non-numeric and non-positive input all
// mean unbounded.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return NormalizeLimit(n)
}

// ParseYear rejects input that is not an integer. Years outside the
// recorded span are accepted and simply produce empty results.
func ParseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, core.InvalidArgumentf("year %q is not an integer", s)
	}
	return y, nil
}

// ParseOptionalYear treats an empty string as an open bound.
func ParseOptionalYear(s string) (*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	y, err := ParseYear(s)
	if err != nil {
		return nil, err
	}
	return &y, nil
}

// ParseCountryID accepts a positive integer id.
func ParseCountryID(s string) (core.CountryRef, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return core.CountryRef{}, core.InvalidArgumentf("country id %q is not a positive integer", s)
	}
	return core.CountryByID(id), nil
}
