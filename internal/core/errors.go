package core

import (
	"errors"
	"fmt"
	"strconv"
)

// Error kinds surfaced to callers of the query layer. Match with errors.Is.
var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error kind names used on the wire.
const (
	KindDataUnavailable = "data_unavailable"
	KindNotFound        = "not_found"
	KindInvalidArgument = "invalid_argument"
	KindInternal        = "internal"
)

// Unavailable marks err as a DataUnavailable failure unless it already is one.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDataUnavailable, err)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Kind classifies err for boundaries that report errors by name.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	default:
		return KindInternal
	}
}

// CountryRef selects a country either by exact name or by id.
type CountryRef struct {
	ID   int64
	Name string
	byID bool
}

func CountryByName(name string) CountryRef {
	return CountryRef{Name: name}
}

func CountryByID(id int64) CountryRef {
	return CountryRef{ID: id, byID: true}
}

// ByID reports whether the reference selects by id.
func (r CountryRef) ByID() bool {
	return r.byID
}

// Matches uses case-sensitive exact name comparison.
func (r CountryRef) Matches(c Country) bool {
	if r.byID {
		return c.ID == r.ID
	}
	return c.Name == r.Name
}

func (r CountryRef) String() string {
	if r.byID {
		return "id " + strconv.FormatInt(r.ID, 10)
	}
	return strconv.Quote(r.Name)
}
