package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SentinelContinent marks staging rows that duplicate real countries. Rows
// carrying it are never part of a ranking, sum or listing.
const SentinelContinent = "current_data"

type (
	Country struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Continent  string `json:"continent"`
		Region     string `json:"region,omitempty"` // empty when not classified
		ISOCode    string `json:"iso_code,omitempty"`
		Population int64  `json:"population,omitempty"` // 0 when unknown
	}

	// ExpenditureRecord is one (country, year) observation in millions.
	// An invalid Amount means "not recorded", which is not the same as zero.
	ExpenditureRecord struct {
		CountryID int64
		Year      int
		Amount    decimal.NullDecimal
	}

	// CountryAmount is a year snapshot row: the country joined with its amount.
	CountryAmount struct {
		Country Country
		Amount  decimal.NullDecimal
	}
)

var (
	ErrEmptyName      = errors.New("empty country name")
	ErrEmptyContinent = errors.New("empty continent")
	ErrInvalidYear    = errors.New("invalid year")
	ErrNegativeAmount = errors.New("negative amount")
)

func (c Country) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Continent) == "" {
		return ErrEmptyContinent
	}
	return nil
}

func (r ExpenditureRecord) Validate() error {
	if r.Year <= 0 {
		return ErrInvalidYear
	}
	if r.Amount.Valid && r.Amount.Decimal.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Recorded reports whether the record carries a value.
func (r ExpenditureRecord) Recorded() bool {
	return r.Amount.Valid
}

// NewAmount wraps a present value.
func NewAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// AmountFromFloat is a convenience for fixtures and parsed JSON numbers.
func AmountFromFloat(f float64) decimal.NullDecimal {
	return NewAmount(decimal.NewFromFloat(f))
}

// NoAmount is the "not recorded" value.
func NoAmount() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
