// Package dataset defines the read-only contract the aggregation engine
// consumes. Realizations live in subpackages (memory, sheets) and in
// internal/storage for relational stores.
package dataset

import (
	"context"

	"milex/internal/core"
)

// Ports for outbound adapters.
type (
	CountryReader interface {
		ListCountries(ctx context.Context) ([]core.Country, error)
		ListCountriesByContinent(ctx context.Context, continent string) ([]core.Country, error)
	}

	// ExpenditureReader returns expenditure rows. Order is unspecified.
	ExpenditureReader interface {
		ExpendituresForCountry(ctx context.Context, countryID int64) ([]core.ExpenditureRecord, error)
		// ExpendituresForYear returns the countries recorded for the year,
		// joined with their possibly absent amount.
		ExpendituresForYear(ctx context.Context, year int) ([]core.CountryAmount, error)
	}

	// Accessor is everything the engine reads. Failures wrap
	// core.ErrDataUnavailable.
	Accessor interface {
		CountryReader
		ExpenditureReader
	}

	// Pinger is implemented by accessors that can check their backing store.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Ping checks a when it supports it; other accessors are always reachable.
func Ping(ctx context.Context, a Accessor) error {
	if p, ok := a.(Pinger); ok {
		return core.Unavailable(p.Ping(ctx))
	}
	return nil
}
