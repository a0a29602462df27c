package memory

import (
	"context"
	"fmt"

	"milex/internal/core"
	"milex/internal/dataset"
)

// Store is an immutable in-memory snapshot. It needs no locking because
// nothing mutates it after New returns.
type Store struct {
	countries []core.Country
	byID      map[int64]core.Country
	byCountry map[int64][]core.ExpenditureRecord
	byYear    map[int][]core.ExpenditureRecord
}

var _ dataset.Accessor = (*Store)(nil)

// New validates the rows and builds the lookup indexes.
func New(countries []core.Country, records []core.ExpenditureRecord) (*Store, error) {
	s := &Store{
		countries: make([]core.Country, 0, len(countries)),
		byID:      make(map[int64]core.Country, len(countries)),
		byCountry: make(map[int64][]core.ExpenditureRecord),
		byYear:    make(map[int][]core.ExpenditureRecord),
	}

	names := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("country %d: %w", c.ID, err)
		}
		if _, dup := s.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate country id %d", c.ID)
		}
		if _, dup := names[c.Name]; dup {
			return nil, fmt.Errorf("duplicate country name %q", c.Name)
		}
		names[c.Name] = struct{}{}
		s.byID[c.ID] = c
		s.countries = append(s.countries, c)
	}

	type key struct {
		id   int64
		year int
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d/%d: %w", r.CountryID, r.Year, err)
		}
		if _, ok := s.byID[r.CountryID]; !ok {
			return nil, fmt.Errorf("record %d/%d: unknown country", r.CountryID, r.Year)
		}
		k := key{r.CountryID, r.Year}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("duplicate record for country %d in %d", r.CountryID, r.Year)
		}
		seen[k] = struct{}{}
		s.byCountry[r.CountryID] = append(s.byCountry[r.CountryID], r)
		s.byYear[r.Year] = append(s.byYear[r.Year], r)
	}
	return s, nil
}

// ListCountries returns every country, sentinel rows included.
func (s *Store) ListCountries(_ context.Context) ([]core.Country, error) {
	return append([]core.Country(nil), s.countries...), nil
}

func (s *Store) ListCountriesByContinent(_ context.Context, continent string) ([]core.Country, error) {
	var out []core.Country
	for _, c := range s.countries {
		if c.Continent == continent {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ExpendituresForCountry(_ context.Context, countryID int64) ([]core.ExpenditureRecord, error) {
	return append([]core.ExpenditureRecord(nil), s.byCountry[countryID]...), nil
}

func (s *Store) ExpendituresForYear(_ context.Context, year int) ([]core.CountryAmount, error) {
	rows := s.byYear[year]
	out := make([]core.CountryAmount, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CountryAmount{Country: s.byID[r.CountryID], Amount: r.Amount})
	}
	return out, nil
}

// Snapshot returns copies of all rows, for the import tool.
func (s *Store) Snapshot() ([]core.Country, []core.ExpenditureRecord) {
	countries := append([]core.Country(nil), s.countries...)
	var records []core.ExpenditureRecord
	for _, c := range s.countries {
		records = append(records, s.byCountry[c.ID]...)
	}
	return countries, records
}
