// Package aggregation derives rankings, series and growth figures from the
// rows of a dataset.Accessor. Every operation is a pure function of its
// arguments and the rows read during the call: the Engine keeps no state
// between calls and is safe for concurrent use.
package aggregation

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"milex/internal/core"
	"milex/internal/dataset"
)

var hundred = decimal.NewFromInt(100)

type Engine struct {
	data dataset.Accessor
}

func NewEngine(data dataset.Accessor) *Engine {
	return &Engine{data: data}
}

// isSentinel is the single place staging rows are recognised. Every
// operation drops them before ranking, summing or dividing.
func isSentinel(continent string) bool {
	return continent == core.SentinelContinent
}

// RankByYear orders the recorded amounts of year from largest to smallest,
// ties by name. limit <= 0 means unbounded. A year without data yields an
// empty ranking.
func (e *Engine) RankByYear(ctx context.Context, year, limit int) ([]core.YearRankingEntry, error) {
	rows, err := e.yearSnapshot(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("rank by year %d: %w", year, err)
	}
	out := make([]core.YearRankingEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.YearRankingEntry{
			Name:      r.Country.Name,
			Continent: r.Country.Continent,
			Region:    r.Country.Region,
			Amount:    r.Amount.Decimal,
		})
	}
	slices.SortFunc(out, func(a, b core.YearRankingEntry) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return truncate(out, limit), nil
}

// ExpenditureByYear lists the recorded amounts of year by country name.
func (e *Engine) ExpenditureByYear(ctx context.Context, year int) ([]core.YearRankingEntry, error) {
	rows, err := e.yearSnapshot(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("expenditure by year %d: %w", year, err)
	}
	out := make([]core.YearRankingEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.YearRankingEntry{
			Name:      r.Country.Name,
			Continent: r.Country.Continent,
			Region:    r.Country.Region,
			Amount:    r.Amount.Decimal,
		})
	}
	slices.SortFunc(out, func(a, b core.YearRankingEntry) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

// TimeSeries returns the recorded years of one country inside span, oldest
// first. Unrecorded years are omitted rather than reported as zero.
func (e *Engine) TimeSeries(ctx context.Context, ref core.CountryRef, span core.YearRange) ([]core.SeriesPoint, error) {
	_, points, err := e.series(ctx, ref, span)
	if err != nil {
		return nil, fmt.Errorf("time series for %s: %w", ref, err)
	}
	return points, nil
}

// CountryHistory is the unbounded series together with the resolved name.
func (e *Engine) CountryHistory(ctx context.Context, ref core.CountryRef) (core.CountryHistory, error) {
	c, points, err := e.series(ctx, ref, core.YearRange{})
	if err != nil {
		return core.CountryHistory{}, fmt.Errorf("history for %s: %w", ref, err)
	}
	return core.CountryHistory{Country: c.Name, Points: points}, nil
}

func (e *Engine) series(ctx context.Context, ref core.CountryRef, span core.YearRange) (core.Country, []core.SeriesPoint, error) {
	c, err := e.resolve(ctx, ref)
	if err != nil {
		return core.Country{}, nil, err
	}
	records, err := e.data.ExpendituresForCountry(ctx, c.ID)
	if err != nil {
		return core.Country{}, nil, core.Unavailable(err)
	}
	points := make([]core.SeriesPoint, 0, len(records))
	for _, r := range records {
		if !r.Recorded() || !span.Contains(r.Year) {
			continue
		}
		points = append(points, core.SeriesPoint{Year: r.Year, Amount: r.Amount.Decimal})
	}
	slices.SortFunc(points, func(a, b core.SeriesPoint) int {
		return cmp.Compare(a.Year, b.Year)
	})
	return c, points, nil
}

// resolve finds the country ref points at. Sentinel rows are not countries
// and never resolve.
func (e *Engine) resolve(ctx context.Context, ref core.CountryRef) (core.Country, error) {
	countries, err := e.data.ListCountries(ctx)
	if err != nil {
		return core.Country{}, core.Unavailable(err)
	}
	for _, c := range countries {
		if !isSentinel(c.Continent) && ref.Matches(c) {
			return c, nil
		}
	}
	return core.Country{}, core.NotFoundf("country %s", ref)
}

// GrowthRates ranks the percentage change between two years. Only countries
// recorded in both years with a strictly positive start amount take part,
// so the division never sees a zero or negative denominator.
func (e *Engine) GrowthRates(ctx context.Context, startYear, endYear, limit int) ([]core.GrowthEntry, error) {
	var start, end []core.CountryAmount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		start, err = e.yearSnapshot(gctx, startYear)
		return err
	})
	g.Go(func() (err error) {
		end, err = e.yearSnapshot(gctx, endYear)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("growth rates %d-%d: %w", startYear, endYear, err)
	}

	endByID := make(map[int64]decimal.Decimal, len(end))
	for _, r := range end {
		endByID[r.Country.ID] = r.Amount.Decimal
	}

	out := make([]core.GrowthEntry, 0, len(start))
	for _, r := range start {
		s := r.Amount.Decimal
		if !s.IsPositive() {
			continue
		}
		fin, ok := endByID[r.Country.ID]
		if !ok {
			continue
		}
		out = append(out, core.GrowthEntry{
			Country: r.Country.Name,
			Start:   s,
			End:     fin,
			Rate:    fin.Sub(s).Div(s).Mul(hundred),
		})
	}
	slices.SortFunc(out, func(a, b core.GrowthEntry) int {
		if c := b.Rate.Cmp(a.Rate); c != 0 {
			return c
		}
		return cmp.Compare(a.Country, b.Country)
	})
	return truncate(out, limit), nil
}

// ListAll returns countries by name. An empty continent means no filter;
// asking for the sentinel continent yields nothing.
func (e *Engine) ListAll(ctx context.Context, continent string) ([]core.Country, error) {
	if continent != "" && isSentinel(continent) {
		return []core.Country{}, nil
	}
	var (
		countries []core.Country
		err       error
	)
	if continent == "" {
		countries, err = e.data.ListCountries(ctx)
	} else {
		countries, err = e.data.ListCountriesByContinent(ctx, continent)
	}
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", core.Unavailable(err))
	}
	out := make([]core.Country, 0, len(countries))
	for _, c := range countries {
		if isSentinel(c.Continent) {
			continue
		}
		if continent != "" && c.Continent != continent {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Country) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

// ListContinents returns the distinct real continents, sorted.
func (e *Engine) ListContinents(ctx context.Context) ([]string, error) {
	countries, err := e.data.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list continents: %w", core.Unavailable(err))
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range countries {
		if isSentinel(c.Continent) {
			continue
		}
		if _, ok := seen[c.Continent]; ok {
			continue
		}
		seen[c.Continent] = struct{}{}
		out = append(out, c.Continent)
	}
	slices.Sort(out)
	return out, nil
}

// ContinentSummary totals the recorded amounts of year per continent,
// largest total first.
func (e *Engine) ContinentSummary(ctx context.Context, year int) ([]core.ContinentSummary, error) {
	rows, err := e.yearSnapshot(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("continent summary %d: %w", year, err)
	}
	byContinent := make(map[string]*core.ContinentSummary)
	for _, r := range rows {
		s, ok := byContinent[r.Country.Continent]
		if !ok {
			s = &core.ContinentSummary{Continent: r.Country.Continent, Year: year, Total: decimal.Zero}
			byContinent[r.Country.Continent] = s
		}
		s.Total = s.Total.Add(r.Amount.Decimal)
		s.CountryCount++
	}
	out := make([]core.ContinentSummary, 0, len(byContinent))
	for _, s := range byContinent {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.CountryCount)))
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b core.ContinentSummary) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Continent, b.Continent)
	})
	return out, nil
}

// yearSnapshot reads year and keeps only recorded, non-sentinel rows.
func (e *Engine) yearSnapshot(ctx context.Context, year int) ([]core.CountryAmount, error) {
	rows, err := e.data.ExpendituresForYear(ctx, year)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	out := make([]core.CountryAmount, 0, len(rows))
	for _, r := range rows {
		if isSentinel(r.Country.Continent) || !r.Amount.Valid {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
