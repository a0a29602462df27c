package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"milex/internal/aggregation"
	"milex/internal/core"
	"milex/internal/dataset"
	"milex/internal/log"
)

// QueryService is the stable set of read operations the HTTP and AMQP
// boundaries call. It normalizes inputs, delegates to the aggregation
// engine and logs the outcome. Errors keep their core kind.
type QueryService struct {
	data   dataset.Accessor
	engine *aggregation.Engine
	logger *log.Logger
}

func NewQueryService(data dataset.Accessor, logger *log.Logger) *QueryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &QueryService{
		data:   data,
		engine: aggregation.NewEngine(data),
		logger: logger.WithComponent(log.ComponentQuery),
	}
}

// RankByYear returns the top spenders of year. limit <= 0 is unbounded.
func (s *QueryService) RankByYear(ctx context.Context, year, limit int) ([]core.YearRankingEntry, error) {
	limit = NormalizeLimit(limit)
	fields := log.NewFields().WithOperation(log.OpRankByYear).WithYears(year, 0).WithLimit(limit)
	return observe(ctx, s, fields, func() ([]core.YearRankingEntry, error) {
		return s.engine.RankByYear(ctx, year, limit)
	})
}

func (s *QueryService) ExpenditureByYear(ctx context.Context, year int) ([]core.YearRankingEntry, error) {
	fields := log.NewFields().WithOperation(log.OpExpenditureByYear).WithYears(year, 0)
	return observe(ctx, s, fields, func() ([]core.YearRankingEntry, error) {
		return s.engine.ExpenditureByYear(ctx, year)
	})
}

// TimeSeries slices one country's history. Either bound may be open.
func (s *QueryService) TimeSeries(ctx context.Context, ref core.CountryRef, span core.YearRange) ([]core.SeriesPoint, error) {
	fields := log.NewFields().WithOperation(log.OpTimeSeries).WithCountry(ref.String())
	if span.Start != nil {
		fields[log.FieldStartYear] = *span.Start
	}
	if span.End != nil {
		fields[log.FieldEndYear] = *span.End
	}
	return observe(ctx, s, fields, func() ([]core.SeriesPoint, error) {
		return s.engine.TimeSeries(ctx, ref, span)
	})
}

func (s *QueryService) CountryHistory(ctx context.Context, ref core.CountryRef) (core.CountryHistory, error) {
	fields := log.NewFields().WithOperation(log.OpCountryHistory).WithCountry(ref.String())
	start := time.Now()
	h, err := s.engine.CountryHistory(ctx, ref)
	s.report(ctx, fields, len(h.Points), start, err)
	return h, err
}

func (s *QueryService) GrowthRates(ctx context.Context, startYear, endYear, limit int) ([]core.GrowthEntry, error) {
	limit = NormalizeLimit(limit)
	fields := log.NewFields().WithOperation(log.OpGrowthRates).WithYears(startYear, endYear).WithLimit(limit)
	return observe(ctx, s, fields, func() ([]core.GrowthEntry, error) {
		return s.engine.GrowthRates(ctx, startYear, endYear, limit)
	})
}

// ListCountries lists countries, optionally restricted to one continent.
func (s *QueryService) ListCountries(ctx context.Context, continent string) ([]core.Country, error) {
	fields := log.NewFields().WithOperation(log.OpListCountries)
	if continent != "" {
		fields[log.FieldContinent] = continent
	}
	return observe(ctx, s, fields, func() ([]core.Country, error) {
		return s.engine.ListAll(ctx, continent)
	})
}

func (s *QueryService) ListContinents(ctx context.Context) ([]string, error) {
	fields := log.NewFields().WithOperation(log.OpListContinents)
	return observe(ctx, s, fields, func() ([]string, error) {
		return s.engine.ListContinents(ctx)
	})
}

func (s *QueryService) ContinentSummary(ctx context.Context, year int) ([]core.ContinentSummary, error) {
	fields := log.NewFields().WithOperation(log.OpContinentSummary).WithYears(year, 0)
	return observe(ctx, s, fields, func() ([]core.ContinentSummary, error) {
		return s.engine.ContinentSummary(ctx, year)
	})
}

// Ping checks the backing store. Accessors without a connection always pass.
func (s *QueryService) Ping(ctx context.Context) error {
	err := dataset.Ping(ctx, s.data)
	if err != nil {
		s.logger.WarnContext(ctx, "Dataset ping failed",
			log.NewFields().WithOperation(log.OpPing).WithError(err).ToSlice()...)
	}
	return err
}

func observe[T any](ctx context.Context, s *QueryService, fields log.LogFields, fn func() ([]T, error)) ([]T, error) {
	start := time.Now()
	out, err := fn()
	s.report(ctx, fields, len(out), start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// report logs at debug on success. Caller mistakes are warnings, store
// failures are errors.
func (s *QueryService) report(ctx context.Context, fields log.LogFields, n int, start time.Time, err error) {
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	if err == nil {
		fields[log.FieldResults] = n
		s.logger.DebugContext(ctx, "Query served", fields.ToSlice()...)
		return
	}
	fields.WithError(err)
	fields[log.FieldErrorKind] = core.Kind(err)
	level := slog.LevelError
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrInvalidArgument) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "Query failed", fields.ToSlice()...)
}
