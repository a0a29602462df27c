package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milex/internal/core"
	"milex/internal/dataset/memory"
	"milex/internal/log"
)

func newTestService(t *testing.T) *QueryService {
	t.Helper()
	store, err := memory.New(
		[]core.Country{
			{ID: 1, Name: "Alpha", Continent: "Asia"},
			{ID: 2, Name: "Beta", Continent: "Europe"},
			{ID: 3, Name: "Gamma", Continent: core.SentinelContinent},
		},
		[]core.ExpenditureRecord{
			{CountryID: 1, Year: 2020, Amount: core.AmountFromFloat(100)},
			{CountryID: 1, Year: 2021, Amount: core.AmountFromFloat(150)},
			{CountryID: 2, Year: 2020, Amount: core.AmountFromFloat(200)},
			{CountryID: 2, Year: 2021, Amount: core.AmountFromFloat(180)},
			{CountryID: 3, Year: 2020, Amount: core.AmountFromFloat(9999)},
		},
	)
	require.NoError(t, err)
	return NewQueryService(store, log.Discard())
}

func TestQueryServiceRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	rank, err := s.RankByYear(ctx, 2020, 0)
	require.NoError(t, err)
	require.Len(t, rank, 2)
	assert.Equal(t, "Beta", rank[0].Name)
	assert.Equal(t, "Alpha", rank[1].Name)

	top, err := s.RankByYear(ctx, 2020, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Beta", top[0].Name)

	series, err := s.TimeSeries(ctx, core.CountryByName("Alpha"), core.Between(2020, 2021))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 2020, series[0].Year)
	assert.Equal(t, 2021, series[1].Year)

	growth, err := s.GrowthRates(ctx, 2020, 2021, 0)
	require.NoError(t, err)
	require.Len(t, growth, 2)
	assert.Equal(t, "50", growth[0].Rate.String())
	assert.Equal(t, "-10", growth[1].Rate.String())

	_, err = s.TimeSeries(ctx, core.CountryByName("Delta"), core.Between(2020, 2021))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestQueryServiceNegativeLimitIsUnbounded(t *testing.T) {
	s := newTestService(t)

	rank, err := s.RankByYear(context.Background(), 2020, -3)
	require.NoError(t, err)
	assert.Len(t, rank, 2)

	growth, err := s.GrowthRates(context.Background(), 2020, 2021, -1)
	require.NoError(t, err)
	assert.Len(t, growth, 2)
}

func TestQueryServiceOutOfRangeYearIsEmpty(t *testing.T) {
	s := newTestService(t)

	rank, err := s.RankByYear(context.Background(), 1066, 10)
	require.NoError(t, err)
	assert.Empty(t, rank)

	summary, err := s.ContinentSummary(context.Background(), 3000)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestQueryServiceListings(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	countries, err := s.ListCountries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, countries, 2)

	none, err := s.ListCountries(ctx, core.SentinelContinent)
	require.NoError(t, err)
	assert.Empty(t, none)

	continents, err := s.ListContinents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia", "Europe"}, continents)

	h, err := s.CountryHistory(ctx, core.CountryByID(2))
	require.NoError(t, err)
	assert.Equal(t, "Beta", h.Country)

	require.NoError(t, s.Ping(ctx))
}

type downAccessor struct{}

var errDown = errors.New("database is down")

func (downAccessor) ListCountries(context.Context) ([]core.Country, error) { return nil, errDown }
func (downAccessor) ListCountriesByContinent(context.Context, string) ([]core.Country, error) {
	return nil, errDown
}
func (downAccessor) ExpendituresForCountry(context.Context, int64) ([]core.ExpenditureRecord, error) {
	return nil, errDown
}
func (downAccessor) ExpendituresForYear(context.Context, int) ([]core.CountryAmount, error) {
	return nil, errDown
}
func (downAccessor) Ping(context.Context) error { return errDown }

func TestQueryServicePropagatesUnavailable(t *testing.T) {
	var buf bytes.Buffer
	s := NewQueryService(downAccessor{}, log.New(log.Config{Level: slog.LevelDebug, Output: &buf}))
	ctx := context.Background()

	rank, err := s.RankByYear(ctx, 2020, 5)
	assert.Nil(t, rank)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.Equal(t, core.KindDataUnavailable, core.Kind(err))

	assert.ErrorIs(t, s.Ping(ctx), core.ErrDataUnavailable)

	assert.Contains(t, buf.String(), "error_kind=data_unavailable")
	assert.Contains(t, buf.String(), "component=query")
}

func TestParseParams(t *testing.T) {
	assert.Equal(t, 0, ParseLimit(""))
	assert.Equal(t, 0, ParseLimit("ten"))
	assert.Equal(t, 0, ParseLimit("-4"))
	assert.Equal(t, 7, ParseLimit(" 7 "))

	y, err := ParseYear("2020")
	require.NoError(t, err)
	assert.Equal(t, 2020, y)

	_, err = ParseYear("20x0")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	open, err := ParseOptionalYear("")
	require.NoError(t, err)
	assert.Nil(t, open)

	ref, err := ParseCountryID("12")
	require.NoError(t, err)
	assert.True(t, ref.ByID())
	assert.Equal(t, int64(12), ref.ID)

	_, err = ParseCountryID("0")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
