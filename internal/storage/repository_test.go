package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milex/internal/aggregation"
	"milex/internal/core"
	"milex/internal/log"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "milex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *Repository) {
	t.Helper()
	countries := []core.Country{
		{ID: 1, Name: "Alpha", Continent: "Asia", Region: "East Asia", ISOCode: "ALP"},
		{ID: 2, Name: "Beta", Continent: "Europe", Population: 5000000},
		{ID: 3, Name: "Gamma", Continent: core.SentinelContinent},
	}
	records := []core.ExpenditureRecord{
		{CountryID: 1, Year: 2020, Amount: core.AmountFromFloat(100)},
		{CountryID: 1, Year: 2021, Amount: core.AmountFromFloat(150.5)},
		{CountryID: 1, Year: 2022, Amount: core.NoAmount()},
		{CountryID: 2, Year: 2020, Amount: core.AmountFromFloat(200)},
		{CountryID: 2, Year: 2021, Amount: core.AmountFromFloat(180)},
		{CountryID: 3, Year: 2020, Amount: core.AmountFromFloat(9999)},
	}
	require.NoError(t, repo.Import(context.Background(), countries, records))
}

func TestRepositoryReads(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)
	ctx := context.Background()

	countries, err := repo.ListCountries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 3)
	assert.Equal(t, core.Country{ID: 1, Name: "Alpha", Continent: "Asia", Region: "East Asia", ISOCode: "ALP"}, countries[0])
	assert.Equal(t, int64(5000000), countries[1].Population)

	europe, err := repo.ListCountriesByContinent(ctx, "Europe")
	require.NoError(t, err)
	require.Len(t, europe, 1)
	assert.Equal(t, "Beta", europe[0].Name)

	series, err := repo.ExpendituresForCountry(ctx, 1)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "150.5", series[1].Amount.Decimal.String())
	assert.False(t, series[2].Amount.Valid)

	year, err := repo.ExpendituresForYear(ctx, 2020)
	require.NoError(t, err)
	assert.Len(t, year, 3)

	empty, err := repo.ExpendituresForYear(ctx, 1900)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Ping(ctx))
}

func TestRepositoryImportIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)
	seed(t, repo)

	nc, nr, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, nc)
	assert.Equal(t, 6, nr)
}

func TestRepositoryImportLogsAsStorage(t *testing.T) {
	repo := newTestRepository(t)
	assert.Equal(t, DialectSQLite, repo.Dialect())

	var buf bytes.Buffer
	ctx := log.NewContext(context.Background(), log.New(log.Config{Level: slog.LevelInfo, Output: &buf}))
	countries := []core.Country{{ID: 1, Name: "Alpha", Continent: "Asia"}}
	records := []core.ExpenditureRecord{{CountryID: 1, Year: 2020, Amount: core.AmountFromFloat(1)}}
	require.NoError(t, repo.Import(ctx, countries, records))

	out := buf.String()
	assert.Contains(t, out, "Dataset imported")
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "backend=sqlite")
}

func TestRepositoryKeepsAmountsExact(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	exact := decimal.RequireFromString("12345678901234567.123456789")

	require.NoError(t, repo.Import(ctx,
		[]core.Country{{ID: 1, Name: "Alpha", Continent: "Asia"}},
		[]core.ExpenditureRecord{{CountryID: 1, Year: 2020, Amount: core.NewAmount(exact)}}))

	series, err := repo.ExpendituresForCountry(ctx, 1)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, exact.String(), series[0].Amount.Decimal.String())

	year, err := repo.ExpendituresForYear(ctx, 2020)
	require.NoError(t, err)
	require.Len(t, year, 1)
	assert.True(t, year[0].Amount.Decimal.Equal(exact), year[0].Amount.Decimal.String())
}

func TestRepositoryImportRollsBackOnInvalidRow(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.Import(context.Background(),
		[]core.Country{{ID: 1, Name: "Alpha", Continent: "Asia"}},
		[]core.ExpenditureRecord{{CountryID: 1, Year: 2020, Amount: core.AmountFromFloat(-5)}},
	)
	require.ErrorIs(t, err, core.ErrNegativeAmount)

	nc, _, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, nc)
}

func TestRepositoryServesEngine(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)
	e := aggregation.NewEngine(repo)
	ctx := context.Background()

	rank, err := e.RankByYear(ctx, 2020, 0)
	require.NoError(t, err)
	require.Len(t, rank, 2)
	assert.Equal(t, "Beta", rank[0].Name)

	growth, err := e.GrowthRates(ctx, 2020, 2021, 0)
	require.NoError(t, err)
	require.Len(t, growth, 2)
	assert.Equal(t, "Alpha", growth[0].Country)
	assert.Equal(t, "50.5", growth[0].Rate.String())
}

func TestClosedRepositoryIsUnavailable(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Close())

	_, err := repo.ListCountries(context.Background())
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.ErrorIs(t, repo.Ping(context.Background()), core.ErrDataUnavailable)
}

func TestRebind(t *testing.T) {
	pg := &Repository{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &Repository{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
