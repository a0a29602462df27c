// Package storage serves the dataset from a relational store. One
// Repository type covers SQLite (modernc.org/sqlite) and PostgreSQL
// (lib/pq); only placeholders and the migration set differ.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"milex/internal/core"
	"milex/internal/dataset"
	"milex/internal/log"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// Repository implements dataset.Accessor over database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ dataset.Accessor = (*Repository)(nil)
	_ dataset.Pinger   = (*Repository)(nil)
)

// OpenSQLite creates the file's directory if needed, migrates the schema
// and opens a single-connection pool.
func OpenSQLite(ctx context.Context, dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(ctx, DialectSQLite, dbPath)
}

// OpenPostgres migrates and connects to the database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	return open(ctx, DialectPostgres, dsn)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*Repository, error) {
	if err := RunMigrations(dialect, dsn); err != nil {
		return nil, core.Unavailable(fmt.Errorf("migrate %s: %w", dialect, err))
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("open %s database: %w", dialect, err))
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.Unavailable(fmt.Errorf("ping %s database: %w", dialect, err))
	}
	return &Repository{db: db, dialect: dialect}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Unavailable(fmt.Errorf("ping %s: %w", r.dialect, err))
	}
	return nil
}

// rebind rewrites ? placeholders into PostgreSQL's $n form.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

const countryColumns = `c.id, c.name, c.continent, COALESCE(c.region, ''), COALESCE(c.iso_code, ''), COALESCE(c.population, 0)`

func (r *Repository) ListCountries(ctx context.Context) ([]core.Country, error) {
	return r.queryCountries(ctx, `SELECT `+countryColumns+` FROM countries c ORDER BY c.id`)
}

func (r *Repository) ListCountriesByContinent(ctx context.Context, continent string) ([]core.Country, error) {
	return r.queryCountries(ctx, `SELECT `+countryColumns+` FROM countries c WHERE c.continent = ? ORDER BY c.id`, continent)
}

func (r *Repository) queryCountries(ctx context.Context, query string, args ...any) ([]core.Country, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("query countries: %w", err))
	}
	defer rows.Close()

	var out []core.Country
	for rows.Next() {
		var c core.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Continent, &c.Region, &c.ISOCode, &c.Population); err != nil {
			return nil, core.Unavailable(fmt.Errorf("scan country: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(fmt.Errorf("iterate countries: %w", err))
	}
	return out, nil
}

func (r *Repository) ExpendituresForCountry(ctx context.Context, countryID int64) ([]core.ExpenditureRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT country_id, year, amount FROM military_expenditure WHERE country_id = ? ORDER BY year`), countryID)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("query expenditures for country %d: %w", countryID, err))
	}
	defer rows.Close()

	var out []core.ExpenditureRecord
	for rows.Next() {
		var rec core.ExpenditureRecord
		if err := rows.Scan(&rec.CountryID, &rec.Year, &rec.Amount); err != nil {
			return nil, core.Unavailable(fmt.Errorf("scan expenditure: %w", err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(fmt.Errorf("iterate expenditures: %w", err))
	}
	return out, nil
}

func (r *Repository) ExpendituresForYear(ctx context.Context, year int) ([]core.CountryAmount, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+countryColumns+`, me.amount
		FROM military_expenditure me
		JOIN countries c ON c.id = me.country_id
		WHERE me.year = ?`), year)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("query expenditures for %d: %w", year, err))
	}
	defer rows.Close()

	var out []core.CountryAmount
	for rows.Next() {
		var (
			c      core.Country
			amount decimal.NullDecimal
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Continent, &c.Region, &c.ISOCode, &c.Population, &amount); err != nil {
			return nil, core.Unavailable(fmt.Errorf("scan expenditure: %w", err))
		}
		out = append(out, core.CountryAmount{Country: c, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(fmt.Errorf("iterate expenditures: %w", err))
	}
	return out, nil
}

// Import upserts countries and records in one transaction. It is the only
// write path and is used by the offline import command.
func (r *Repository) Import(ctx context.Context, countries []core.Country, records []core.ExpenditureRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	countryStmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO countries (id, name, continent, region, iso_code, population)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			continent = excluded.continent,
			region = excluded.region,
			iso_code = excluded.iso_code,
			population = excluded.population`))
	if err != nil {
		return fmt.Errorf("prepare country upsert: %w", err)
	}
	defer countryStmt.Close()

	for _, c := range countries {
		if err = c.Validate(); err != nil {
			return fmt.Errorf("country %d: %w", c.ID, err)
		}
		_, err = countryStmt.ExecContext(ctx, c.ID, c.Name, c.Continent,
			nullString(c.Region), nullString(c.ISOCode), nullInt(c.Population))
		if err != nil {
			return fmt.Errorf("upsert country %q: %w", c.Name, err)
		}
	}

	recordStmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO military_expenditure (country_id, year, amount)
		VALUES (?, ?, ?)
		ON CONFLICT (country_id, year) DO UPDATE SET amount = excluded.amount`))
	if err != nil {
		return fmt.Errorf("prepare expenditure upsert: %w", err)
	}
	defer recordStmt.Close()

	for _, rec := range records {
		if err = rec.Validate(); err != nil {
			return fmt.Errorf("record %d/%d: %w", rec.CountryID, rec.Year, err)
		}
		if _, err = recordStmt.ExecContext(ctx, rec.CountryID, rec.Year, rec.Amount); err != nil {
			return fmt.Errorf("upsert expenditure %d/%d: %w", rec.CountryID, rec.Year, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentStorage).InfoContext(ctx, "Dataset imported",
		log.FieldBackend, string(r.dialect),
		"countries", len(countries),
		"records", len(records))
	return nil
}

// Counts reports how many countries and expenditure rows are stored.
func (r *Repository) Counts(ctx context.Context) (countries, records int, err error) {
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM countries`).Scan(&countries); err != nil {
		return 0, 0, core.Unavailable(fmt.Errorf("count countries: %w", err))
	}
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM military_expenditure`).Scan(&records); err != nil {
		return 0, 0, core.Unavailable(fmt.Errorf("count expenditures: %w", err))
	}
	return countries, records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
