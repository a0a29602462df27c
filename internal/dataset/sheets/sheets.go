// Package sheets reads the dataset from a Google spreadsheet laid out as
// one row per country: ID | Country | Continent | Region | ISO | 1960 | ... | 2022.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"milex/internal/cache"
	"milex/internal/core"
	"milex/internal/dataset"
	"milex/internal/dataset/memory"
	"milex/internal/log"
)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// CacheTTL keeps a parsed sheet for this long; zero refetches on
	// every call.
	CacheTTL time.Duration
}

// valueSource is the one Sheets call the accessor makes. Tests replace it.
type valueSource interface {
	values(ctx context.Context) ([][]interface{}, error)
}

// Client implements dataset.Accessor. Calls answer from a parsed snapshot
// of the whole sheet, refetched once CacheTTL has passed.
type Client struct {
	src      valueSource
	sheet    string
	snapshot *cache.Value[*memory.Store]
}

var (
	_ dataset.Accessor = (*Client)(nil)
	_ dataset.Pinger   = (*Client)(nil)
)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Expenditure"
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&apiSource{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: sheet}, sheet, cfg.CacheTTL), nil
}

func newClient(src valueSource, sheet string, ttl time.Duration) *Client {
	return &Client{src: src, sheet: sheet, snapshot: cache.NewValue[*memory.Store](ttl)}
}

// newSheetsService authenticates with a service account, inline JSON first.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

type apiSource struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
}

func (s *apiSource) values(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.rng, err)
	}
	return resp.Values, nil
}

func (c *Client) load(ctx context.Context) (*memory.Store, error) {
	values, err := c.src.values(ctx)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	countries, records, err := parseSheet(values)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("sheet %s: %w", c.sheet, err))
	}
	store, err := memory.New(countries, records)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("sheet %s: %w", c.sheet, err))
	}
	return store, nil
}

func (c *Client) ListCountries(ctx context.Context) ([]core.Country, error) {
	s, err := c.snapshot.Get(ctx, c.load)
	if err != nil {
		return nil, err
	}
	return s.ListCountries(ctx)
}

func (c *Client) ListCountriesByContinent(ctx context.Context, continent string) ([]core.Country, error) {
	s, err := c.snapshot.Get(ctx, c.load)
	if err != nil {
		return nil, err
	}
	return s.ListCountriesByContinent(ctx, continent)
}

func (c *Client) ExpendituresForCountry(ctx context.Context, countryID int64) ([]core.ExpenditureRecord, error) {
	s, err := c.snapshot.Get(ctx, c.load)
	if err != nil {
		return nil, err
	}
	return s.ExpendituresForCountry(ctx, countryID)
}

func (c *Client) ExpendituresForYear(ctx context.Context, year int) ([]core.CountryAmount, error) {
	s, err := c.snapshot.Get(ctx, c.load)
	if err != nil {
		return nil, err
	}
	return s.ExpendituresForYear(ctx, year)
}

// Ping reads the sheet and checks that it parses. It always goes to the
// API.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.load(ctx)
	return err
}

// Refresh drops the cached snapshot.
func (c *Client) Refresh() {
	c.snapshot.Invalidate()
}

func (c *Client) CacheStats() cache.Stats {
	return c.snapshot.Stats()
}
