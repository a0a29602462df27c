package core

import "github.com/shopspring/decimal"

// Result types carry their wire names. Amounts encode as exact decimal
// strings; the HTTP boundary converts them to JSON numbers.

// YearRankingEntry is one row of a per-year ranking.
type YearRankingEntry struct {
	Name      string          `json:"name"`
	Continent string          `json:"continent"`
	Region    string          `json:"region,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// SeriesPoint is one recorded year of a country's series.
type SeriesPoint struct {
	Year   int             `json:"year"`
	Amount decimal.Decimal `json:"amount"`
}

// GrowthEntry compares one country between two years. Rate is a percentage.
type GrowthEntry struct {
	Country string          `json:"country"`
	Start   decimal.Decimal `json:"expenditure_start"`
	End     decimal.Decimal `json:"expenditure_end"`
	Rate    decimal.Decimal `json:"growth_rate"`
}

// ContinentSummary aggregates the recorded amounts of one continent in a year.
type ContinentSummary struct {
	Continent    string          `json:"continent"`
	Year         int             `json:"year"`
	Total        decimal.Decimal `json:"total_expenditure"`
	Average      decimal.Decimal `json:"average_expenditure"`
	CountryCount int             `json:"country_count"`
}

// CountryHistory is the unbounded series of one country.
type CountryHistory struct {
	Country string        `json:"country"`
	Points  []SeriesPoint `json:"points"`
}
