package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"milex/internal/core"
	"milex/internal/log"
	"milex/internal/middleware/trace"
)

type (
	errorResponse struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}

	countryJSON struct {
		ID         int64   `json:"id"`
		Name       string  `json:"name"`
		Continent  string  `json:"continent"`
		Region     *string `json:"region"`
		ISOCode    string  `json:"iso_code,omitempty"`
		Population int64   `json:"population,omitempty"`
	}

	rankingJSON struct {
		Name      string  `json:"name"`
		Continent string  `json:"continent"`
		Region    *string `json:"region"`
		Amount    float64 `json:"amount"`
	}

	seriesJSON struct {
		Year   int     `json:"year"`
		Amount float64 `json:"amount"`
	}

	growthJSON struct {
		Country          string  `json:"country"`
		ExpenditureStart float64 `json:"expenditure_start"`
		ExpenditureEnd   float64 `json:"expenditure_end"`
		GrowthRate       float64 `json:"growth_rate"`
	}

	summaryJSON struct {
		Continent          string  `json:"continent"`
		Year               int     `json:"year"`
		TotalExpenditure   float64 `json:"total_expenditure"`
		AverageExpenditure float64 `json:"average_expenditure"`
		CountryCount       int     `json:"country_count"`
	}

	historyJSON struct {
		Country string             `json:"country"`
		Years   map[string]float64 `json:"years"`
	}
)

func amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toCountries(in []core.Country) []countryJSON {
	out := make([]countryJSON, len(in))
	for i, c := range in {
		out[i] = countryJSON{ID: c.ID, Name: c.Name, Continent: c.Continent, Region: optional(c.Region), ISOCode: c.ISOCode, Population: c.Population}
	}
	return out
}

func toRanking(in []core.YearRankingEntry) []rankingJSON {
	out := make([]rankingJSON, len(in))
	for i, e := range in {
		out[i] = rankingJSON{Name: e.Name, Continent: e.Continent, Region: optional(e.Region), Amount: amount(e.Amount)}
	}
	return out
}

func toSeries(in []core.SeriesPoint) []seriesJSON {
	out := make([]seriesJSON, len(in))
	for i, p := range in {
		out[i] = seriesJSON{Year: p.Year, Amount: amount(p.Amount)}
	}
	return out
}

func toGrowth(in []core.GrowthEntry) []growthJSON {
	out := make([]growthJSON, len(in))
	for i, g := range in {
		out[i] = growthJSON{Country: g.Country, ExpenditureStart: amount(g.Start), ExpenditureEnd: amount(g.End), GrowthRate: amount(g.Rate)}
	}
	return out
}

func toSummary(in []core.ContinentSummary) []summaryJSON {
	out := make([]summaryJSON, len(in))
	for i, s := range in {
		out[i] = summaryJSON{
			Continent:          s.Continent,
			Year:               s.Year,
			TotalExpenditure:   amount(s.Total),
			AverageExpenditure: amount(s.Average),
			CountryCount:       s.CountryCount,
		}
	}
	return out
}

func toHistory(h core.CountryHistory) historyJSON {
	years := make(map[string]float64, len(h.Points))
	for _, p := range h.Points {
		years[strconv.Itoa(p.Year)] = amount(p.Amount)
	}
	return historyJSON{Country: h.Country, Years: years}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err without leaking internals: 5xx bodies carry only
// a generic message and the request id, the detail goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	switch status {
	case http.StatusServiceUnavailable:
		resp = errorResponse{Error: "dataset unavailable", RequestID: trace.GetRequestID(r.Context())}
	case http.StatusInternalServerError:
		resp = errorResponse{Error: "internal server error", RequestID: trace.GetRequestID(r.Context())}
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(),
			"Unhandled error", log.FieldPath, r.URL.Path, log.FieldError, err)
	}
	writeJSON(w, status, resp)
}
