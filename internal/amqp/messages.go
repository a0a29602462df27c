package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"milex/internal/core"
	"milex/internal/log"
)

// QueryRequest names one façade operation and its parameters. Unused
// parameters are omitted.
type QueryRequest struct {
	Operation string    `json:"operation"`
	Year      int       `json:"year,omitempty"`
	StartYear *int      `json:"start_year,omitempty"`
	EndYear   *int      `json:"end_year,omitempty"`
	Country   string    `json:"country,omitempty"`
	CountryID int64     `json:"country_id,omitempty"`
	Continent string    `json:"continent,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryResponse carries either the operation's JSON result or its error kind.
type QueryResponse struct {
	OK        bool            `json:"ok"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

var operations = map[string]bool{
	log.OpRankByYear:        true,
	log.OpExpenditureByYear: true,
	log.OpTimeSeries:        true,
	log.OpCountryHistory:    true,
	log.OpGrowthRates:       true,
	log.OpListCountries:     true,
	log.OpListContinents:    true,
	log.OpContinentSummary:  true,
	log.OpPing:              true,
}

func NewQueryRequest(operation string) *QueryRequest {
	return &QueryRequest{Operation: operation, Timestamp: time.Now()}
}

// Validate checks the request shape. Failures are invalid arguments.
func (r *QueryRequest) Validate() error {
	if !operations[r.Operation] {
		return core.InvalidArgumentf("unknown operation %q", r.Operation)
	}
	switch r.Operation {
	case log.OpTimeSeries, log.OpCountryHistory:
		if r.Country == "" && r.CountryID <= 0 {
			return core.InvalidArgumentf("%s needs country or country_id", r.Operation)
		}
	case log.OpGrowthRates:
		if r.StartYear == nil || r.EndYear == nil {
			return core.InvalidArgumentf("growth_rates needs start_year and end_year")
		}
	}
	return nil
}

// CountryRef prefers the id when both are set.
func (r *QueryRequest) CountryRef() core.CountryRef {
	if r.CountryID > 0 {
		return core.CountryByID(r.CountryID)
	}
	return core.CountryByName(r.Country)
}

func (r *QueryRequest) Span() core.YearRange {
	return core.YearRange{Start: r.StartYear, End: r.EndYear}
}

func (r *QueryRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func QueryRequestFromJSON(data []byte) (*QueryRequest, error) {
	var req QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// NewResult marshals v into a successful response.
func NewResult(v any) *QueryResponse {
	data, err := json.Marshal(v)
	if err != nil {
		return NewFailure(fmt.Errorf("encode result: %w", err))
	}
	return &QueryResponse{OK: true, Data: data}
}

func NewFailure(err error) *QueryResponse {
	return &QueryResponse{ErrorKind: core.Kind(err), Error: err.Error()}
}

// Err turns a failed response back into an error of the same kind.
func (r *QueryResponse) Err() error {
	if r.OK {
		return nil
	}
	switch r.ErrorKind {
	case core.KindNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, r.Error)
	case core.KindInvalidArgument:
		return fmt.Errorf("%w: %s", core.ErrInvalidArgument, r.Error)
	case core.KindDataUnavailable:
		return fmt.Errorf("%w: %s", core.ErrDataUnavailable, r.Error)
	}
	return fmt.Errorf("remote error: %s", r.Error)
}

func (r *QueryResponse) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func QueryResponseFromJSON(data []byte) (*QueryResponse, error) {
	var resp QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
