package http

import (
	"net/http"
	"strings"

	"milex/internal/core"
	"milex/internal/services"
)

// pathYear reads a required integer year from the route.
func pathYear(r *http.Request, name string) (int, error) {
	return services.ParseYear(r.PathValue(name))
}

// pathLimit is permissive: a missing or malformed limit is unbounded.
func pathLimit(r *http.Request) int {
	return services.ParseLimit(r.PathValue("limit"))
}

// yearSpan reads the bounds from the route, falling back to the startYear
// and endYear query parameters; either may be absent.
func yearSpan(r *http.Request) (core.YearRange, error) {
	get := func(name string) string {
		if v := r.PathValue(name); v != "" {
			return v
		}
		return r.URL.Query().Get(name)
	}
	start, err := services.ParseOptionalYear(get("startYear"))
	if err != nil {
		return core.YearRange{}, err
	}
	end, err := services.ParseOptionalYear(get("endYear"))
	if err != nil {
		return core.YearRange{}, err
	}
	return core.YearRange{Start: start, End: end}, nil
}

// continentParam reads the continent from the route or ?continent=.
func continentParam(r *http.Request) string {
	if v := strings.TrimSpace(r.PathValue("continent")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("continent"))
}
