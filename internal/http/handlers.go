package http

import (
	"net/http"
	"time"

	"milex/internal/core"
	"milex/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady fails while the dataset cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	limits, traffic := s.limiter.GetMetrics(), s.tracer.GetMetrics()
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": limits.ClientCount, "rejected": limits.Rejected},
		"traffic": map[string]any{
			"requests":      traffic.TotalRequests,
			"server_errors": traffic.ServerErrors,
			"suspicious":    s.detector.GetMetrics().SuspiciousRequests,
		},
	}
	status, code := "ready", http.StatusOK
	if err := s.queries.Ping(r.Context()); err != nil {
		checks["dataset"] = "unavailable"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["dataset"] = "ok"
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.queries.Ping(r.Context()); err != nil {
		writeJSON(w, statusFor(err), map[string]any{"success": false, "error": "dataset unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleContinents(w http.ResponseWriter, r *http.Request) {
	continents, err := s.queries.ListContinents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, continents)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.queries.ListCountries(r.Context(), continentParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCountries(countries))
}

func (s *Server) handleExpenditureByYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.queries.ExpenditureByYear(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRanking(rows))
}

func (s *Server) handleTopExpenditure(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.queries.RankByYear(r.Context(), year, pathLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRanking(rows))
}

func (s *Server) handleCountrySeriesByID(w http.ResponseWriter, r *http.Request) {
	ref, err := services.ParseCountryID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSeries(w, r, ref)
}

func (s *Server) handleCountrySeries(w http.ResponseWriter, r *http.Request) {
	s.writeSeries(w, r, core.CountryByName(r.PathValue("country")))
}

func (s *Server) writeSeries(w http.ResponseWriter, r *http.Request, ref core.CountryRef) {
	span, err := yearSpan(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	points, err := s.queries.TimeSeries(r.Context(), ref, span)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSeries(points))
}

func (s *Server) handleCountryHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.queries.CountryHistory(r.Context(), core.CountryByName(r.PathValue("country")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistory(h))
}

func (s *Server) handleGrowthRates(w http.ResponseWriter, r *http.Request) {
	start, err := pathYear(r, "startYear")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := pathYear(r, "endYear")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.queries.GrowthRates(r.Context(), start, end, pathLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrowth(rows))
}

func (s *Server) handleContinentSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.queries.ContinentSummary(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(rows))
}
