package http

import (
	"context"
	"net/http"
	"time"

	"milex/internal/log"
	"milex/internal/middleware/ratelimit"
	"milex/internal/middleware/security"
	"milex/internal/middleware/trace"
	"milex/internal/services"
)

type Options struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// Server exposes the query service as a read-only JSON API.
type Server struct {
	*http.Server
	queries  *services.QueryService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	timeout  time.Duration
	started  time.Time
}

func NewServer(addr string, queries *services.QueryService, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	s := &Server{
		queries:  queries,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		timeout:  opts.RequestTimeout,
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/test-connection", s.handleTestConnection)
	mux.HandleFunc("GET /api/continents", s.handleContinents)
	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("GET /api/countries/{continent}", s.handleCountries)
	mux.HandleFunc("GET /api/countries/continent/{continent}", s.handleCountries)
	mux.HandleFunc("GET /api/military-expenditure/{year}", s.handleExpenditureByYear)
	mux.HandleFunc("GET /api/military-expenditure/year/{year}", s.handleExpenditureByYear)
	mux.HandleFunc("GET /api/military-expenditure/country/{id}", s.handleCountrySeriesByID)
	mux.HandleFunc("GET /api/top-expenditure/{year}", s.handleTopExpenditure)
	mux.HandleFunc("GET /api/top-expenditure/{year}/{limit}", s.handleTopExpenditure)
	mux.HandleFunc("GET /api/country-expenditure/{country}", s.handleCountryHistory)
	mux.HandleFunc("GET /api/country-expenditure/{country}/{startYear}/{endYear}", s.handleCountrySeries)
	mux.HandleFunc("GET /api/growth-rates/{startYear}/{endYear}", s.handleGrowthRates)
	mux.HandleFunc("GET /api/growth-rates/{startYear}/{endYear}/{limit}", s.handleGrowthRates)
	mux.HandleFunc("GET /api/continent-summary/{year}", s.handleContinentSummary)

	// Outermost first: logger, trace, probe detection, headers, CORS,
	// rate limit, deadline.
	var h http.Handler = mux
	h = s.withDeadline(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.NewCORS(opts.CORSAllowedOrigins).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withDeadline bounds every request; the deadline reaches the accessor.
func (s *Server) withDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded", log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, please try again later"})
}

// Shutdown stops the limiter's janitor and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
