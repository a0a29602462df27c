package worker

import (
	"context"
	"time"

	"milex/internal/amqp"
	"milex/internal/core"
	"milex/internal/log"
	"milex/internal/services"
)

// Server is the consuming side of the broker client.
type Server interface {
	Serve(ctx context.Context, handler amqp.Handler) error
}

// QueryWorker answers query messages from the broker with the query service.
type QueryWorker struct {
	queries *services.QueryService
	logger  *log.Logger
}

func NewQueryWorker(queries *services.QueryService, logger *log.Logger) *QueryWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &QueryWorker{queries: queries, logger: logger.WithComponent(log.ComponentWorker)}
}

// Run blocks until ctx is cancelled or the broker fails for good.
func (w *QueryWorker) Run(ctx context.Context, srv Server) error {
	w.logger.InfoContext(ctx, "Query worker started")
	err := srv.Serve(ctx, w.Handle)
	w.logger.InfoContext(ctx, "Query worker stopped", "reason", err)
	return err
}

// Handle executes one request. Every failure, including an unreachable
// dataset, becomes an error reply rather than a redelivery.
func (w *QueryWorker) Handle(ctx context.Context, req *amqp.QueryRequest) *amqp.QueryResponse {
	start := time.Now()
	data, err := w.dispatch(ctx, req)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentWorker).DebugContext(ctx, "Query failed",
			log.FieldOperation, req.Operation,
			log.FieldErrorKind, core.Kind(err),
			log.FieldDuration, time.Since(start).Milliseconds())
		return amqp.NewFailure(err)
	}
	return amqp.NewResult(data)
}

func (w *QueryWorker) dispatch(ctx context.Context, req *amqp.QueryRequest) (any, error) {
	switch req.Operation {
	case log.OpRankByYear:
		return w.queries.RankByYear(ctx, req.Year, req.Limit)
	case log.OpExpenditureByYear:
		return w.queries.ExpenditureByYear(ctx, req.Year)
	case log.OpTimeSeries:
		return w.queries.TimeSeries(ctx, req.CountryRef(), req.Span())
	case log.OpCountryHistory:
		return w.queries.CountryHistory(ctx, req.CountryRef())
	case log.OpGrowthRates:
		if req.StartYear == nil || req.EndYear == nil {
			return nil, core.InvalidArgumentf("growth_rates needs start_year and end_year")
		}
		return w.queries.GrowthRates(ctx, *req.StartYear, *req.EndYear, req.Limit)
	case log.OpListCountries:
		return w.queries.ListCountries(ctx, req.Continent)
	case log.OpListContinents:
		return w.queries.ListContinents(ctx)
	case log.OpContinentSummary:
		return w.queries.ContinentSummary(ctx, req.Year)
	case log.OpPing:
		if err := w.queries.Ping(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "timestamp": time.Now().UTC().Format(time.RFC3339)}, nil
	}
	return nil, core.InvalidArgumentf("unknown operation %q", req.Operation)
}
