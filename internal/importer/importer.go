// Package importer loads the JSON dataset into a SQL store.
package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"milex/internal/dataset/memory"
	"milex/internal/log"
	"milex/internal/storage"
)

type Options struct {
	DataDirectory string
	Dialect       storage.Dialect
	// DSN is the SQLite path or the PostgreSQL URL.
	DSN string
}

type Stats struct {
	Countries int
	Records   int
	Duration  time.Duration
}

// Run reads the dataset and opens (and migrates) the store in parallel,
// then upserts everything in one transaction.
func Run(ctx context.Context, opts Options, logger *log.Logger) (Stats, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentImport)
	start := time.Now()

	var (
		store *memory.Store
		repo  *storage.Repository
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := memory.NewFromFiles(opts.DataDirectory)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		store = s
		return nil
	})
	g.Go(func() error {
		r, err := open(gctx, opts)
		if err != nil {
			return fmt.Errorf("open %s store: %w", opts.Dialect, err)
		}
		repo = r
		return nil
	})
	if err := g.Wait(); err != nil {
		if repo != nil {
			repo.Close()
		}
		return Stats{}, err
	}
	defer repo.Close()

	countries, records := store.Snapshot()
	logger.InfoContext(ctx, "Importing dataset",
		log.FieldOperation, log.OpImport,
		log.FieldBackend, string(repo.Dialect()),
		"countries", len(countries),
		"records", len(records))

	if err := repo.Import(ctx, countries, records); err != nil {
		return Stats{}, fmt.Errorf("import: %w", err)
	}
	nc, nr, err := repo.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Countries: nc, Records: nr, Duration: time.Since(start)}
	logger.InfoContext(ctx, "Import complete",
		"countries", stats.Countries,
		"records", stats.Records,
		log.FieldDuration, stats.Duration.Milliseconds())
	return stats, nil
}

func open(ctx context.Context, opts Options) (*storage.Repository, error) {
	switch opts.Dialect {
	case storage.DialectSQLite:
		return storage.OpenSQLite(ctx, opts.DSN)
	case storage.DialectPostgres:
		return storage.OpenPostgres(ctx, opts.DSN)
	}
	return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
}
