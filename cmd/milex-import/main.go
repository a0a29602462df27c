package main

import (
	"context"
	"flag"
	"os"

	"milex/internal/cli"
	"milex/internal/importer"
	"milex/internal/log"
	"milex/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentImport)
	cfg := cli.LoadAndValidateConfig(logger)

	var (
		dataDir = flag.String("data", cfg.DataDirectory, "directory holding all_military_data.json")
		target  = flag.String("target", string(storage.DialectSQLite), "sqlite or postgres")
		dsn     = flag.String("dsn", "", "SQLite path or PostgreSQL URL (defaults to SQLITE_DB_PATH / DATABASE_URL)")
	)
	flag.Parse()

	opts := importer.Options{DataDirectory: *dataDir, Dialect: storage.Dialect(*target), DSN: *dsn}
	if opts.DSN == "" {
		opts.DSN = cfg.SQLiteDBPath
		if opts.Dialect == storage.DialectPostgres {
			opts.DSN = cfg.DatabaseURL
		}
	}
	if opts.DSN == "" {
		logger.Error("No database configured", "target", *target)
		os.Exit(2)
	}

	if _, err := importer.Run(context.Background(), opts, logger); err != nil {
		logger.Error("Import failed", log.FieldError, err)
		os.Exit(1)
	}
}
