package backend

import (
	"context"
	"time"

	"milex/internal/dataset"
)

type CleanupFunc func() error

// BackendResult is the accessor the query service is built on, plus the
// function that releases it. Cleanup is nil when nothing needs releasing.
type BackendResult struct {
	Accessor dataset.Accessor
	Cleanup  CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// memory
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// postgres
	DatabaseURL string

	// sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleSheetsCacheTTL     time.Duration
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
