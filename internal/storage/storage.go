package storage

import (
	"context"

	"github.com/mselser95/dexsim/internal/engine"
)

// Storage is the interface for persisting batch reports.
type Storage interface {
	// SaveReport persists a finished batch report.
	SaveReport(ctx context.Context, report *engine.Report) error

	// Close closes the storage connection.
	Close() error
}
