// Package store persists scheduling runs so batches submitted over NATS
// or HTTP can be queried after the fact.
package store

import (
	"context"

	"github.com/dante-gpu/production-scheduler/internal/models"
)

// RunStore defines the interface for storing and retrieving scheduling
// run state, allowing for different backend implementations.
type RunStore interface {
	// SaveRun saves the complete state of a run, for initial creation or
	// full updates.
	SaveRun(ctx context.Context, run *models.RunRecord) error

	// GetRun retrieves a run by its id.
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)

	// UpdateRunState updates a run's lifecycle state, last error, and
	// attempt count, and bumps its updated_at timestamp.
	UpdateRunState(ctx context.Context, runID string, newState models.RunState, lastError string, attempts int) error

	// GetRunsByState retrieves runs matching a specific state.
	GetRunsByState(ctx context.Context, state models.RunState, limit int) ([]*models.RunRecord, error)

	// GetRetryableRuns retrieves runs eligible for reprocessing: pending,
	// processing, or failed with few attempts.
	GetRetryableRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)

	// DeleteRun removes a run from the store.
	DeleteRun(ctx context.Context, runID string) error

	// Initialize sets up the store, e.g. creating tables if needed.
	Initialize(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
