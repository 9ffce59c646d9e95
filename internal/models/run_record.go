// Package models holds the database-facing shapes of a scheduling run,
// separate from the pure internal/scheduler request/result types.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/scheduler"
)

// RunState tracks a scheduling run's lifecycle as it moves through the
// batch consumer.
type RunState string

const (
	RunStatePending    RunState = "pending"
	RunStateProcessing RunState = "processing"
	RunStateCompleted  RunState = "completed"
	RunStateFailed     RunState = "failed"
)

// RequestDB wraps scheduler.Request for JSONB storage.
type RequestDB scheduler.Request

func (r RequestDB) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RequestDB) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for RequestDB")
	}
	return json.Unmarshal(b, r)
}

// ResultDB wraps scheduler.Result for JSONB storage. It is the zero
// value (nil underlying pointer semantics handled by callers) until a
// run completes.
type ResultDB scheduler.Result

func (r ResultDB) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *ResultDB) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for ResultDB")
	}
	return json.Unmarshal(b, r)
}

// RunRecord represents one scheduling run as stored in the database: the
// request that was submitted, the result once computed, and denormalized
// fields kept alongside the JSONB blobs for cheap querying.
type RunRecord struct {
	RunID       string    `db:"run_id"`
	Source      string    `db:"source"` // "http" or "nats"
	Request     RequestDB `db:"request"`
	Result      ResultDB  `db:"result"`
	State       RunState  `db:"state"`
	Attempts    int       `db:"attempts"`
	LastError   string    `db:"last_error"`
	ReceivedAt  time.Time `db:"received_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	TotalOTs    int       `db:"total_ots"`
	TotalSetups int       `db:"total_setups"`
	AtrasoCount int       `db:"atraso_count"`
}
