package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRunStore implements RunStore using a PostgreSQL database.
type PostgresRunStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRunStore creates a new PostgresRunStore from a connected pool.
func NewPostgresRunStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresRunStore {
	return &PostgresRunStore{db: db, logger: logger}
}

// Initialize creates the 'runs' table if it doesn't already exist.
func (prs *PostgresRunStore) Initialize(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR(255) PRIMARY KEY,
		source VARCHAR(20) NOT NULL,
		request JSONB NOT NULL,
		result JSONB,
		state VARCHAR(50) NOT NULL,
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		received_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		total_ots INTEGER,
		total_setups INTEGER,
		atraso_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_state ON runs (state);
	CREATE INDEX IF NOT EXISTS idx_runs_updated_at ON runs (updated_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs (source);
	`
	_, err := prs.db.Exec(ctx, createTableSQL)
	if err != nil {
		prs.logger.Error("Failed to create 'runs' table", zap.Error(err))
		return fmt.Errorf("initializing runs table: %w", err)
	}
	prs.logger.Info("'runs' table checked/created successfully")
	return nil
}

// SaveRun upserts the complete state of a run.
func (prs *PostgresRunStore) SaveRun(ctx context.Context, run *models.RunRecord) error {
	run.UpdatedAt = time.Now().UTC()

	requestJSON, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("marshalling request for SaveRun: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshalling result for SaveRun: %w", err)
	}

	sqlQuery := `
	INSERT INTO runs (
		run_id, source, request, result, state, attempts,
		last_error, received_at, updated_at, total_ots, total_setups, atraso_count
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (run_id) DO UPDATE SET
		source = EXCLUDED.source,
		request = EXCLUDED.request,
		result = EXCLUDED.result,
		state = EXCLUDED.state,
		attempts = EXCLUDED.attempts,
		last_error = EXCLUDED.last_error,
		updated_at = EXCLUDED.updated_at,
		total_ots = EXCLUDED.total_ots,
		total_setups = EXCLUDED.total_setups,
		atraso_count = EXCLUDED.atraso_count
	`
	_, err = prs.db.Exec(ctx, sqlQuery,
		run.RunID,
		run.Source,
		requestJSON,
		resultJSON,
		run.State,
		run.Attempts,
		sql.NullString{String: run.LastError, Valid: run.LastError != ""},
		run.ReceivedAt,
		run.UpdatedAt,
		run.TotalOTs,
		run.TotalSetups,
		run.AtrasoCount,
	)
	if err != nil {
		prs.logger.Error("Failed to save run to DB", zap.String("run_id", run.RunID), zap.Error(err))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("saving run %s (SQL state %s): %w", run.RunID, pgErr.Code, err)
		}
		return fmt.Errorf("saving run %s: %w", run.RunID, err)
	}
	prs.logger.Debug("Successfully saved run to DB", zap.String("run_id", run.RunID))
	return nil
}

// GetRun retrieves a run by its id.
func (prs *PostgresRunStore) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	sqlQuery := `
	SELECT run_id, source, request, result, state, attempts,
		last_error, received_at, updated_at, total_ots, total_setups, atraso_count
	FROM runs WHERE run_id = $1
	`
	run := &models.RunRecord{}
	var lastErrorNullable sql.NullString
	var requestBytes, resultBytes []byte

	err := prs.db.QueryRow(ctx, sqlQuery, runID).Scan(
		&run.RunID,
		&run.Source,
		&requestBytes,
		&resultBytes,
		&run.State,
		&run.Attempts,
		&lastErrorNullable,
		&run.ReceivedAt,
		&run.UpdatedAt,
		&run.TotalOTs,
		&run.TotalSetups,
		&run.AtrasoCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			prs.logger.Debug("Run not found in DB", zap.String("run_id", runID))
			return nil, nil
		}
		prs.logger.Error("Failed to get run from DB", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}

	if err := json.Unmarshal(requestBytes, &run.Request); err != nil {
		return nil, fmt.Errorf("unmarshalling request for run %s: %w", runID, err)
	}
	if len(resultBytes) > 0 {
		if err := json.Unmarshal(resultBytes, &run.Result); err != nil {
			return nil, fmt.Errorf("unmarshalling result for run %s: %w", runID, err)
		}
	}
	if lastErrorNullable.Valid {
		run.LastError = lastErrorNullable.String
	}

	prs.logger.Debug("Successfully retrieved run from DB", zap.String("run_id", run.RunID))
	return run, nil
}

// UpdateRunState updates a run's lifecycle state in the database.
func (prs *PostgresRunStore) UpdateRunState(ctx context.Context, runID string, newState models.RunState, lastError string, attempts int) error {
	sqlQuery := `
	UPDATE runs
	SET state = $1, last_error = $2, attempts = $3, updated_at = $4
	WHERE run_id = $5
	`
	updatedAt := time.Now().UTC()
	cmdTag, err := prs.db.Exec(ctx, sqlQuery,
		newState,
		sql.NullString{String: lastError, Valid: lastError != ""},
		attempts,
		updatedAt,
		runID,
	)
	if err != nil {
		prs.logger.Error("Failed to update run state in DB", zap.String("run_id", runID), zap.Error(err))
		return fmt.Errorf("updating run state for %s: %w", runID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		prs.logger.Warn("UpdateRunState affected no rows, run might not exist", zap.String("run_id", runID))
	}
	prs.logger.Debug("Successfully updated run state in DB", zap.String("run_id", runID), zap.String("new_state", string(newState)))
	return nil
}

func (prs *PostgresRunStore) scanRunRows(rows pgx.Rows) ([]*models.RunRecord, error) {
	var runs []*models.RunRecord
	defer rows.Close()

	for rows.Next() {
		run := &models.RunRecord{}
		var lastErrorNullable sql.NullString
		var requestBytes, resultBytes []byte

		err := rows.Scan(
			&run.RunID,
			&run.Source,
			&requestBytes,
			&resultBytes,
			&run.State,
			&run.Attempts,
			&lastErrorNullable,
			&run.ReceivedAt,
			&run.UpdatedAt,
			&run.TotalOTs,
			&run.TotalSetups,
			&run.AtrasoCount,
		)
		if err != nil {
			prs.logger.Error("Error scanning run row", zap.Error(err))
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if err := json.Unmarshal(requestBytes, &run.Request); err != nil {
			return nil, fmt.Errorf("unmarshalling request for run %s from scan: %w", run.RunID, err)
		}
		if len(resultBytes) > 0 {
			if err := json.Unmarshal(resultBytes, &run.Result); err != nil {
				return nil, fmt.Errorf("unmarshalling result for run %s from scan: %w", run.RunID, err)
			}
		}
		if lastErrorNullable.Valid {
			run.LastError = lastErrorNullable.String
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		prs.logger.Error("Error iterating over run rows", zap.Error(rows.Err()))
		return nil, fmt.Errorf("iterating run rows: %w", rows.Err())
	}
	return runs, nil
}

// GetRunsByState retrieves runs matching a specific state, oldest first.
func (prs *PostgresRunStore) GetRunsByState(ctx context.Context, state models.RunState, limit int) ([]*models.RunRecord, error) {
	sqlQuery := `
	SELECT run_id, source, request, result, state, attempts,
		last_error, received_at, updated_at, total_ots, total_setups, atraso_count
	FROM runs
	WHERE state = $1
	ORDER BY updated_at ASC
	LIMIT $2
	`
	rows, err := prs.db.Query(ctx, sqlQuery, state, limit)
	if err != nil {
		prs.logger.Error("Failed to get runs by state from DB", zap.String("state", string(state)), zap.Error(err))
		return nil, fmt.Errorf("getting runs by state %s: %w", state, err)
	}
	return prs.scanRunRows(rows)
}

// GetRetryableRuns retrieves runs eligible for reprocessing.
func (prs *PostgresRunStore) GetRetryableRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	const maxAttempts = 3
	sqlQuery := `
	SELECT run_id, source, request, result, state, attempts,
		last_error, received_at, updated_at, total_ots, total_setups, atraso_count
	FROM runs
	WHERE (state = $1 OR state = $2 OR (state = $3 AND attempts < $4))
	ORDER BY updated_at ASC
	LIMIT $5
	`
	rows, err := prs.db.Query(ctx, sqlQuery,
		models.RunStatePending,
		models.RunStateProcessing,
		models.RunStateFailed,
		maxAttempts,
		limit,
	)
	if err != nil {
		prs.logger.Error("Failed to get retryable runs from DB", zap.Error(err))
		return nil, fmt.Errorf("getting retryable runs: %w", err)
	}
	return prs.scanRunRows(rows)
}

// DeleteRun removes a run from the store.
func (prs *PostgresRunStore) DeleteRun(ctx context.Context, runID string) error {
	sqlQuery := `DELETE FROM runs WHERE run_id = $1`
	cmdTag, err := prs.db.Exec(ctx, sqlQuery, runID)
	if err != nil {
		prs.logger.Error("Failed to delete run from DB", zap.String("run_id", runID), zap.Error(err))
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		prs.logger.Warn("DeleteRun affected no rows, run might not exist or already deleted", zap.String("run_id", runID))
	}
	prs.logger.Info("Successfully deleted run from DB (or it was already gone)", zap.String("run_id", runID))
	return nil
}

// Close closes the database connection pool.
func (prs *PostgresRunStore) Close() error {
	if prs.db != nil {
		prs.logger.Info("Closing PostgresRunStore database connection pool...")
		prs.db.Close()
		prs.logger.Info("PostgresRunStore database connection pool closed.")
	}
	return nil
}
