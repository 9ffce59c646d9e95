package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/config"
	"github.com/dante-gpu/production-scheduler/internal/cost"
	"github.com/dante-gpu/production-scheduler/internal/models"
	"github.com/dante-gpu/production-scheduler/internal/scheduler"
	"github.com/dante-gpu/production-scheduler/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func writeJSONResponse(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func writeErrorResponse(w http.ResponseWriter, logger *zap.Logger, statusCode int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}
	if err != nil {
		errorResponse["details"] = err.Error()
	}
	if encodeErr := json.NewEncoder(w).Encode(errorResponse); encodeErr != nil {
		logger.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}

// httpStatusForSchedulerError maps the core's error classes to HTTP
// statuses, per spec §7: malformed input is a client error, an internal
// inconsistency is never the caller's fault.
func httpStatusForSchedulerError(err error) int {
	switch err.(type) {
	case *scheduler.InvalidInput:
		return http.StatusBadRequest
	case *scheduler.InternalInconsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// scheduleResponse augments the core result with a derived monetary
// estimate, computed outside the pure scheduler core.
type scheduleResponse struct {
	*scheduler.Result
	EstimatedInventoryCost string `json:"estimated_inventory_cost"`
}

// ScheduleHandler handles POST /v1/schedule: runs a batch synchronously
// and returns the full schedule.
func ScheduleHandler(cfg *config.Config, estimator *cost.Estimator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduler.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Failed to decode schedule request", zap.Error(err))
			writeErrorResponse(w, logger, http.StatusBadRequest, "invalid request body", err)
			return
		}
		applyPolicyDefaults(&req, cfg)

		result, err := scheduler.Run(&req)
		if err != nil {
			logger.Error("Scheduling run failed", zap.Error(err))
			writeErrorResponse(w, logger, httpStatusForSchedulerError(err), err.Error(), err)
			return
		}

		estimated := estimator.EstimateInventoryCost(result.Summary, req.CostoInventarioUnitario)
		writeJSONResponse(w, logger, http.StatusOK, scheduleResponse{
			Result:                 result,
			EstimatedInventoryCost: estimated.String(),
		})
	}
}

// applyPolicyDefaults fills in the configured defaults for any policy
// knob the caller omitted.
func applyPolicyDefaults(req *scheduler.Request, cfg *config.Config) {
	if req.HorizonteAprovechamiento == 0 {
		req.HorizonteAprovechamiento = cfg.HorizonteAprovechamiento
	}
	if req.CostoInventarioUnitario == 0 {
		req.CostoInventarioUnitario = cfg.CostoInventarioUnitario
	}
	if req.DefaultSetupTime == 0 {
		req.DefaultSetupTime = cfg.DefaultSetupTime
	}
}

// SubmitBatchHandler handles POST /v1/batches: accepts a batch, persists
// it, runs it within the request (the service has no separate worker pool
// beyond the NATS consumer), stores the outcome, and returns the run id
// under which GET /v1/batches/{id} serves it.
func SubmitBatchHandler(cfg *config.Config, runStore store.RunStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduler.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Failed to decode batch submission", zap.Error(err))
			writeErrorResponse(w, logger, http.StatusBadRequest, "invalid request body", err)
			return
		}
		applyPolicyDefaults(&req, cfg)

		runID := uuid.New().String()
		run := &models.RunRecord{
			RunID:      runID,
			Source:     "http",
			Request:    models.RequestDB(req),
			State:      models.RunStateProcessing,
			ReceivedAt: time.Now().UTC(),
		}
		if err := runStore.SaveRun(r.Context(), run); err != nil {
			logger.Error("Failed to save submitted batch", zap.String("run_id", runID), zap.Error(err))
			writeErrorResponse(w, logger, http.StatusInternalServerError, "failed to persist batch", err)
			return
		}

		result, err := scheduler.Run(&req)
		if err != nil {
			logger.Error("Scheduling run failed", zap.String("run_id", runID), zap.Error(err))
			if updateErr := runStore.UpdateRunState(r.Context(), runID, models.RunStateFailed, err.Error(), 1); updateErr != nil {
				logger.Error("Failed to persist failed batch state", zap.String("run_id", runID), zap.Error(updateErr))
			}
			writeErrorResponse(w, logger, httpStatusForSchedulerError(err), err.Error(), err)
			return
		}

		run.Result = models.ResultDB(*result)
		run.State = models.RunStateCompleted
		run.TotalOTs = result.Summary.TotalOTs
		run.TotalSetups = result.Summary.TotalSetups
		run.AtrasoCount = len(result.Summary.Atrasos)
		if err := runStore.SaveRun(r.Context(), run); err != nil {
			logger.Error("Failed to persist completed batch", zap.String("run_id", runID), zap.Error(err))
		}

		writeJSONResponse(w, logger, http.StatusAccepted, map[string]string{
			"run_id": runID,
			"state":  string(run.State),
		})
	}
}

// GetBatchHandler handles GET /v1/batches/{id}: returns a previously
// submitted batch's stored state and result, if any.
func GetBatchHandler(runStore store.RunStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")

		run, err := runStore.GetRun(r.Context(), runID)
		if err != nil {
			logger.Error("Failed to load batch", zap.String("run_id", runID), zap.Error(err))
			writeErrorResponse(w, logger, http.StatusInternalServerError, "failed to load batch", err)
			return
		}
		if run == nil {
			writeErrorResponse(w, logger, http.StatusNotFound, "batch not found", nil)
			return
		}

		writeJSONResponse(w, logger, http.StatusOK, run)
	}
}

// HealthHandler reports service health, reflecting NATS connectivity the
// way every other entrypoint in this stack does.
func HealthHandler(isNATSConnected func() bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		msg := "scheduling service is healthy"

		if !isNATSConnected() {
			status = http.StatusServiceUnavailable
			msg = "NATS connection is down"
			logger.Warn("Health check: NATS is not connected")
		}

		writeJSONResponse(w, logger, status, map[string]string{"status": msg})
	}
}
