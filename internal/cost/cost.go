// Package cost attaches a derived monetary estimate to a completed run,
// for reporting only — it never feeds back into the scheduler core's
// arithmetic, which stays in plain float64 per spec.
package cost

import (
	"github.com/dante-gpu/production-scheduler/internal/scheduler"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Estimator derives the carrying cost of anticipated production from a
// run's summary, using the same unit cost and horizon the aprovechamiento
// policy used to decide whether to anticipate in the first place.
type Estimator struct {
	logger *zap.Logger
}

// NewEstimator builds an Estimator.
func NewEstimator(logger *zap.Logger) *Estimator {
	return &Estimator{logger: logger}
}

// EstimateInventoryCost computes the carrying cost of the extra
// (anticipated) quantity a run produced, over the horizon it was allowed
// to look ahead. It mirrors the economic test in the aprovechamiento
// policy, expressed in decimal arithmetic for reporting precision.
func (e *Estimator) EstimateInventoryCost(summary scheduler.Summary, costPerUnitHour float64) decimal.Decimal {
	qtyExtra := decimal.NewFromInt(int64(summary.QtyTotalExtra))
	unitCost := decimal.NewFromFloat(costPerUnitHour)
	horizon := decimal.NewFromFloat(summary.HorizonteUsado)

	total := qtyExtra.Mul(unitCost).Mul(horizon)

	e.logger.Debug("Estimated inventory carrying cost",
		zap.String("qty_extra", qtyExtra.String()),
		zap.String("total_cost", total.String()),
	)
	return total
}
