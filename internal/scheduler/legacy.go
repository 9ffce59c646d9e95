package scheduler

import (
	"math"
	"sort"
)

// legacyPriority ranks an OT for the aprovechamiento policy: lower values
// dispatch first. Ties are broken by OT id for determinism (spec §5).
func legacyPriority(o OrderInput) float64 {
	return o.Due / float64(o.Cluster)
}

func sortLegacyOrders(orders []OrderInput) []OrderInput {
	out := make([]OrderInput, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := legacyPriority(out[i]), legacyPriority(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// futuresSameFormat finds OTs of the same format that fall due later than
// ot, within the anticipated-production horizon, per spec §4.5.
func futuresSameFormat(ot OrderInput, all []OrderInput, horizon float64) []OrderInput {
	var out []OrderInput
	for _, o := range all {
		if o.Format == ot.Format && o.Due > ot.Due && o.Due <= ot.Due+horizon {
			out = append(out, o)
		}
	}
	return out
}

// worthAnticipating implements the economic test of spec §4.5: a fixed
// 1.5h average setup saving is compared against the carrying cost of
// holding the anticipated quantity for the horizon. When it is worth it,
// half of the future demand is produced early.
func worthAnticipating(futures []OrderInput, costPerUnitHour, horizon float64) int {
	if len(futures) == 0 {
		return 0
	}
	qtyFuture := 0
	for _, o := range futures {
		qtyFuture += o.Qty
	}
	const setupSavingHours = 1.5
	carryingCost := float64(qtyFuture) * costPerUnitHour * horizon
	if setupSavingHours > carryingCost {
		return int(math.Floor(float64(qtyFuture) * 0.5))
	}
	return 0
}

// runLegacy implements the single-product aprovechamiento policy of
// spec §4.5, grounded on the original anticipated-production scheduler:
// dispatch OTs in priority order, opportunistically producing ahead of
// schedule when it is cheaper than the setup it saves later.
func runLegacy(orders []OrderInput, machines map[string]*machineState, setupTimes map[string]float64, defaultSetup, horizon, costPerUnitHour float64) []Block {
	ordered := sortLegacyOrders(orders)
	var blocks []Block

	for _, ot := range ordered {
		futures := futuresSameFormat(ot, ordered, horizon)
		extraQty := worthAnticipating(futures, costPerUnitHour, horizon)
		totalQty := ot.Qty + extraQty

		var bestMachine *machineState
		bestEnd := 0.0
		bestSetup := 0.0
		for _, m := range sortedMachines(machines) {
			st := setupCost(m.LastFormat, ot.Format, setupTimes, defaultSetup)
			end := m.AvailableAt + st + float64(totalQty)/m.Capacity
			if bestMachine == nil || end < bestEnd {
				bestMachine = m
				bestEnd = end
				bestSetup = st
			}
		}

		start := bestMachine.AvailableAt
		if bestSetup > 0 {
			blocks = append(blocks, Block{
				Type:    BlockSetup,
				Machine: bestMachine.Name,
				Start:   start,
				End:     start + bestSetup,
				Format:  ot.Format,
			})
			start += bestSetup
		}

		blocks = append(blocks, Block{
			Type:       BlockProduction,
			Machine:    bestMachine.Name,
			Start:      start,
			End:        bestEnd,
			Format:     ot.Format,
			Product:    ot.Format,
			Quantity:   totalQty,
			OTIDs:      []string{ot.ID},
			ID:         ot.ID,
			Due:        ot.Due,
			QtyCliente: ot.Qty,
			QtyExtra:   extraQty,
		})

		bestMachine.AvailableAt = bestEnd
		fmtCopy := ot.Format
		bestMachine.LastFormat = &fmtCopy
	}

	return blocks
}
