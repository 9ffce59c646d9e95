package scheduler

import "sort"

const urgentThresholdHours = 40.0

// buildMachineStates copies the input machine map into mutable dispatch
// state. Each call to Run owns its own copy, per §5: no shared mutable
// state across concurrent invocations.
func buildMachineStates(in map[string]MachineInput) map[string]*machineState {
	out := make(map[string]*machineState, len(in))
	for name, m := range in {
		var last *string
		if m.LastFormat != nil {
			v := *m.LastFormat
			last = &v
		}
		out[name] = &machineState{
			Name:        name,
			Capacity:    m.Capacity,
			AvailableAt: m.AvailableAt,
			LastFormat:  last,
		}
	}
	return out
}

// groupByProduct buckets tasks by product and computes each group's
// earliest OT due date, per spec §4.4 Phase 0 step 3.
func groupByProduct(tasks []productTask) (map[string][]productTask, map[string]float64) {
	groups := make(map[string][]productTask)
	due := make(map[string]float64)
	for _, t := range tasks {
		groups[t.Product] = append(groups[t.Product], t)
		if cur, ok := due[t.Product]; !ok || t.OTDue < cur {
			due[t.Product] = t.OTDue
		}
	}
	return groups, due
}

// orderedProducts returns product ids ordered by ascending due date,
// ties broken lexicographically, per spec §4.4.
func orderedProducts(due map[string]float64) []string {
	products := make([]string, 0, len(due))
	for p := range due {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if due[products[i]] != due[products[j]] {
			return due[products[i]] < due[products[j]]
		}
		return products[i] < products[j]
	})
	return products
}

// otCompletionTracker accumulates per-OT produced quantities and
// completion times across both dispatch phases, spec §3 "OT completion
// tracker".
type otCompletionTracker struct {
	produced   map[string]map[string]int
	completion map[string]float64
}

func newOTCompletionTracker() *otCompletionTracker {
	return &otCompletionTracker{
		produced:   make(map[string]map[string]int),
		completion: make(map[string]float64),
	}
}

func (t *otCompletionTracker) record(otID, product string, qty int, end float64) {
	if t.produced[otID] == nil {
		t.produced[otID] = make(map[string]int)
	}
	t.produced[otID][product] += qty
	if end > t.completion[otID] {
		t.completion[otID] = end
	}
}

// runPhase runs one phase (urgent or normal) of the two-phase dispatcher,
// spec §4.4: products ordered by earliest due date, each distributed
// across machines, each machine assignment's quantity apportioned across
// its group's contributing OTs in order of OT id.
func runPhase(tasks []productTask, machines map[string]*machineState, setupTimes map[string]float64, defaultSetup float64, tracker *otCompletionTracker) []Block {
	groups, due := groupByProduct(tasks)
	var blocks []Block

	for _, product := range orderedProducts(due) {
		group := groups[product]

		remaining := make(map[string]int)
		otOrder := make([]string, 0, len(group))
		seen := make(map[string]bool)
		totalQty := 0
		for _, t := range group {
			remaining[t.OTID] += t.Quantity
			totalQty += t.Quantity
			if !seen[t.OTID] {
				seen[t.OTID] = true
				otOrder = append(otOrder, t.OTID)
			}
		}
		sort.Strings(otOrder)

		assignments, _ := distribute(product, totalQty, sortedMachines(machines), setupTimes, defaultSetup)

		for _, a := range assignments {
			m := machines[a.Machine]

			if a.SetupTime > 0 {
				blocks = append(blocks, Block{
					Type:    BlockSetup,
					Machine: a.Machine,
					Start:   m.AvailableAt,
					End:     m.AvailableAt + a.SetupTime,
					Format:  product,
				})
			}

			contributors := make([]string, 0, len(otOrder))
			for _, otID := range otOrder {
				if remaining[otID] > 0 {
					contributors = append(contributors, otID)
				}
			}

			totalRemaining := 0
			for _, otID := range contributors {
				totalRemaining += remaining[otID]
			}
			target := a.Qty
			if target > totalRemaining {
				target = totalRemaining
			}

			raw := make([]float64, len(contributors))
			if totalRemaining > 0 {
				for i, otID := range contributors {
					raw[i] = float64(remaining[otID]) / float64(totalRemaining) * float64(target)
				}
			}
			allocated := roundPreserveSum(raw, target)

			// blockOTIDs lists every OT the group still owed demand to,
			// per spec §4.4 step 3 — even one whose proportional share
			// rounds to 0 on this particular block.
			blockOTIDs := make([]string, 0, len(contributors))
			for i, otID := range contributors {
				amt := allocated[i]
				blockOTIDs = append(blockOTIDs, otID)
				if amt <= 0 {
					continue
				}
				remaining[otID] -= amt
				tracker.record(otID, product, amt, a.End)
			}
			sort.Strings(blockOTIDs)

			blocks = append(blocks, Block{
				Type:     BlockProduction,
				Machine:  a.Machine,
				Start:    a.Start,
				End:      a.End,
				Product:  product,
				Quantity: a.Qty,
				OTIDs:    blockOTIDs,
			})

			m.AvailableAt = a.End
			p := product
			m.LastFormat = &p
		}
	}
	return blocks
}

// dispatchTwoPhase drives the full multi-product algorithm of spec §4.4:
// urgent products (OT due <= 40h) first, then the remaining demand.
func dispatchTwoPhase(tasks []productTask, machines map[string]*machineState, setupTimes map[string]float64, defaultSetup float64) ([]Block, *otCompletionTracker) {
	var urgent, normal []productTask
	for _, t := range tasks {
		if t.OTDue <= urgentThresholdHours {
			urgent = append(urgent, t)
		} else {
			normal = append(normal, t)
		}
	}

	tracker := newOTCompletionTracker()
	blocks := runPhase(urgent, machines, setupTimes, defaultSetup, tracker)
	blocks = append(blocks, runPhase(normal, machines, setupTimes, defaultSetup, tracker)...)
	return blocks, tracker
}
