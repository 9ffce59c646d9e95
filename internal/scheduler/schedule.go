// Package scheduler implements the pure production-scheduling core: given
// a batch of work orders and machine states, it produces a deterministic
// schedule of SETUP/PRODUCTION blocks plus a summary of lateness and
// throughput. The package never imports a network, database, or config
// package — every dependency on the outside world is injected by its
// callers in internal/batch and internal/httpapi.
package scheduler

import "sort"

// Run validates req and produces the full schedule, branching between the
// legacy single-product aprovechamiento policy and the multi-product
// two-phase dispatcher per spec §4. It never returns a partial schedule:
// any internal inconsistency fails the whole request.
func Run(req *Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	machines := buildMachineStates(req.Machines)

	otDue := make(map[string]float64, len(req.Orders))
	otCluster := make(map[string]int, len(req.Orders))
	for _, o := range req.Orders {
		otDue[o.ID] = o.Due
		otCluster[o.ID] = o.Cluster
	}

	var (
		blocks         []Block
		completion     map[string]float64
		qtyCliente     int
		qtyExtra       int
		horizonteUsado float64
	)

	if isLegacyBatch(req.Orders) {
		blocks = runLegacy(req.Orders, machines, req.SetupTimes, req.DefaultSetupTime, req.HorizonteAprovechamiento, req.CostoInventarioUnitario)
		completion = make(map[string]float64, len(req.Orders))
		for _, b := range blocks {
			if b.Type != BlockProduction {
				continue
			}
			completion[b.ID] = b.End
			qtyCliente += b.QtyCliente
			qtyExtra += b.QtyExtra
		}
		if qtyExtra > 0 {
			horizonteUsado = req.HorizonteAprovechamiento
		}
	} else {
		tasks, _, otRequired := decompose(req.Orders)
		var tracker *otCompletionTracker
		blocks, tracker = dispatchTwoPhase(tasks, machines, req.SetupTimes, req.DefaultSetupTime)
		completion = tracker.completion

		for _, reqs := range otRequired {
			for _, q := range reqs {
				qtyCliente += q
			}
		}

		if err := checkDemandSatisfied(otRequired, tracker.produced); err != nil {
			return nil, err
		}
	}

	if err := checkNoOverlap(blocks); err != nil {
		return nil, err
	}

	finalizeOnTime(blocks, otDue, completion)

	atrasos, atrasosByCluster := buildAtrasos(req.Orders, otDue, otCluster, completion)

	sortSchedule(blocks)
	byMachine := groupByMachine(blocks)

	// totalHoras is the makespan: the latest end time across all blocks,
	// not the sum of their durations, since parallel machines overlap.
	totalHoras := 0.0
	totalSetups := 0
	for _, b := range blocks {
		if b.End > totalHoras {
			totalHoras = b.End
		}
		if b.Type == BlockSetup {
			totalSetups++
		}
	}

	result := &Result{
		Schedule:          blocks,
		ScheduleByMachine: byMachine,
		Summary: Summary{
			TotalOTs:         len(req.Orders),
			TotalSetups:      totalSetups,
			TotalHoras:       totalHoras,
			QtyTotalCliente:  qtyCliente,
			QtyTotalExtra:    qtyExtra,
			Atrasos:          atrasos,
			HorizonteUsado:   horizonteUsado,
			AtrasosByCluster: atrasosByCluster,
		},
	}

	return result, nil
}

// finalizeOnTime performs the final on-time pass of spec §4.4/§4.5: a
// production block is on time iff every OT it contributes to ultimately
// completed by its due date.
func finalizeOnTime(blocks []Block, otDue map[string]float64, completion map[string]float64) {
	for i := range blocks {
		if blocks[i].Type != BlockProduction {
			continue
		}
		ids := blocks[i].OTIDs
		if len(ids) == 0 && blocks[i].ID != "" {
			ids = []string{blocks[i].ID}
		}
		onTime := true
		for _, id := range ids {
			if completion[id] > otDue[id] {
				onTime = false
				break
			}
		}
		blocks[i].OnTime = onTime
	}
}

// buildAtrasos computes the lateness summary of spec §6: one Atraso per
// OT that finished after its due date, plus a per-cluster rollup of late
// OT ids (spec-full supplement, sorted for determinism).
func buildAtrasos(orders []OrderInput, otDue map[string]float64, otCluster map[string]int, completion map[string]float64) ([]Atraso, map[int][]string) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	sort.Strings(ids)

	var atrasos []Atraso
	byCluster := make(map[int][]string)
	for _, id := range ids {
		due := otDue[id]
		comp := completion[id]
		if comp <= due {
			continue
		}
		cluster := otCluster[id]
		atrasos = append(atrasos, Atraso{
			OTID:        id,
			AtrasoHoras: comp - due,
			Cluster:     cluster,
			Due:         due,
			Completion:  comp,
		})
		byCluster[cluster] = append(byCluster[cluster], id)
	}
	return atrasos, byCluster
}

// checkDemandSatisfied enforces the P4 invariant: every OT's produced
// quantity per product must equal exactly what it requested.
func checkDemandSatisfied(required map[string]map[string]int, produced map[string]map[string]int) error {
	for otID, reqs := range required {
		for product, qty := range reqs {
			got := produced[otID][product]
			if got != qty {
				return &InternalInconsistency{
					Invariant: "demand-satisfied",
					Detail:    "OT " + otID + " product " + product + " produced does not match required quantity",
				}
			}
		}
	}
	return nil
}

// checkNoOverlap enforces the P1 invariant: no machine may run two blocks
// that overlap in time.
func checkNoOverlap(blocks []Block) error {
	byMachine := make(map[string][]Block)
	for _, b := range blocks {
		byMachine[b.Machine] = append(byMachine[b.Machine], b)
	}
	for machine, bs := range byMachine {
		sort.Slice(bs, func(i, j int) bool { return bs[i].Start < bs[j].Start })
		for i := 1; i < len(bs); i++ {
			if bs[i].Start < bs[i-1].End {
				return &InternalInconsistency{
					Invariant: "no-overlap",
					Detail:    "machine " + machine + " has overlapping blocks",
				}
			}
		}
	}
	return nil
}

// sortSchedule orders the flat schedule by start time, then machine name,
// per spec §5's determinism requirement.
func sortSchedule(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Start != blocks[j].Start {
			return blocks[i].Start < blocks[j].Start
		}
		return blocks[i].Machine < blocks[j].Machine
	})
}

// groupByMachine builds the schedule_by_machine view, each machine's
// blocks already in start-time order because blocks is pre-sorted.
func groupByMachine(blocks []Block) map[string][]Block {
	out := make(map[string][]Block)
	for _, b := range blocks {
		out[b.Machine] = append(out[b.Machine], b)
	}
	return out
}
