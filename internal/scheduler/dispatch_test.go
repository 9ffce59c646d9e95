package scheduler

import (
	"reflect"
	"testing"
)

func multiProductRequest() *Request {
	return &Request{
		Orders: []OrderInput{
			{ID: "OT0", Due: 20, Cluster: 5, Products: map[string]int{"A": 200, "B": 300}},
			{ID: "OT1", Due: 50, Cluster: 3, Products: map[string]int{"A": 100}},
		},
		Machines: map[string]MachineInput{
			"M1": {Capacity: 20, AvailableAt: 0},
			"M2": {Capacity: 15, AvailableAt: 0},
		},
		SetupTimes: map[string]float64{
			"A-B": 1.5, "B-A": 1.5,
		},
		HorizonteAprovechamiento: 12,
		CostoInventarioUnitario:  0.002,
		DefaultSetupTime:         1.5,
	}
}

func TestDispatchTwoPhaseSplitsUrgentFromNormal(t *testing.T) {
	req := multiProductRequest()
	tasks, _, _ := decompose(req.Orders)
	machines := buildMachineStates(req.Machines)
	blocks, tracker := dispatchTwoPhase(tasks, machines, req.SetupTimes, req.DefaultSetupTime)

	if len(blocks) == 0 {
		t.Fatalf("expected at least one block")
	}
	if tracker.produced["OT0"]["A"] != 200 {
		t.Fatalf("OT0 product A produced = %d, want 200", tracker.produced["OT0"]["A"])
	}
	if tracker.produced["OT0"]["B"] != 300 {
		t.Fatalf("OT0 product B produced = %d, want 300", tracker.produced["OT0"]["B"])
	}
	if tracker.produced["OT1"]["A"] != 100 {
		t.Fatalf("OT1 product A produced = %d, want 100", tracker.produced["OT1"]["A"])
	}
	// OT0 (due 20) is urgent and OT1 (due 50) is not, so their shared
	// product A is produced in separate phases and no block lists both.
	for _, b := range blocks {
		if b.Type == BlockProduction && len(b.OTIDs) > 1 {
			t.Fatalf("block %+v mixes urgent and normal OTs", b)
		}
	}
}

func TestRunMultiProductDemandSatisfiedAndNoOverlap(t *testing.T) {
	req := multiProductRequest()
	result, err := Run(req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Run's own checkDemandSatisfied call already failed the request with
	// an *InternalInconsistency if totals were off; re-derive the same
	// totals here directly to pin the expectation down in the test.
	tasks, _, otRequired := decompose(req.Orders)
	machines := buildMachineStates(req.Machines)
	_, tracker := dispatchTwoPhase(tasks, machines, req.SetupTimes, req.DefaultSetupTime)
	for otID, reqs := range otRequired {
		for product, qty := range reqs {
			if tracker.produced[otID][product] != qty {
				t.Fatalf("OT %s product %s produced %d, want %d", otID, product, tracker.produced[otID][product], qty)
			}
		}
	}

	byMachine := map[string][]Block{}
	for _, b := range result.Schedule {
		byMachine[b.Machine] = append(byMachine[b.Machine], b)
	}
	for machine, bs := range byMachine {
		for i := 1; i < len(bs); i++ {
			if bs[i].Start < bs[i-1].End {
				t.Fatalf("machine %s has overlapping blocks: %+v then %+v", machine, bs[i-1], bs[i])
			}
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	req := multiProductRequest()
	r1, err1 := Run(req)
	r2, err2 := Run(req)
	if err1 != nil || err2 != nil {
		t.Fatalf("Run() errors = %v, %v", err1, err2)
	}
	if !reflect.DeepEqual(r1.Schedule, r2.Schedule) {
		t.Fatalf("schedules differ across identical runs:\n%+v\n%+v", r1.Schedule, r2.Schedule)
	}
	if !reflect.DeepEqual(r1.Summary, r2.Summary) {
		t.Fatalf("summaries differ across identical runs:\n%+v\n%+v", r1.Summary, r2.Summary)
	}
}

func TestRunRejectsEmptyMachines(t *testing.T) {
	req := multiProductRequest()
	req.Machines = map[string]MachineInput{}
	_, err := Run(req)
	if _, ok := err.(*InvalidInput); !ok {
		t.Fatalf("err = %T, want *InvalidInput", err)
	}
}
