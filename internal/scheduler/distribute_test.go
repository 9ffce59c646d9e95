package scheduler

import "testing"

func makeState(name string, capacity, availableAt float64) *machineState {
	return &machineState{Name: name, Capacity: capacity, AvailableAt: availableAt}
}

func TestEvaluateSingleMachinePicksFastestFinish(t *testing.T) {
	machines := []*machineState{makeState("M1", 10, 0), makeState("M2", 5, 0)}
	a, finish := evaluateSingleMachine("X", 10, machines, nil, 1.5)
	if a.Machine != "M1" {
		t.Fatalf("machine = %q, want M1", a.Machine)
	}
	if finish != 1 {
		t.Fatalf("finish = %v, want 1", finish)
	}
}

func TestEvaluateSingleMachineTieBreaksByName(t *testing.T) {
	machines := []*machineState{makeState("Z1", 10, 0), makeState("A1", 10, 0)}
	a, _ := evaluateSingleMachine("X", 10, machines, nil, 1.5)
	if a.Machine != "A1" {
		t.Fatalf("machine = %q, want A1 (lexicographically first name)", a.Machine)
	}
}

func TestDistributeSingleMachineIsForcedWithOneMachine(t *testing.T) {
	machines := []*machineState{makeState("M1", 10, 0)}
	assignments, _ := distribute("X", 50, machines, nil, 1.5)
	if len(assignments) != 1 {
		t.Fatalf("len(assignments) = %d, want 1", len(assignments))
	}
}

// TestDistributeLargeQuantityPrefersSplitEvenWithoutBigImprovement exercises
// the qty > 1000 branch of the selection rule: a parallel split that is
// within 10% of, but not 5% better than, the single-machine makespan is
// still chosen once the quantity crosses the large-batch threshold.
func TestDistributeLargeQuantityPrefersSplitEvenWithoutBigImprovement(t *testing.T) {
	machines := []*machineState{makeState("Big", 100, 0), makeState("Small", 1, 0)}
	assignments, _ := distribute("X", 1001, machines, nil, 1.5)
	if len(assignments) < 2 {
		t.Fatalf("len(assignments) = %d, want >= 2 for a qty > 1000 split", len(assignments))
	}
}

func TestDistributeSmallQuantityKeepsSingleMachineWithoutBigImprovement(t *testing.T) {
	machines := []*machineState{makeState("Big", 100, 0), makeState("Small", 1, 0)}
	assignments, _ := distribute("X", 999, machines, nil, 1.5)
	if len(assignments) != 1 {
		t.Fatalf("len(assignments) = %d, want 1 below the large-batch threshold", len(assignments))
	}
}

func TestEvaluateParallelSplitProducesEarlierMakespanThanEitherMachineAlone(t *testing.T) {
	machines := []*machineState{makeState("M1", 10, 0), makeState("M2", 10, 0)}
	_, makespan := evaluateParallelSplit("X", 1000, machines, nil, 1.5)
	if makespan >= 100 {
		t.Fatalf("makespan = %v, want < 100 (single machine alone would take 100)", makespan)
	}
}
