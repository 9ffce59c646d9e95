package scheduler

import "testing"

func TestRoundPreserveSumExactSum(t *testing.T) {
	raw := []float64{33.33, 33.33, 33.34}
	out := roundPreserveSum(raw, 100)
	sum := 0
	for _, v := range out {
		sum += v
	}
	if sum != 100 {
		t.Fatalf("sum = %d, want 100", sum)
	}
}

func TestRoundPreserveSumLargestRemainderFirst(t *testing.T) {
	// 10 split three ways proportional to 1:1:1 leaves a residual of 1,
	// which must go to the earliest index on an exact fractional tie.
	raw := []float64{10.0 / 3, 10.0 / 3, 10.0 / 3}
	out := roundPreserveSum(raw, 10)
	if out[0] != 4 || out[1] != 3 || out[2] != 3 {
		t.Fatalf("out = %v, want [4 3 3]", out)
	}
}

func TestRoundPreserveSumNoResidual(t *testing.T) {
	raw := []float64{2, 3, 5}
	out := roundPreserveSum(raw, 10)
	if out[0] != 2 || out[1] != 3 || out[2] != 5 {
		t.Fatalf("out = %v, want [2 3 5]", out)
	}
}
