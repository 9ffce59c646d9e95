package scheduler

import "testing"

func TestSetupCost(t *testing.T) {
	setupTimes := map[string]float64{
		"A-B": 1.5,
		"B-A": 1.5,
		"A-C": 2.0,
	}
	a := "A"

	cases := []struct {
		name string
		prev *string
		next string
		want float64
	}{
		{"nil prev costs nothing", nil, "A", 0},
		{"same format costs nothing", &a, "A", 0},
		{"known pair uses table", &a, "B", 1.5},
		{"unknown pair falls back to default", &a, "Z", 1.5},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := setupCost(c.prev, c.next, setupTimes, 1.5)
			if got != c.want {
				t.Fatalf("setupCost() = %v, want %v", got, c.want)
			}
		})
	}
}
