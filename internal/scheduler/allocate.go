package scheduler

import "sort"

// roundPreserveSum rounds raw (non-negative, summing to approximately
// total) down to integers whose sum is exactly total, handing any
// residual to the entries with the largest fractional part first. Ties
// in fractional part are broken by ascending index, so callers that
// want a lexicographic (id-based) tie-break should pass raw in that
// order already — this is the "Integer quantity discipline" of spec §9.
func roundPreserveSum(raw []float64, total int) []int {
	out := make([]int, len(raw))
	frac := make([]float64, len(raw))
	sum := 0
	for i, v := range raw {
		f := int(v)
		out[i] = f
		frac[i] = v - float64(f)
		sum += f
	}
	residual := total - sum
	if residual <= 0 {
		return out
	}

	order := make([]int, len(raw))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frac[order[a]] > frac[order[b]]
	})
	for i := 0; i < residual && i < len(order); i++ {
		out[order[i]]++
	}
	return out
}
