package scheduler

import "sort"

// decompose normalizes both input dialects into a uniform list of
// product tasks, per spec §4.2. It also returns, per OT, the set of
// required products and the required quantity of each.
func decompose(orders []OrderInput) (tasks []productTask, otProducts map[string]map[string]bool, otRequired map[string]map[string]int) {
	otProducts = make(map[string]map[string]bool, len(orders))
	otRequired = make(map[string]map[string]int, len(orders))

	for _, o := range orders {
		products := o.canonicalProducts()

		keys := make([]string, 0, len(products))
		for p := range products {
			keys = append(keys, p)
		}
		sort.Strings(keys)

		req := make(map[string]int, len(products))
		set := make(map[string]bool, len(products))
		for _, p := range keys {
			q := products[p]
			tasks = append(tasks, productTask{
				Product:   p,
				Quantity:  q,
				OTID:      o.ID,
				OTDue:     o.Due,
				OTCluster: o.Cluster,
			})
			req[p] = q
			set[p] = true
		}
		otProducts[o.ID] = set
		otRequired[o.ID] = req
	}
	return tasks, otProducts, otRequired
}

// isLegacyBatch reports whether every order in the batch uses the
// single-product format+qty dialect, which selects the aprovechamiento
// policy (spec §4.5) instead of the two-phase dispatcher.
func isLegacyBatch(orders []OrderInput) bool {
	for _, o := range orders {
		if !o.IsLegacy() {
			return false
		}
	}
	return true
}
