package scheduler

import "fmt"

// InvalidInput is returned when the core's preconditions are violated.
// The external validator (out of scope here, see spec §1) is expected to
// catch most of these before the core ever runs; these checks are a
// defensive backstop, per spec §7 class 1.
type InvalidInput struct {
	Field  string
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid input: field %q: %s", e.Field, e.Reason)
}

// InternalInconsistency signals that an emitted schedule violated one of
// the §3/§8 invariants. This is always a bug, never a user-facing
// condition, per spec §7 class 3: no partial schedule is ever returned.
type InternalInconsistency struct {
	Invariant string
	Detail    string
}

func (e *InternalInconsistency) Error() string {
	return fmt.Sprintf("internal inconsistency (%s): %s", e.Invariant, e.Detail)
}

// validate enforces the preconditions the core is allowed to assume.
func validate(req *Request) error {
	if len(req.Orders) == 0 {
		return &InvalidInput{Field: "orders", Reason: "must not be empty"}
	}
	if len(req.Machines) == 0 {
		return &InvalidInput{Field: "machines", Reason: "must not be empty"}
	}
	seen := map[string]bool{}
	for _, o := range req.Orders {
		if o.ID == "" {
			return &InvalidInput{Field: "orders[].id", Reason: "must not be empty"}
		}
		if seen[o.ID] {
			return &InvalidInput{Field: "orders[].id", Reason: fmt.Sprintf("duplicate OT id %q", o.ID)}
		}
		seen[o.ID] = true
		if o.Due < 0 {
			return &InvalidInput{Field: "orders[].due", Reason: fmt.Sprintf("OT %q: due must be non-negative", o.ID)}
		}
		if o.Cluster <= 0 {
			return &InvalidInput{Field: "orders[].cluster", Reason: fmt.Sprintf("OT %q: cluster must be positive", o.ID)}
		}
		products := o.canonicalProducts()
		if len(products) == 0 {
			return &InvalidInput{Field: "orders[].products", Reason: fmt.Sprintf("OT %q: must resolve to at least one product task", o.ID)}
		}
		for p, q := range products {
			if q < 1 {
				return &InvalidInput{Field: "orders[].products", Reason: fmt.Sprintf("OT %q: product %q quantity must be >= 1", o.ID, p)}
			}
		}
	}
	for name, m := range req.Machines {
		if m.Capacity <= 0 {
			return &InvalidInput{Field: "machines[].capacity", Reason: fmt.Sprintf("machine %q: capacity must be positive", name)}
		}
		if m.AvailableAt < 0 {
			return &InvalidInput{Field: "machines[].available_at", Reason: fmt.Sprintf("machine %q: available_at must be non-negative", name)}
		}
	}
	for k, v := range req.SetupTimes {
		if v < 0 {
			return &InvalidInput{Field: "setup_times", Reason: fmt.Sprintf("key %q: setup time must be non-negative", k)}
		}
	}
	if req.DefaultSetupTime < 0 {
		return &InvalidInput{Field: "default_setup_time", Reason: "must be non-negative"}
	}
	if req.HorizonteAprovechamiento <= 0 {
		return &InvalidInput{Field: "horizonte_aprovechamiento", Reason: "must be positive"}
	}
	if req.CostoInventarioUnitario < 0 {
		return &InvalidInput{Field: "costo_inventario_unitario", Reason: "must be non-negative"}
	}
	return nil
}
