package scheduler

import "testing"

func legacyScenarioRequest() *Request {
	return &Request{
		Orders: []OrderInput{
			{ID: "OT1001", Due: 12, Cluster: 5, Format: "A", Qty: 800},
			{ID: "OT1002", Due: 18, Cluster: 4, Format: "B", Qty: 500},
			{ID: "OT1003", Due: 20, Cluster: 3, Format: "A", Qty: 700},
			{ID: "OT1004", Due: 28, Cluster: 2, Format: "C", Qty: 1200},
			{ID: "OT1005", Due: 30, Cluster: 4, Format: "B", Qty: 600},
			{ID: "OT1006", Due: 40, Cluster: 1, Format: "A", Qty: 1500},
			{ID: "OT1007", Due: 45, Cluster: 2, Format: "C", Qty: 900},
		},
		Machines: map[string]MachineInput{
			"Linea_1": {Capacity: 120, AvailableAt: 0},
			"Linea_2": {Capacity: 90, AvailableAt: 0},
		},
		SetupTimes: map[string]float64{
			"A-B": 1.5, "B-A": 1.5,
			"A-C": 2.0, "C-A": 2.0,
			"B-C": 1.0, "C-B": 1.0,
		},
		HorizonteAprovechamiento: 12,
		CostoInventarioUnitario:  0.002,
		DefaultSetupTime:         1.5,
	}
}

func TestLegacyPriorityOrderMatchesDueOverCluster(t *testing.T) {
	req := legacyScenarioRequest()
	ordered := sortLegacyOrders(req.Orders)
	if ordered[0].ID != "OT1001" {
		t.Fatalf("first dispatched = %q, want OT1001 (due/cluster = 2.4, the lowest)", ordered[0].ID)
	}
	if ordered[len(ordered)-1].ID != "OT1006" {
		t.Fatalf("last dispatched = %q, want OT1006 (due/cluster = 40, the highest)", ordered[len(ordered)-1].ID)
	}
}

func TestLegacyFirstOTNotWorthAnticipating(t *testing.T) {
	req := legacyScenarioRequest()
	result, err := Run(req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var first *Block
	for i := range result.Schedule {
		if result.Schedule[i].Type == BlockProduction && result.Schedule[i].ID == "OT1001" {
			first = &result.Schedule[i]
			break
		}
	}
	if first == nil {
		t.Fatalf("OT1001 production block not found")
	}
	// qty_futura=700 (OT1003), ahorro_setup=1.5 <= costo_inv=700*0.002*12=16.8:
	// not worth it.
	if first.QtyExtra != 0 {
		t.Fatalf("QtyExtra = %d, want 0", first.QtyExtra)
	}
	if first.QtyCliente != 800 {
		t.Fatalf("QtyCliente = %d, want 800", first.QtyCliente)
	}
	if first.Start != 0 {
		t.Fatalf("Start = %v, want 0 (first OT on an idle machine)", first.Start)
	}
}

func TestLegacyTotalsAndInvariants(t *testing.T) {
	req := legacyScenarioRequest()
	result, err := Run(req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Summary.TotalOTs != 7 {
		t.Fatalf("TotalOTs = %d, want 7", result.Summary.TotalOTs)
	}

	wantCliente := 800 + 500 + 700 + 1200 + 600 + 1500 + 900
	if result.Summary.QtyTotalCliente != wantCliente {
		t.Fatalf("QtyTotalCliente = %d, want %d", result.Summary.QtyTotalCliente, wantCliente)
	}

	productionBlocks := 0
	for _, b := range result.Schedule {
		if b.Type == BlockProduction {
			productionBlocks++
		}
	}
	if productionBlocks != 7 {
		t.Fatalf("production blocks = %d, want 7 (one per OT)", productionBlocks)
	}
}

func TestRunRejectsDuplicateOTIDs(t *testing.T) {
	req := legacyScenarioRequest()
	req.Orders[1].ID = req.Orders[0].ID
	_, err := Run(req)
	if err == nil {
		t.Fatalf("Run() error = nil, want InvalidInput for duplicate OT id")
	}
	if _, ok := err.(*InvalidInput); !ok {
		t.Fatalf("err = %T, want *InvalidInput", err)
	}
}
