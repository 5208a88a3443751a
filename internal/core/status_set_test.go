package core_test

import (
	"reflect"
	"testing"

	"revenue-balance/internal/core"
)

func TestMergeStatuses(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{"both empty", nil, nil, []string{}},
		{"first occurrence wins", []string{"Open"}, []string{"Paid In Full", "Open"}, []string{"Open", "Paid In Full"}},
		{"duplicates inside incoming", nil, []string{"Pending", "Pending", "Completed"}, []string{"Pending", "Completed"}},
		{"duplicates inside existing", []string{"A", "A"}, []string{"B"}, []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.MergeStatuses(tt.existing, tt.incoming)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeStatuses(%v, %v) = %v, want %v", tt.existing, tt.incoming, got, tt.want)
			}
		})
	}
}

func TestMergeStatuses_Idempotent(t *testing.T) {
	a := []core.InvoiceStatus{core.InvoiceOpen}
	b := []core.InvoiceStatus{core.InvoicePaidInFull, core.InvoiceOpen, "Partially Paid"}

	once := core.MergeStatuses(a, b)
	twice := core.MergeStatuses(once, b)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent: %v vs %v", once, twice)
	}
}

func TestMergeStatuses_DoesNotMutateInputs(t *testing.T) {
	existing := make([]string, 1, 4)
	existing[0] = "Open"
	incoming := []string{"Paid In Full"}

	_ = core.MergeStatuses(existing, incoming)
	if len(existing) != 1 || existing[:2][1] != "" {
		t.Errorf("existing slice was written through: %v", existing[:2])
	}
}

func TestParseStatuses(t *testing.T) {
	got := core.ParseInvoiceStatuses("Paid In Full, Open")
	want := []core.InvoiceStatus{core.InvoicePaidInFull, core.InvoiceOpen}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseInvoiceStatuses = %v, want %v", got, want)
	}

	empty := core.ParseRevenueCommitmentStatuses("")
	if len(empty) != 1 || empty[0] != "" {
		t.Errorf("empty column should yield one empty label, got %v", empty)
	}

	if !core.RevCommitCompleted.Known() || core.RevenueCommitmentStatus("Done").Known() {
		t.Errorf("Known() misclassifies revenue commitment labels")
	}
	if core.ParseOrderStatus("  Billed ") != core.OrderBilled {
		t.Errorf("ParseOrderStatus should trim whitespace")
	}
}
