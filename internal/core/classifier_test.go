package core_test

import (
	"reflect"
	"testing"

	"revenue-balance/internal/core"

	"github.com/shopspring/decimal"
)

func line(status core.OrderStatus, balance string, invoice, revcom string) core.LineRow {
	return core.LineRow{
		OrderStatus:               status,
		Balance:                   decimal.RequireFromString(balance),
		InvoiceStatuses:           core.ParseInvoiceStatuses(invoice),
		RevenueCommitmentStatuses: core.ParseRevenueCommitmentStatuses(revcom),
	}
}

func TestClassify_EmptyReturnsNil(t *testing.T) {
	if got := core.Classify(nil); got != nil {
		t.Errorf("expected nil result for no lines, got %+v", got)
	}
}

func TestClassify_MixedOrder(t *testing.T) {
	// Line A: paid, positive → deferred. Line B: open, negative → unbilled.
	result := core.Classify([]core.LineRow{
		line(core.OrderPendingBilling, "100", "Paid In Full", "Completed"),
		line(core.OrderPendingBilling, "-30", "Open", "Pending"),
	})
	if result == nil {
		t.Fatal("expected a result")
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want int64
	}{
		{"deferred", result.Deferred, 100},
		{"unearned", result.Unearned, 0},
		{"unbilled", result.Unbilled, 30},
		{"balance", result.Balance, 70},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("%s: want %d, got %s", c.name, c.want, c.got)
		}
	}

	wantInv := []core.InvoiceStatus{core.InvoicePaidInFull, core.InvoiceOpen}
	if !reflect.DeepEqual(result.InvoiceStatuses, wantInv) {
		t.Errorf("invoice statuses: want %v, got %v", wantInv, result.InvoiceStatuses)
	}
	wantRev := []core.RevenueCommitmentStatus{core.RevCommitCompleted, core.RevCommitPending}
	if !reflect.DeepEqual(result.RevenueCommitmentStatuses, wantRev) {
		t.Errorf("revenue commitment statuses: want %v, got %v", wantRev, result.RevenueCommitmentStatuses)
	}
	if result.LineCount != 2 {
		t.Errorf("line count: want 2, got %d", result.LineCount)
	}

	if code := core.ResolveCompletion(*result, decimal.NewFromInt(500)); code != core.CompletionIncomplete {
		t.Errorf("expected INCOMPLETE for mixed statuses, got %s", code)
	}
}

func TestClassify_Buckets(t *testing.T) {
	tests := []struct {
		name     string
		lines    []core.LineRow
		deferred string
		unearned string
		unbilled string
		balance  string
	}{
		{
			name: "all paid positive lines are deferred",
			lines: []core.LineRow{
				line(core.OrderBilled, "40.25", "Paid In Full", "Pending"),
				line(core.OrderBilled, "59.75", "Paid In Full", "Completed"),
			},
			deferred: "100", unearned: "0", unbilled: "0", balance: "100",
		},
		{
			name: "all negative lines are unbilled",
			lines: []core.LineRow{
				line(core.OrderPendingBilling, "-10.10", "Open", "Pending"),
				line(core.OrderPendingBilling, "-5", "", "Pending"),
			},
			deferred: "0", unearned: "0", unbilled: "15.10", balance: "-15.10",
		},
		{
			name: "open invoice positive balance is unearned",
			lines: []core.LineRow{
				line(core.OrderBilled, "80", "Open", "Completed"),
			},
			deferred: "0", unearned: "80", unbilled: "0", balance: "80",
		},
		{
			name: "mixed invoice labels on one line are unearned",
			lines: []core.LineRow{
				line(core.OrderBilled, "80", "Paid In Full,Open", "Completed"),
			},
			deferred: "0", unearned: "80", unbilled: "0", balance: "80",
		},
		{
			name: "repeated paid label on one line still counts as paid",
			lines: []core.LineRow{
				line(core.OrderBilled, "12", "Paid In Full,Paid In Full", "Completed"),
			},
			deferred: "12", unearned: "0", unbilled: "0", balance: "12",
		},
		{
			name: "zero balance changes no bucket",
			lines: []core.LineRow{
				line(core.OrderClosed, "0", "Open", "Pending"),
			},
			deferred: "0", unearned: "0", unbilled: "0", balance: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := core.Classify(tt.lines)
			if r == nil {
				t.Fatal("expected a result")
			}
			assertDecimal(t, "deferred", r.Deferred, tt.deferred)
			assertDecimal(t, "unearned", r.Unearned, tt.unearned)
			assertDecimal(t, "unbilled", r.Unbilled, tt.unbilled)
			assertDecimal(t, "balance", r.Balance, tt.balance)
			if err := r.Validate(); err != nil {
				t.Errorf("unexpected invariant violation: %v", err)
			}
		})
	}
}

func TestClassify_BalanceIsSignedSumOfLines(t *testing.T) {
	balances := []string{"100", "-30", "0", "12.34", "-0.01", "250", "-99.99"}
	var lines []core.LineRow
	sum := decimal.Zero
	for i, b := range balances {
		inv := "Open"
		if i%2 == 0 {
			inv = "Paid In Full"
		}
		lines = append(lines, line(core.OrderPendingBilling, b, inv, "Pending"))
		sum = sum.Add(decimal.RequireFromString(b))
	}

	r := core.Classify(lines)
	if !r.Balance.Equal(sum) {
		t.Errorf("balance: want %s, got %s", sum, r.Balance)
	}
	// Buckets partition the lines: deferred + unearned - unbilled also equals the total.
	if partition := r.Deferred.Add(r.Unearned).Sub(r.Unbilled); !partition.Equal(sum) {
		t.Errorf("bucket partition: want %s, got %s", sum, partition)
	}
}

func TestClassify_LastLineStatusWins(t *testing.T) {
	r := core.Classify([]core.LineRow{
		line(core.OrderBilled, "1", "Paid In Full", "Completed"),
		line(core.OrderPendingBilling, "1", "Paid In Full", "Completed"),
	})
	if r.OrderStatus != core.OrderPendingBilling {
		t.Errorf("order status: want %q, got %q", core.OrderPendingBilling, r.OrderStatus)
	}
}

func TestApplyLine_DoesNotMutatePrior(t *testing.T) {
	prior := core.BalanceResult{
		InvoiceStatuses: []core.InvoiceStatus{core.InvoiceOpen},
		Deferred:        decimal.NewFromInt(5),
	}
	next := core.ApplyLine(prior, line(core.OrderBilled, "10", "Paid In Full", "Completed"))

	if len(prior.InvoiceStatuses) != 1 {
		t.Errorf("prior statuses changed: %v", prior.InvoiceStatuses)
	}
	if !prior.Deferred.Equal(decimal.NewFromInt(5)) {
		t.Errorf("prior deferred changed: %s", prior.Deferred)
	}
	if !next.Deferred.Equal(decimal.NewFromInt(15)) {
		t.Errorf("next deferred: want 15, got %s", next.Deferred)
	}
	if prior.OrderStatus != "" {
		t.Errorf("prior order status changed: %q", prior.OrderStatus)
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: want %s, got %s", name, want, got)
	}
}
