package core_test

import (
	"testing"
	"time"

	"revenue-balance/internal/core"

	"github.com/shopspring/decimal"
)

func TestResolveCompletion(t *testing.T) {
	paid := []core.InvoiceStatus{core.InvoicePaidInFull}
	completed := []core.RevenueCommitmentStatus{core.RevCommitCompleted}

	tests := []struct {
		name   string
		result core.BalanceResult
		total  string
		want   core.CompletionCode
	}{
		{
			name:   "zero total is complete regardless of status",
			result: core.BalanceResult{OrderStatus: core.OrderOpen, InvoiceStatuses: []core.InvoiceStatus{core.InvoiceOpen}},
			total:  "0",
			want:   core.CompletionComplete,
		},
		{
			name:   "cancelled order is complete",
			result: core.BalanceResult{OrderStatus: core.OrderCancelled},
			total:  "1500.00",
			want:   core.CompletionComplete,
		},
		{
			name:   "fully recognized and paid billed order",
			result: core.BalanceResult{OrderStatus: core.OrderBilled, InvoiceStatuses: paid, RevenueCommitmentStatuses: completed},
			total:  "1500.00",
			want:   core.CompletionComplete,
		},
		{
			name:   "fully recognized and paid closed order",
			result: core.BalanceResult{OrderStatus: core.OrderClosed, InvoiceStatuses: paid, RevenueCommitmentStatuses: completed},
			total:  "1500.00",
			want:   core.CompletionComplete,
		},
		{
			name:   "paid and recognized but still pending billing",
			result: core.BalanceResult{OrderStatus: core.OrderPendingBilling, InvoiceStatuses: paid, RevenueCommitmentStatuses: completed},
			total:  "1500.00",
			want:   core.CompletionIncomplete,
		},
		{
			name: "more than one commitment status",
			result: core.BalanceResult{
				OrderStatus:               core.OrderClosed,
				InvoiceStatuses:           paid,
				RevenueCommitmentStatuses: []core.RevenueCommitmentStatus{core.RevCommitCompleted, core.RevCommitPending},
			},
			total: "1500.00",
			want:  core.CompletionIncomplete,
		},
		{
			name:   "open invoice",
			result: core.BalanceResult{OrderStatus: core.OrderBilled, InvoiceStatuses: []core.InvoiceStatus{core.InvoiceOpen}, RevenueCommitmentStatuses: completed},
			total:  "1500.00",
			want:   core.CompletionIncomplete,
		},
		{
			name:   "unknown commitment label never completes",
			result: core.BalanceResult{OrderStatus: core.OrderBilled, InvoiceStatuses: paid, RevenueCommitmentStatuses: []core.RevenueCommitmentStatus{"On Hold"}},
			total:  "1500.00",
			want:   core.CompletionIncomplete,
		},
		{
			name:   "negative total is not zero",
			result: core.BalanceResult{OrderStatus: core.OrderOpen},
			total:  "-10",
			want:   core.CompletionIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ResolveCompletion(tt.result, decimal.RequireFromString(tt.total))
			if got != tt.want {
				t.Errorf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOrderFields(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	r := core.BalanceResult{
		Deferred: decimal.NewFromInt(100),
		Unearned: decimal.NewFromInt(20),
		Unbilled: decimal.NewFromInt(30),
		Balance:  decimal.NewFromInt(90),
	}
	f := core.OrderFields(r, core.CompletionIncomplete, asOf)

	if f.RevenueStatus != core.CompletionIncomplete || int(f.RevenueStatus) != 2 {
		t.Errorf("revenue status: want INCOMPLETE(2), got %s(%d)", f.RevenueStatus, f.RevenueStatus)
	}
	if !f.Balance.Equal(r.Balance) || !f.Unbilled.Equal(r.Unbilled) || !f.Unearned.Equal(r.Unearned) || !f.Deferred.Equal(r.Deferred) {
		t.Errorf("amounts not copied: %+v", f)
	}
	if !f.AsOfDate.Equal(asOf) {
		t.Errorf("as-of date: want %s, got %s", asOf, f.AsOfDate)
	}
}
