package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolveCompletion decides the revenue status of an order. First match wins:
//  1. zero-value or cancelled orders are complete;
//  2. orders whose commitments are all completed, whose invoices are all paid in full
//     and which are billed or closed are complete;
//  3. everything else is incomplete.
func ResolveCompletion(result BalanceResult, orderTotal decimal.Decimal) CompletionCode {
	if orderTotal.IsZero() || result.OrderStatus == OrderCancelled {
		return CompletionComplete
	}
	if IsOnly(result.RevenueCommitmentStatuses, RevCommitCompleted) &&
		IsOnly(result.InvoiceStatuses, InvoicePaidInFull) &&
		result.OrderStatus.IsFinal() {
		return CompletionComplete
	}
	return CompletionIncomplete
}

// OrderFields builds the field update persisted on the order for a resolved result.
func OrderFields(result BalanceResult, code CompletionCode, asOf time.Time) OrderBalanceFields {
	return OrderBalanceFields{
		RevenueStatus: code,
		Balance:       result.Balance,
		Unbilled:      result.Unbilled,
		Unearned:      result.Unearned,
		Deferred:      result.Deferred,
		AsOfDate:      asOf,
	}
}
