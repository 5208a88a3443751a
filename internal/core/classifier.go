package core

import (
	"errors"
	"fmt"
)

// Classify folds the lines of one sales order into a BalanceResult.
// It returns nil when the order has no lines: the order has no invoice activity and
// nothing downstream should be written for it.
func Classify(lines []LineRow) *BalanceResult {
	if len(lines) == 0 {
		return nil
	}
	var result BalanceResult
	for _, line := range lines {
		result = ApplyLine(result, line)
	}
	return &result
}

// ApplyLine returns prior with line folded in. prior is not modified.
//
// Positive balances are deferred when the line's own invoice is paid in full and
// unearned otherwise; negative balances are unbilled (stored as a magnitude). Every
// balance, whatever its sign, is added to the signed total.
//
// OrderStatus is overwritten by every line, so the status of the last line applied wins.
// Callers that need a deterministic status must supply lines in a stable order.
func ApplyLine(prior BalanceResult, line LineRow) BalanceResult {
	next := prior
	next.InvoiceStatuses = MergeStatuses(prior.InvoiceStatuses, line.InvoiceStatuses)
	next.RevenueCommitmentStatuses = MergeStatuses(prior.RevenueCommitmentStatuses, line.RevenueCommitmentStatuses)
	next.OrderStatus = line.OrderStatus
	next.LineCount = prior.LineCount + 1

	lineInvoices := MergeStatuses(nil, line.InvoiceStatuses)
	switch line.Balance.Sign() {
	case 1:
		if IsOnly(lineInvoices, InvoicePaidInFull) {
			next.Deferred = prior.Deferred.Add(line.Balance)
		} else {
			next.Unearned = prior.Unearned.Add(line.Balance)
		}
	case -1:
		next.Unbilled = prior.Unbilled.Add(line.Balance.Abs())
	}
	next.Balance = prior.Balance.Add(line.Balance)
	return next
}

// Validate checks the bucket invariants of a classified result.
func (r BalanceResult) Validate() error {
	var errs []error
	if r.Deferred.IsNegative() {
		errs = append(errs, fmt.Errorf("deferred is negative: %s", r.Deferred))
	}
	if r.Unearned.IsNegative() {
		errs = append(errs, fmt.Errorf("unearned is negative: %s", r.Unearned))
	}
	if r.Unbilled.IsNegative() {
		errs = append(errs, fmt.Errorf("unbilled is negative: %s", r.Unbilled))
	}
	return errors.Join(errs...)
}
