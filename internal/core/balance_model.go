package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRow is one invoice / revenue-commitment line of a sales order as returned by
// the balance analysis query. Balance is the invoiced amount minus the recognized amount.
// Only Balance, OrderStatus and the two status sets drive classification; the remaining
// columns are carried for ordering and reporting.
type LineRow struct {
	OrderStatus               OrderStatus               `json:"order_status"`
	LineID                    string                    `json:"line_id"`
	InvoiceAmount             decimal.Decimal           `json:"invoice_amount"`
	RecognizedAmount          decimal.Decimal           `json:"recognized_amount"`
	Balance                   decimal.Decimal           `json:"balance"`
	InvoiceStatuses           []InvoiceStatus           `json:"invoice_statuses"`
	RevenueCommitmentStatuses []RevenueCommitmentStatus `json:"revenue_commitment_statuses"`
}

// BalanceResult is the classified balance of a single sales order.
//
// Deferred, Unearned and Unbilled are non-negative partitions of the line balances by
// sign and payment status; Balance is the signed sum of all line balances. The result
// is handed between pipeline stages as JSON and is never mutated once classified.
type BalanceResult struct {
	Deferred                  decimal.Decimal           `json:"deferred" jsonschema_description:"Sum of positive balances on lines whose invoice is paid in full"`
	Unearned                  decimal.Decimal           `json:"unearned" jsonschema_description:"Sum of positive balances on lines whose invoice is not fully paid"`
	Unbilled                  decimal.Decimal           `json:"unbilled" jsonschema_description:"Sum of the magnitudes of negative line balances"`
	Balance                   decimal.Decimal           `json:"balance" jsonschema_description:"Signed sum of every line balance"`
	InvoiceStatuses           []InvoiceStatus           `json:"invoice_statuses" jsonschema_description:"Distinct invoice status labels seen across the order lines"`
	RevenueCommitmentStatuses []RevenueCommitmentStatus `json:"revenue_commitment_statuses" jsonschema_description:"Distinct revenue commitment status labels seen across the order lines"`
	OrderStatus               OrderStatus               `json:"order_status" jsonschema_description:"Order status text of the last line classified"`
	LineCount                 int                       `json:"line_count"`
}

// CompletionCode is the revenue status list value written to the sales order.
// The numeric values are the list ids used by the order record.
type CompletionCode int

const (
	CompletionComplete   CompletionCode = 1
	CompletionIncomplete CompletionCode = 2
)

func (c CompletionCode) String() string {
	switch c {
	case CompletionComplete:
		return "COMPLETE"
	case CompletionIncomplete:
		return "INCOMPLETE"
	}
	return "UNKNOWN"
}

// OrderBalanceFields is the batched field update written onto a sales order.
type OrderBalanceFields struct {
	RevenueStatus CompletionCode
	Balance       decimal.Decimal
	Unbilled      decimal.Decimal
	Unearned      decimal.Decimal
	Deferred      decimal.Decimal
	AsOfDate      time.Time
}

// SummaryTotals is the roll-up of every order processed in one run.
type SummaryTotals struct {
	AsOfDate time.Time       `json:"as_of_date"`
	Deferred decimal.Decimal `json:"deferred_total"`
	Unearned decimal.Decimal `json:"unearned_total"`
	Unbilled decimal.Decimal `json:"unbilled_total"`
	Balance  decimal.Decimal `json:"balance_total"`
	Orders   int             `json:"orders"`
}

// SummaryRecord is a persisted daily revenue classification summary.
// AsOf is a timestamp: it is bumped each time the record is rewritten.
type SummaryRecord struct {
	ID       int64
	AsOf     time.Time
	Deferred decimal.Decimal
	Unearned decimal.Decimal
	Unbilled decimal.Decimal
	Balance  decimal.Decimal
}
