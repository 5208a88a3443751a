package core

import "strings"

// InvoiceStatus is the status label of an invoice applied against a sales order line.
type InvoiceStatus string

const (
	InvoiceOpen       InvoiceStatus = "Open"
	InvoicePaidInFull InvoiceStatus = "Paid In Full"
)

// Known reports whether s is one of the labels the platform is documented to emit.
func (s InvoiceStatus) Known() bool {
	switch s {
	case InvoiceOpen, InvoicePaidInFull:
		return true
	}
	return false
}

// RevenueCommitmentStatus is the status label of a revenue commitment (recognition schedule).
type RevenueCommitmentStatus string

const (
	RevCommitPending   RevenueCommitmentStatus = "Pending"
	RevCommitCompleted RevenueCommitmentStatus = "Completed"
)

func (s RevenueCommitmentStatus) Known() bool {
	switch s {
	case RevCommitPending, RevCommitCompleted:
		return true
	}
	return false
}

// OrderStatus is the lifecycle status text of a sales order.
type OrderStatus string

const (
	OrderOpen                        OrderStatus = "Open"
	OrderPendingApproval             OrderStatus = "Pending Approval"
	OrderPendingFulfillment          OrderStatus = "Pending Fulfillment"
	OrderPartiallyFulfilled          OrderStatus = "Partially Fulfilled"
	OrderPendingBilling              OrderStatus = "Pending Billing"
	OrderPendingBillingPartFulfilled OrderStatus = "Pending Billing/Partially Fulfilled"
	OrderBilled                      OrderStatus = "Billed"
	OrderClosed                      OrderStatus = "Closed"
	OrderCancelled                   OrderStatus = "Cancelled"
)

func (s OrderStatus) Known() bool {
	switch s {
	case OrderOpen,
		OrderPendingApproval,
		OrderPendingFulfillment,
		OrderPartiallyFulfilled,
		OrderPendingBilling,
		OrderPendingBillingPartFulfilled,
		OrderBilled,
		OrderClosed,
		OrderCancelled:
		return true
	}
	return false
}

// IsFinal reports whether the order has left the billing pipeline
// (billed or closed). Cancelled orders are handled separately.
func (s OrderStatus) IsFinal() bool {
	return s == OrderBilled || s == OrderClosed
}

// ParseOrderStatus trims surrounding whitespace from a status label.
func ParseOrderStatus(label string) OrderStatus {
	return OrderStatus(strings.TrimSpace(label))
}

// ParseInvoiceStatuses splits a comma-separated invoice status column into labels.
// An empty column yields a single empty label, matching what the search returns
// for lines that have not been invoiced yet.
func ParseInvoiceStatuses(csv string) []InvoiceStatus {
	return splitLabels[InvoiceStatus](csv)
}

// ParseRevenueCommitmentStatuses splits a comma-separated revenue commitment status column.
func ParseRevenueCommitmentStatuses(csv string) []RevenueCommitmentStatus {
	return splitLabels[RevenueCommitmentStatus](csv)
}

func splitLabels[T ~string](csv string) []T {
	parts := strings.Split(csv, ",")
	out := make([]T, 0, len(parts))
	for _, p := range parts {
		out = append(out, T(strings.TrimSpace(p)))
	}
	return out
}
