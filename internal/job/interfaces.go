package job

import (
	"context"
	"time"

	"revenue-balance/internal/core"

	"github.com/shopspring/decimal"
)

// LineSource supplies the orders to classify and their invoice / revenue-commitment lines.
type LineSource interface {
	// LoadOrderIDs returns the ids of every order that needs its balance recalculated.
	LoadOrderIDs(ctx context.Context) ([]string, error)
	// LoadLines returns the analysed lines of one order. An order with no invoice
	// activity returns an empty slice and no error.
	LoadLines(ctx context.Context, orderID string) ([]core.LineRow, error)
}

// RecordStore reads and writes the records the job touches.
type RecordStore interface {
	core.SummaryStore

	GetOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	// WriteOrderFields applies all balance fields to the order in one update.
	WriteOrderFields(ctx context.Context, orderID string, fields core.OrderBalanceFields) error
	WriteLastRunTimestamp(ctx context.Context, deploymentID string, at time.Time) error
}
