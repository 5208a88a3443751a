// Package store reads order balance inputs from PostgreSQL and writes balances back.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"revenue-balance/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned when a sales order id does not exist.
var ErrOrderNotFound = errors.New("sales order not found")

// DefaultMaxLinesPerOrder caps the lines read for one order.
const DefaultMaxLinesPerOrder = 200

// Queries names the two views that stand in for the saved searches.
type Queries struct {
	// UnbalancedOrders yields one sales_order_id per order to recalculate.
	UnbalancedOrders string
	// BalanceAnalysis yields the line rows of every order.
	BalanceAnalysis string
}

// Postgres implements the job's LineSource and RecordStore.
type Postgres struct {
	pool     *pgxpool.Pool
	queries  Queries
	maxLines int
}

// NewPostgres constructs a Postgres store. maxLines <= 0 uses DefaultMaxLinesPerOrder.
func NewPostgres(pool *pgxpool.Pool, queries Queries, maxLines int) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("store: nil pool")
	}
	if queries.UnbalancedOrders == "" || queries.BalanceAnalysis == "" {
		return nil, errors.New("store: both query ids are required")
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxLinesPerOrder
	}
	return &Postgres{pool: pool, queries: queries, maxLines: maxLines}, nil
}

// relation quotes a configured view name, allowing an optional schema prefix.
func relation(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// calendarDate keeps the local calendar day of t for a DATE column.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseOrderID(orderID string) (int64, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sales order id %q: %w", orderID, err)
	}
	return id, nil
}

// ── LineSource ───────────────────────────────────────────────────────────────

func (s *Postgres) LoadOrderIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT sales_order_id FROM %s ORDER BY sales_order_id", relation(s.queries.UnbalancedOrders)))
	if err != nil {
		return nil, fmt.Errorf("failed to run query %s: %w", s.queries.UnbalancedOrders, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, rows.Err()
}

// LoadLines returns up to maxLines rows ordered by line id, so the order status taken
// from the last line is stable between runs.
func (s *Postgres) LoadLines(ctx context.Context, orderID string) ([]core.LineRow, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT order_status, line_id::text, invoice_amount, recognized_amount, balance,
		       COALESCE(invoice_status, ''), COALESCE(revcom_status, '')
		FROM %s
		WHERE sales_order_id = $1
		ORDER BY line_id
		LIMIT $2`, relation(s.queries.BalanceAnalysis)), id, s.maxLines)
	if err != nil {
		return nil, fmt.Errorf("failed to run query %s for order %s: %w", s.queries.BalanceAnalysis, orderID, err)
	}
	defer rows.Close()

	var lines []core.LineRow
	for rows.Next() {
		var (
			l             core.LineRow
			status        string
			invoiceStatus string
			revcomStatus  string
		)
		if err := rows.Scan(&status, &l.LineID, &l.InvoiceAmount, &l.RecognizedAmount, &l.Balance,
			&invoiceStatus, &revcomStatus); err != nil {
			return nil, fmt.Errorf("failed to scan line for order %s: %w", orderID, err)
		}
		l.OrderStatus = core.ParseOrderStatus(status)
		l.InvoiceStatuses = core.ParseInvoiceStatuses(invoiceStatus)
		l.RevenueCommitmentStatuses = core.ParseRevenueCommitmentStatuses(revcomStatus)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ── RecordStore ──────────────────────────────────────────────────────────────

func (s *Postgres) GetOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	err = s.pool.QueryRow(ctx, "SELECT total FROM sales_orders WHERE id = $1", id).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return decimal.Zero, fmt.Errorf("failed to get total for order %s: %w", orderID, err)
	}
	return total, nil
}

func (s *Postgres) WriteOrderFields(ctx context.Context, orderID string, f core.OrderBalanceFields) error {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sales_orders
		SET revenue_status = $2,
		    revenue_balance = $3,
		    unbilled_amount = $4,
		    unearned_amount = $5,
		    deferred_amount = $6,
		    balance_as_of = $7,
		    updated_at = NOW()
		WHERE id = $1`,
		id, int16(f.RevenueStatus), f.Balance, f.Unbilled, f.Unearned, f.Deferred, calendarDate(f.AsOfDate))
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return nil
}

func (s *Postgres) FindSummaryRecord(ctx context.Context, start, end time.Time) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM revenue_classification_summaries
		WHERE as_of >= $1 AND as_of < $2
		ORDER BY as_of DESC, id DESC
		LIMIT 1`, start, end).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to search summary records: %w", err)
	}
	return id, true, nil
}

func (s *Postgres) WriteSummaryRecord(ctx context.Context, id int64, rec core.SummaryRecord) (int64, error) {
	if id == 0 {
		var newID int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO revenue_classification_summaries (as_of, deferred_total, unearned_total, unbilled_total, balance_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			rec.AsOf, rec.Deferred, rec.Unearned, rec.Unbilled, rec.Balance).Scan(&newID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert summary record: %w", err)
		}
		return newID, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE revenue_classification_summaries
		SET as_of = $2, deferred_total = $3, unearned_total = $4, unbilled_total = $5, balance_total = $6
		WHERE id = $1`,
		id, rec.AsOf, rec.Deferred, rec.Unearned, rec.Unbilled, rec.Balance)
	if err != nil {
		return 0, fmt.Errorf("failed to update summary record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("summary record %d not found", id)
	}
	return id, nil
}

func (s *Postgres) WriteLastRunTimestamp(ctx context.Context, deploymentID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE script_deployments SET last_run = $2, updated_at = NOW() WHERE id = $1",
		deploymentID, calendarDate(at))
	if err != nil {
		return fmt.Errorf("failed to write last run for deployment %s: %w", deploymentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("script deployment %s not found", deploymentID)
	}
	return nil
}

// ── Reads for the ops surface ────────────────────────────────────────────────

// LatestSummary returns the most recently stamped summary record.
func (s *Postgres) LatestSummary(ctx context.Context) (*core.SummaryRecord, error) {
	var rec core.SummaryRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, as_of, deferred_total, unearned_total, unbilled_total, balance_total
		FROM revenue_classification_summaries
		ORDER BY as_of DESC, id DESC
		LIMIT 1`).Scan(&rec.ID, &rec.AsOf, &rec.Deferred, &rec.Unearned, &rec.Unbilled, &rec.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest summary: %w", err)
	}
	return &rec, nil
}
