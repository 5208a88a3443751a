package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"revenue-balance/internal/core"
	"revenue-balance/internal/db"
	"revenue-balance/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL, db.PoolOptions{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE revenue_commitments, invoice_lines, sales_orders, revenue_classification_summaries RESTART IDENTITY CASCADE;
		UPDATE script_deployments SET last_run = NULL;

		INSERT INTO sales_orders (id, order_number, status, total) VALUES
		(1, 'SO-1', 'Pending Billing', 500.00),
		(2, 'SO-2', 'Billed', 25.00),
		(3, 'SO-3', 'Open', 0);

		INSERT INTO invoice_lines (id, sales_order_id, invoice_number, status, amount) VALUES
		(10, 1, 'INV-10', 'Paid In Full', 100.00),
		(11, 1, 'INV-11', 'Open', 0.00),
		(20, 2, 'INV-20', 'Paid In Full', 25.00);

		INSERT INTO revenue_commitments (invoice_line_id, status, recognized_amount) VALUES
		(11, 'Pending', 30.00),
		(20, 'Completed', 25.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func newStore(t *testing.T, pool *pgxpool.Pool) *store.Postgres {
	t.Helper()
	s, err := store.NewPostgres(pool, store.Queries{
		UnbalancedOrders: "v_orders_needing_balance",
		BalanceAnalysis:  "v_order_balance_lines",
	}, 0)
	if err != nil {
		t.Fatalf("NewPostgres failed: %v", err)
	}
	return s
}

func TestPostgres_LoadLines(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(t, pool)
	ctx := context.Background()

	ids, err := s.LoadOrderIDs(ctx)
	if err != nil {
		t.Fatalf("LoadOrderIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "1" {
		t.Fatalf("Expected orders [1 2 3], got %v", ids)
	}

	lines, err := s.LoadLines(ctx, "1")
	if err != nil {
		t.Fatalf("LoadLines failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !lines[0].Balance.Equal(decimal.NewFromInt(100)) || !lines[1].Balance.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("Expected balances 100 and -30, got %s and %s", lines[0].Balance, lines[1].Balance)
	}
	if lines[1].RevenueCommitmentStatuses[0] != core.RevCommitPending {
		t.Errorf("Expected Pending commitment, got %v", lines[1].RevenueCommitmentStatuses)
	}

	r := core.Classify(lines)
	if !r.Deferred.Equal(decimal.NewFromInt(100)) || !r.Unbilled.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected deferred 100 / unbilled 30, got %s / %s", r.Deferred, r.Unbilled)
	}

	none, err := s.LoadLines(ctx, "3")
	if err != nil || len(none) != 0 {
		t.Errorf("Expected no lines for order 3, got %v (%v)", none, err)
	}
}

func TestPostgres_WriteOrderFields(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(t, pool)
	ctx := context.Background()

	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	fields := core.OrderBalanceFields{
		RevenueStatus: core.CompletionComplete,
		Balance:       decimal.Zero,
		Unbilled:      decimal.Zero,
		Unearned:      decimal.Zero,
		Deferred:      decimal.Zero,
		AsOfDate:      asOf,
	}
	if err := s.WriteOrderFields(ctx, "2", fields); err != nil {
		t.Fatalf("WriteOrderFields failed: %v", err)
	}

	var status int
	if err := pool.QueryRow(ctx, "SELECT revenue_status FROM sales_orders WHERE id = 2").Scan(&status); err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if status != 1 {
		t.Errorf("Expected revenue_status 1, got %d", status)
	}

	// A completed order drops out of the input view.
	ids, _ := s.LoadOrderIDs(ctx)
	for _, id := range ids {
		if id == "2" {
			t.Error("Expected order 2 to leave v_orders_needing_balance")
		}
	}

	if err := s.WriteOrderFields(ctx, "999", fields); !errors.Is(err, store.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
	if _, err := s.GetOrderTotal(ctx, "999"); !errors.Is(err, store.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestPostgres_SummaryUpsert(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	s := newStore(t, pool)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	agg, err := core.NewSummaryAggregator(s, core.FixedClock(now), time.UTC)
	if err != nil {
		t.Fatalf("NewSummaryAggregator failed: %v", err)
	}
	first, err := agg.Upsert(ctx, core.SummaryTotals{AsOfDate: now, Deferred: decimal.NewFromInt(10), Unearned: decimal.NewFromInt(5), Unbilled: decimal.NewFromInt(2), Balance: decimal.NewFromInt(13)})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := agg.Upsert(ctx, core.SummaryTotals{AsOfDate: now, Deferred: decimal.NewFromInt(20), Unearned: decimal.NewFromInt(5), Unbilled: decimal.NewFromInt(2), Balance: decimal.NewFromInt(27)})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected the same record, got %d and %d", first.ID, second.ID)
	}

	latest, err := s.LatestSummary(ctx)
	if err != nil || latest == nil {
		t.Fatalf("LatestSummary failed: %v", err)
	}
	if !latest.Balance.Equal(decimal.NewFromInt(27)) {
		t.Errorf("Expected balance 27, got %s", latest.Balance)
	}

	if err := s.WriteLastRunTimestamp(ctx, "8326", now); err != nil {
		t.Errorf("WriteLastRunTimestamp failed: %v", err)
	}
	if err := s.WriteLastRunTimestamp(ctx, "0000", now); err == nil {
		t.Error("Expected unknown deployment to fail")
	}
}
