package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"revenue-balance/internal/core"
	"revenue-balance/internal/store/memstore"

	"github.com/shopspring/decimal"
)

func totals(asOf time.Time, deferred, unearned, unbilled, balance int64) core.SummaryTotals {
	return core.SummaryTotals{
		AsOfDate: asOf,
		Deferred: decimal.NewFromInt(deferred),
		Unearned: decimal.NewFromInt(unearned),
		Unbilled: decimal.NewFromInt(unbilled),
		Balance:  decimal.NewFromInt(balance),
	}
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := core.LoadLocation("")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	return loc
}

func TestFoldSummary_SkipsNil(t *testing.T) {
	results := map[string]*core.BalanceResult{
		"101": {Deferred: decimal.NewFromInt(100), Unbilled: decimal.NewFromInt(30), Balance: decimal.NewFromInt(70)},
		"102": nil,
		"103": {Unearned: decimal.NewFromInt(5), Balance: decimal.NewFromInt(5)},
	}
	got := core.FoldSummary(results, time.Time{})

	assertDecimal(t, "deferred", got.Deferred, "100")
	assertDecimal(t, "unearned", got.Unearned, "5")
	assertDecimal(t, "unbilled", got.Unbilled, "30")
	assertDecimal(t, "balance", got.Balance, "75")
	if got.Orders != 2 {
		t.Errorf("orders: want 2, got %d", got.Orders)
	}
}

func TestSummaryWindow(t *testing.T) {
	loc := newYork(t)
	// 01:30 UTC on the 11th is still the evening of the 10th in New York.
	asOf := time.Date(2026, 3, 11, 1, 30, 0, 0, time.UTC)
	start, end := core.SummaryWindow(asOf, loc)

	wantStart := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2026, 3, 11, 0, 0, 0, 0, loc)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Errorf("window: want [%s, %s), got [%s, %s)", wantStart, wantEnd, start, end)
	}
}

func TestSummaryAggregator_UpsertWithinWindow(t *testing.T) {
	loc := newYork(t)
	ctx := context.Background()
	store := memstore.New()

	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	agg, err := core.NewSummaryAggregator(store, core.FixedClock(morning), loc)
	if err != nil {
		t.Fatalf("NewSummaryAggregator failed: %v", err)
	}
	first, err := agg.Upsert(ctx, totals(morning, 10, 5, 2, 13))
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	afternoon := morning.Add(6 * time.Hour)
	agg, _ = core.NewSummaryAggregator(store, core.FixedClock(afternoon), loc)
	second, err := agg.Upsert(ctx, totals(afternoon, 20, 5, 2, 27))
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	records := store.Summaries()
	if len(records) != 1 {
		t.Fatalf("expected exactly one summary record, got %d", len(records))
	}
	if first.ID != second.ID {
		t.Errorf("record identity changed: %d → %d", first.ID, second.ID)
	}
	rec := records[0]
	assertDecimal(t, "deferred", rec.Deferred, "20")
	assertDecimal(t, "unearned", rec.Unearned, "5")
	assertDecimal(t, "unbilled", rec.Unbilled, "2")
	assertDecimal(t, "balance", rec.Balance, "27")
	if !rec.AsOf.Equal(afternoon) {
		t.Errorf("timestamp not bumped: want %s, got %s", afternoon, rec.AsOf)
	}

	// The next morning still falls inside the rolling window of yesterday's record.
	nextDay := morning.AddDate(0, 0, 1)
	agg, _ = core.NewSummaryAggregator(store, core.FixedClock(nextDay), loc)
	if _, err := agg.Upsert(ctx, totals(nextDay, 1, 1, 1, 1)); err != nil {
		t.Fatalf("next-day upsert failed: %v", err)
	}
	if n := len(store.Summaries()); n != 1 {
		t.Errorf("expected the record to be reused the next day, got %d records", n)
	}
}

func TestSummaryAggregator_RollsOverAfterWindow(t *testing.T) {
	loc := newYork(t)
	ctx := context.Background()
	store := memstore.New()

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	agg, _ := core.NewSummaryAggregator(store, core.FixedClock(day1), loc)
	if _, err := agg.Upsert(ctx, totals(day1, 10, 5, 2, 13)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	day3 := day1.AddDate(0, 0, 2)
	agg, _ = core.NewSummaryAggregator(store, core.FixedClock(day3), loc)
	rec, err := agg.Upsert(ctx, totals(day3, 20, 5, 2, 27))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	records := store.Summaries()
	if len(records) != 2 {
		t.Fatalf("expected a new record after the window rolled, got %d", len(records))
	}
	if rec.ID == records[0].ID {
		t.Errorf("expected a new record id, got %d again", rec.ID)
	}
	assertDecimal(t, "first record balance", records[0].Balance, "13")
}

func TestSummaryAggregator_SaveError(t *testing.T) {
	store := memstore.New()
	store.FailSummary = errors.New("record locked")

	agg, _ := core.NewSummaryAggregator(store, core.FixedClock(time.Now()), time.UTC)
	if _, err := agg.Upsert(context.Background(), totals(time.Now(), 1, 1, 1, 1)); err == nil {
		t.Error("expected save error to be returned")
	}
}
