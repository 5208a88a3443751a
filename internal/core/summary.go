package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SummaryStore is the persistence needed by the SummaryAggregator.
type SummaryStore interface {
	// FindSummaryRecord returns the id of a summary record stamped within [start, end).
	FindSummaryRecord(ctx context.Context, start, end time.Time) (id int64, found bool, err error)
	// WriteSummaryRecord updates record id in place, or creates a new record when id is 0.
	// It returns the id of the written record.
	WriteSummaryRecord(ctx context.Context, id int64, rec SummaryRecord) (int64, error)
}

// FoldSummary sums the buckets of every classified order. Orders without invoice
// activity (nil results) are skipped.
func FoldSummary(results map[string]*BalanceResult, asOf time.Time) SummaryTotals {
	totals := SummaryTotals{
		AsOfDate: asOf,
		Deferred: decimal.Zero,
		Unearned: decimal.Zero,
		Unbilled: decimal.Zero,
		Balance:  decimal.Zero,
	}
	for _, r := range results {
		totals = AddToSummary(totals, r)
	}
	return totals
}

// AddToSummary folds one order result into totals. A nil result leaves totals unchanged.
func AddToSummary(totals SummaryTotals, r *BalanceResult) SummaryTotals {
	if r == nil {
		return totals
	}
	totals.Deferred = totals.Deferred.Add(r.Deferred)
	totals.Unearned = totals.Unearned.Add(r.Unearned)
	totals.Unbilled = totals.Unbilled.Add(r.Unbilled)
	totals.Balance = totals.Balance.Add(r.Balance)
	totals.Orders++
	return totals
}

// SummaryAggregator persists one summary record per rolling day window.
type SummaryAggregator struct {
	store SummaryStore
	clock Clock
	loc   *time.Location
}

// NewSummaryAggregator constructs a SummaryAggregator. A nil clock uses the system clock
// and a nil location uses UTC.
func NewSummaryAggregator(store SummaryStore, clock Clock, loc *time.Location) (*SummaryAggregator, error) {
	if store == nil {
		return nil, errors.New("summary: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryAggregator{store: store, clock: clock, loc: loc}, nil
}

// Upsert writes totals to the summary record of the current window.
//
// If a record stamped yesterday or today already exists, its four totals are overwritten
// and its timestamp is bumped to now; otherwise a new record is created. Running the job
// several times within a day therefore keeps a single row, while a new row appears once
// the window has rolled past the previous one.
func (a *SummaryAggregator) Upsert(ctx context.Context, totals SummaryTotals) (SummaryRecord, error) {
	now := a.clock.Now().In(a.loc)
	start, end := SummaryWindow(totals.asOfOr(now), a.loc)

	id, found, err := a.store.FindSummaryRecord(ctx, start, end)
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("failed to look up summary record: %w", err)
	}
	if !found {
		id = 0
	}

	rec := SummaryRecord{
		ID:       id,
		AsOf:     now,
		Deferred: totals.Deferred,
		Unearned: totals.Unearned,
		Unbilled: totals.Unbilled,
		Balance:  totals.Balance,
	}
	written, err := a.store.WriteSummaryRecord(ctx, id, rec)
	if err != nil {
		if found {
			return rec, fmt.Errorf("failed to save existing summary record %d: %w", id, err)
		}
		return rec, fmt.Errorf("failed to save new summary record: %w", err)
	}
	rec.ID = written
	return rec, nil
}

func (t SummaryTotals) asOfOr(fallback time.Time) time.Time {
	if t.AsOfDate.IsZero() {
		return fallback
	}
	return t.AsOfDate
}
