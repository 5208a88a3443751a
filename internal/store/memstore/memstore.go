// Package memstore is an in-memory order/invoice store. It backs unit tests and
// local dry runs with the same contract as the PostgreSQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"revenue-balance/internal/core"

	"github.com/shopspring/decimal"
)

// Order is an in-memory sales order with its analysed lines.
type Order struct {
	ID     string
	Total  decimal.Decimal
	Lines  []core.LineRow
	Fields *core.OrderBalanceFields
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	orders      map[string]*Order
	summaries   []core.SummaryRecord
	nextID      int64
	deployments map[string]time.Time

	// Fail* hooks inject errors for a given order id (or any call when the key is "*").
	FailLines   map[string]error
	FailTotal   map[string]error
	FailWrite   map[string]error
	FailOrders  error
	FailSummary error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders:      make(map[string]*Order),
		deployments: make(map[string]time.Time),
		FailLines:   make(map[string]error),
		FailTotal:   make(map[string]error),
		FailWrite:   make(map[string]error),
	}
}

// PutOrder adds or replaces an order.
func (s *Store) PutOrder(id string, total decimal.Decimal, lines ...core.LineRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = &Order{ID: id, Total: total, Lines: lines}
}

// Fields returns the balance fields last written for an order.
func (s *Store) Fields(id string) (core.OrderBalanceFields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Fields == nil {
		return core.OrderBalanceFields{}, false
	}
	return *o.Fields, true
}

// Summaries returns a copy of all persisted summary records ordered by id.
func (s *Store) Summaries() []core.SummaryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SummaryRecord, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// LastRun returns the last-run timestamp recorded for a deployment.
func (s *Store) LastRun(deploymentID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.deployments[deploymentID]
	return t, ok
}

func (s *Store) LoadOrderIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOrders != nil {
		return nil, s.FailOrders
	}
	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) LoadLines(ctx context.Context, orderID string) ([]core.LineRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := failFor(s.FailLines, orderID); err != nil {
		return nil, err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	out := make([]core.LineRow, len(o.Lines))
	copy(out, o.Lines)
	return out, nil
}

func (s *Store) GetOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := failFor(s.FailTotal, orderID); err != nil {
		return decimal.Zero, err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return decimal.Zero, fmt.Errorf("sales order %s not found", orderID)
	}
	return o.Total, nil
}

func (s *Store) WriteOrderFields(ctx context.Context, orderID string, fields core.OrderBalanceFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := failFor(s.FailWrite, orderID); err != nil {
		return err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("sales order %s not found", orderID)
	}
	f := fields
	o.Fields = &f
	return nil
}

func (s *Store) FindSummaryRecord(ctx context.Context, start, end time.Time) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// newest match wins, as in the PostgreSQL store (as_of DESC, id DESC)
	var best *core.SummaryRecord
	for i := range s.summaries {
		rec := &s.summaries[i]
		if rec.AsOf.Before(start) || !rec.AsOf.Before(end) {
			continue
		}
		if best == nil || rec.AsOf.After(best.AsOf) || (rec.AsOf.Equal(best.AsOf) && rec.ID > best.ID) {
			best = rec
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.ID, true, nil
}

func (s *Store) WriteSummaryRecord(ctx context.Context, id int64, rec core.SummaryRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSummary != nil {
		return 0, s.FailSummary
	}
	if id != 0 {
		for i := range s.summaries {
			if s.summaries[i].ID == id {
				rec.ID = id
				s.summaries[i] = rec
				return id, nil
			}
		}
		return 0, fmt.Errorf("summary record %d not found", id)
	}
	s.nextID++
	rec.ID = s.nextID
	s.summaries = append(s.summaries, rec)
	return rec.ID, nil
}

func (s *Store) WriteLastRunTimestamp(ctx context.Context, deploymentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[deploymentID] = at
	return nil
}

func failFor(hooks map[string]error, orderID string) error {
	if err, ok := hooks[orderID]; ok {
		return err
	}
	return hooks["*"]
}

// LatestSummary returns the most recently stamped summary record, or nil.
func (s *Store) LatestSummary(ctx context.Context) (*core.SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *core.SummaryRecord
	for i := range s.summaries {
		if latest == nil || !s.summaries[i].AsOf.Before(latest.AsOf) {
			rec := s.summaries[i]
			latest = &rec
		}
	}
	return latest, nil
}
