package job

import (
	"context"
	"sort"
	"sync"
)

// StageStore holds serialized map outputs until the reduce and summarize stages read them.
type StageStore interface {
	Put(ctx context.Context, orderID string, payload []byte) error
	// Each calls fn for every stored payload in order id order. A non-nil error from fn
	// stops the iteration and is returned.
	Each(ctx context.Context, fn func(orderID string, payload []byte) error) error
	Close() error
}

// MemoryStageStore keeps payloads in memory.
type MemoryStageStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func NewMemoryStageStore() *MemoryStageStore {
	return &MemoryStageStore{payloads: make(map[string][]byte)}
}

func (s *MemoryStageStore) Put(ctx context.Context, orderID string, payload []byte) error {
	b := make([]byte, len(payload))
	copy(b, payload)
	s.mu.Lock()
	s.payloads[orderID] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStageStore) Each(ctx context.Context, fn func(orderID string, payload []byte) error) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.payloads))
	for id := range s.payloads {
		ids = append(ids, id)
	}
	snapshot := make(map[string][]byte, len(s.payloads))
	for id, b := range s.payloads {
		snapshot[id] = b
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id, snapshot[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStageStore) Close() error {
	s.mu.Lock()
	s.payloads = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}
