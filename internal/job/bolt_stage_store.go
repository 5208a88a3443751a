package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var stageBucket = []byte("payloads")

// BoltStageStore spills map outputs to a bbolt file so large runs do not hold every
// payload in memory. One file per run.
type BoltStageStore struct {
	db   *bolt.DB
	path string
	keep bool
}

// OpenBoltStageStore creates <dir>/<runID>.db. The file is removed on Close unless keep is set.
func OpenBoltStageStore(dir, runID string, keep bool) (*BoltStageStore, error) {
	if dir == "" {
		return nil, errors.New("stage store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stage store: create dir: %w", err)
	}
	path := filepath.Join(dir, runID+".db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("stage store: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stageBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stage store: init bucket: %w", err)
	}
	return &BoltStageStore{db: db, path: path, keep: keep}, nil
}

// Path returns the backing file path.
func (s *BoltStageStore) Path() string { return s.path }

func (s *BoltStageStore) Put(ctx context.Context, orderID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stageBucket).Put([]byte(orderID), payload)
	})
}

// Each iterates in key order. Values are copied out of the transaction before fn runs.
func (s *BoltStageStore) Each(ctx context.Context, fn func(orderID string, payload []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(stageBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := make([]byte, len(v))
			copy(b, v)
			if err := fn(string(k), b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStageStore) Close() error {
	err := s.db.Close()
	if !s.keep {
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}
