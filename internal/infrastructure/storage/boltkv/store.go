package boltkv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

// Store keeps checklist and dashboard state in a single bbolt bucket. An empty
// path gives a memory-only store that forgets everything on exit.
type Store struct {
	db *bolt.DB

	mu  sync.RWMutex
	mem map[string][]byte
}

func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{mem: make(map[string][]byte)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		v, ok := s.mem[key]
		if !ok {
			return nil, false, nil
		}
		return append([]byte(nil), v...), true, nil
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// bbolt values are only valid inside the transaction.
		if v := tx.Bucket(bucketState).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return out, out != nil, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if s.db == nil {
		s.mu.Lock()
		s.mem[key] = append([]byte(nil), value...)
		s.mu.Unlock()
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, key)
		s.mu.Unlock()
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
