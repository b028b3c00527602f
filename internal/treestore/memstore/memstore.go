// Package memstore is an in-memory treestore.Store. It backs the test
// suites and local development runs where no hosted database is configured.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/yourusername/nikah-service/internal/treestore"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memstore: store closed")

// Store keeps the whole tree as generic JSON data behind one mutex.
type Store struct {
	mu     sync.Mutex
	root   any
	closed bool
	feed   treestore.Feed

	failNext error
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Get(ctx context.Context, path string) (treestore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return treestore.Snapshot{}, ErrClosed
	}
	return s.snapshotLocked(path)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	normalized, err := treestore.Normalize(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.root = treestore.Assign(s.root, treestore.Split(path), normalized)
	s.publishLocked(path)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	normalized := make(map[string]any, len(values))
	for rel, v := range values {
		n, err := treestore.Normalize(v)
		if err != nil {
			return err
		}
		normalized[treestore.Join(path, rel)] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	for full, v := range normalized {
		s.root = treestore.Assign(s.root, treestore.Split(full), v)
	}
	s.publishLocked(path)
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	key := treestore.NewKey()
	if err := s.Set(ctx, treestore.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

// Transact runs fn while holding the store lock, so fn must not call back
// into the store.
func (s *Store) Transact(ctx context.Context, path string, fn treestore.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	current, err := s.snapshotLocked(path)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if errors.Is(err, treestore.ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	normalized, err := treestore.Normalize(next)
	if err != nil {
		return err
	}
	s.root = treestore.Assign(s.root, treestore.Split(path), normalized)
	s.publishLocked(path)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (*treestore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	initial, err := s.snapshotLocked(path)
	if err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, treestore.Clean(path), initial)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.feed.Close()
	return nil
}

// FailNextWrite makes the next mutating call return err. Tests use it to
// simulate store outages.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Store) checkLocked() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	return nil
}

func (s *Store) snapshotLocked(path string) (treestore.Snapshot, error) {
	v, ok := treestore.Lookup(s.root, treestore.Split(path))
	if !ok {
		return treestore.Snapshot{Path: treestore.Clean(path)}, nil
	}
	return treestore.NewSnapshot(treestore.Clean(path), v)
}

func (s *Store) publishLocked(changed string) {
	s.feed.Publish(changed, func(path string) (treestore.Snapshot, bool) {
		snap, err := s.snapshotLocked(path)
		return snap, err == nil
	})
}
