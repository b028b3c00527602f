// Package rtdb implements treestore.Store on the Firebase Realtime Database
// through the Admin SDK.
//
// The Admin SDK has no push listener, so Subscribe long-polls the path with
// ETag-conditional reads (GetIfChanged) and emits a snapshot whenever the
// ETag moves.
package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"firebase.google.com/go/db"

	"github.com/yourusername/nikah-service/internal/treestore"
)

// DefaultPollInterval is used when New is given a non-positive interval.
const DefaultPollInterval = time.Second

// maxPollFailures is the number of consecutive failed polls tolerated
// before a subscription gives up and reports the last error.
const maxPollFailures = 5

// Store adapts a *db.Client.
type Store struct {
	client       *db.Client
	pollInterval time.Duration
}

// New wraps client. pollInterval bounds how stale a subscription may be.
func New(client *db.Client, pollInterval time.Duration) *Store {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Store{client: client, pollInterval: pollInterval}
}

func (s *Store) ref(path string) *db.Ref {
	return s.client.NewRef(treestore.Clean(path))
}

func (s *Store) Get(ctx context.Context, path string) (treestore.Snapshot, error) {
	var raw json.RawMessage
	if err := s.ref(path).Get(ctx, &raw); err != nil {
		return treestore.Snapshot{}, err
	}
	return treestore.SnapshotFromRaw(treestore.Clean(path), raw), nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return s.ref(path).Delete(ctx)
	}
	return s.ref(path).Set(ctx, value)
}

func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return s.ref(path).Update(ctx, values)
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	child, err := s.ref(path).Push(ctx, value)
	if err != nil {
		return "", err
	}
	return child.Key, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.ref(path).Delete(ctx)
}

// Transact maps onto the database's optimistic transaction, which re-runs
// fn whenever the value changed between read and write.
func (s *Store) Transact(ctx context.Context, path string, fn treestore.TxFunc) error {
	clean := treestore.Clean(path)
	err := s.ref(clean).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var raw json.RawMessage
		if err := node.Unmarshal(&raw); err != nil {
			return nil, fmt.Errorf("decode transaction node %s: %w", clean, err)
		}
		return fn(treestore.SnapshotFromRaw(clean, raw))
	})
	if errors.Is(err, treestore.ErrNoChange) {
		return nil
	}
	return err
}

func (s *Store) Subscribe(ctx context.Context, path string) (*treestore.Subscription, error) {
	clean := treestore.Clean(path)
	ref := s.ref(clean)

	var raw json.RawMessage
	etag, err := ref.GetWithETag(ctx, &raw)
	if err != nil {
		return nil, fmt.Errorf("initial read of %s: %w", clean, err)
	}
	initial := treestore.SnapshotFromRaw(clean, raw)

	return treestore.StartSubscription(ctx, clean, func(ctx context.Context, emit treestore.EmitFunc) error {
		if !emit(initial) {
			return nil
		}

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			var next json.RawMessage
			changed, newETag, err := ref.GetIfChanged(ctx, etag, &next)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
				if failures > maxPollFailures {
					return fmt.Errorf("poll %s failed %d consecutive times: %w", clean, failures, err)
				}
				log.Printf("⚠️  rtdb: poll %s failed (attempt %d/%d): %v", clean, failures, maxPollFailures, err)
				continue
			}
			failures = 0
			if !changed {
				continue
			}
			etag = newETag
			if !emit(treestore.SnapshotFromRaw(clean, next)) {
				return nil
			}
		}
	}), nil
}

// Close is a no-op; the database client is owned by the Firebase app.
func (s *Store) Close() error {
	return nil
}
