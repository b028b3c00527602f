// Package treestore defines the contract of the hosted realtime tree the room
// service is built on: a JSON document tree addressed by slash-separated
// paths, with subscriptions that deliver full-subtree snapshots.
//
// Backends live in sub-packages (memstore, rtdb, firestorestore,
// sqlitestore). Consumers depend only on the Store interface.
package treestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoValue is returned by Snapshot.Decode when the snapshot is absent.
var ErrNoValue = errors.New("treestore: no value at path")

// ErrNoChange aborts a transaction without writing. Transact returns nil
// when the update function returns it.
var ErrNoChange = errors.New("treestore: no change")

// ErrInvalidPath is returned for paths a backend cannot address.
var ErrInvalidPath = errors.New("treestore: invalid path")

// TxFunc computes the new value at a path from its current snapshot.
// Returning a nil value deletes the path. Returning an error aborts the
// transaction; the error is handed back to the caller unchanged. Backends
// may call a TxFunc more than once under contention, so it must not have
// side effects beyond its return values.
type TxFunc func(current Snapshot) (any, error)

// Store is a remote tree with last-write-wins semantics per path.
type Store interface {
	// Get returns the current value at path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Set overwrites the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error

	// Update writes several locations at once. Keys are paths relative to
	// path; nil values remove.
	Update(ctx context.Context, path string, values map[string]any) error

	// Push stores value under a freshly generated child key of path and
	// returns the key.
	Push(ctx context.Context, path string, value any) (string, error)

	// Remove deletes the value at path. Removing an absent path succeeds.
	Remove(ctx context.Context, path string) error

	// Transact atomically replaces the subtree at path with the result of fn.
	Transact(ctx context.Context, path string, fn TxFunc) error

	// Subscribe streams snapshots of the subtree at path, starting with its
	// current value. The subscription ends when ctx is done or it is closed.
	Subscribe(ctx context.Context, path string) (*Subscription, error)

	Close() error
}

// Snapshot is an immutable copy of the subtree at Path.
type Snapshot struct {
	Path   string
	Exists bool
	Raw    json.RawMessage
}

// NewSnapshot encodes value as the snapshot of path. A nil value produces
// an absent snapshot.
func NewSnapshot(path string, value any) (Snapshot, error) {
	if value == nil {
		return Snapshot{Path: path}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot of %s: %w", path, err)
	}
	return SnapshotFromRaw(path, raw), nil
}

// SnapshotFromRaw wraps JSON received from a backend. JSON null and empty
// input are treated as absent.
func SnapshotFromRaw(path string, raw []byte) Snapshot {
	if len(raw) == 0 || string(raw) == "null" {
		return Snapshot{Path: path}
	}
	owned := make(json.RawMessage, len(raw))
	copy(owned, raw)
	return Snapshot{Path: path, Exists: true, Raw: owned}
}

// Decode unmarshals the snapshot into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return ErrNoValue
	}
	return json.Unmarshal(s.Raw, v)
}

// Value decodes the snapshot into generic JSON data (maps, slices, float64,
// string, bool). Absent snapshots decode to nil.
func (s Snapshot) Value() (any, error) {
	if !s.Exists {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(s.Raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewKey returns a unique child key for Push. Keys are UUIDv7 strings, so
// they sort roughly by creation time, but callers must not rely on it.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
