// Package storetest is a conformance suite for treestore.Store backends.
// Each backend's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourusername/nikah-service/internal/treestore"
)

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) treestore.Store) {
	t.Run("GetAbsent", func(t *testing.T) { testGetAbsent(t, newStore(t)) })
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, newStore(t)) })
	t.Run("NestedSetCreatesParents", func(t *testing.T) { testNestedSet(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("PushGeneratesDistinctKeys", func(t *testing.T) { testPush(t, newStore(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newStore(t)) })
	t.Run("Transact", func(t *testing.T) { testTransact(t, newStore(t)) })
	t.Run("TransactAbort", func(t *testing.T) { testTransactAbort(t, newStore(t)) })
	t.Run("TransactDelete", func(t *testing.T) { testTransactDelete(t, newStore(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore(t)) })
}

type doc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags,omitempty"`
}

func testGetAbsent(t *testing.T, s treestore.Store) {
	snap, err := s.Get(context.Background(), "rooms/missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Exists {
		t.Fatalf("absent path reported as existing: %s", snap.Raw)
	}
	if err := snap.Decode(&doc{}); !errors.Is(err, treestore.ErrNoValue) {
		t.Fatalf("Decode of absent snapshot = %v, want ErrNoValue", err)
	}
}

func testSetAndGet(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	want := doc{Name: "a", Count: 2}
	if err := s.Set(ctx, "rooms/r1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got doc
	mustDecode(t, s, "rooms/r1", &got)
	if got.Name != want.Name || got.Count != want.Count {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	var count int
	mustDecode(t, s, "rooms/r1/count", &count)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func testNestedSet(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "rooms/r1/tags/x", 7); err != nil {
		t.Fatalf("nested Set: %v", err)
	}
	var got doc
	mustDecode(t, s, "rooms/r1", &got)
	if got.Name != "a" || got.Tags["x"] != 7 {
		t.Fatalf("nested set clobbered siblings or failed: %+v", got)
	}
}

func testUpdate(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a", Tags: map[string]int{"x": 1, "y": 2}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := s.Update(ctx, "rooms/r1", map[string]any{
		"count":  5,
		"tags/x": nil,
		"tags/z": 3,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	var got doc
	mustDecode(t, s, "rooms/r1", &got)
	if got.Name != "a" || got.Count != 5 {
		t.Fatalf("got %+v", got)
	}
	if _, ok := got.Tags["x"]; ok {
		t.Fatalf("tags/x not removed: %+v", got.Tags)
	}
	if got.Tags["y"] != 2 || got.Tags["z"] != 3 {
		t.Fatalf("tags = %+v, want y=2 z=3", got.Tags)
	}
}

func testPush(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	k1, err := s.Push(ctx, "rooms/r1/tags", 1)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	k2, err := s.Push(ctx, "rooms/r1/tags", 2)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if k1 == "" || k1 == k2 {
		t.Fatalf("push keys %q and %q are not distinct", k1, k2)
	}
	var tags map[string]int
	mustDecode(t, s, "rooms/r1/tags", &tags)
	if tags[k1] != 1 || tags[k2] != 2 {
		t.Fatalf("tags = %+v", tags)
	}
}

func testRemove(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a", Tags: map[string]int{"x": 1}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove(ctx, "rooms/r1/tags/x"); err != nil {
		t.Fatalf("Remove nested: %v", err)
	}
	if snap, _ := s.Get(ctx, "rooms/r1/tags/x"); snap.Exists {
		t.Fatalf("nested value survived Remove")
	}
	if err := s.Remove(ctx, "rooms/r1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if snap, _ := s.Get(ctx, "rooms/r1"); snap.Exists {
		t.Fatalf("document survived Remove")
	}
	if err := s.Remove(ctx, "rooms/r1"); err != nil {
		t.Fatalf("Remove of absent path: %v", err)
	}
}

func testTransact(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a", Count: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := s.Transact(ctx, "rooms/r1/count", func(current treestore.Snapshot) (any, error) {
		var n int
		if err := current.Decode(&n); err != nil {
			return nil, err
		}
		return n + 1, nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	var got doc
	mustDecode(t, s, "rooms/r1", &got)
	if got.Count != 2 || got.Name != "a" {
		t.Fatalf("got %+v, want count 2", got)
	}

	sentinel := errors.New("refused")
	err = s.Transact(ctx, "rooms/absent", func(current treestore.Snapshot) (any, error) {
		if !current.Exists {
			return nil, sentinel
		}
		return doc{}, nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Transact error = %v, want the update function's error", err)
	}
	if snap, _ := s.Get(ctx, "rooms/absent"); snap.Exists {
		t.Fatalf("aborted transaction wrote a value")
	}
}

func testTransactAbort(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := s.Transact(ctx, "rooms/r1", func(current treestore.Snapshot) (any, error) {
		return nil, treestore.ErrNoChange
	})
	if err != nil {
		t.Fatalf("Transact with ErrNoChange = %v, want nil", err)
	}
	if snap, _ := s.Get(ctx, "rooms/r1"); !snap.Exists {
		t.Fatalf("ErrNoChange deleted the document")
	}
}

func testTransactDelete(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := s.Transact(ctx, "rooms/r1", func(current treestore.Snapshot) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if snap, _ := s.Get(ctx, "rooms/r1"); snap.Exists {
		t.Fatalf("nil transaction result did not delete")
	}
}

func testSubscribe(t *testing.T, s treestore.Store) {
	ctx := context.Background()
	if err := s.Set(ctx, "rooms/r1", doc{Name: "a"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	sub, err := s.Subscribe(ctx, "rooms/r1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	first := next(t, sub)
	var got doc
	if err := first.Decode(&got); err != nil || got.Name != "a" {
		t.Fatalf("initial snapshot = %+v (%v)", got, err)
	}

	if err := s.Set(ctx, "rooms/r1/name", "b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	waitFor(t, sub, func(snap treestore.Snapshot) bool {
		var d doc
		return snap.Decode(&d) == nil && d.Name == "b"
	})

	if err := s.Set(ctx, "rooms/other", doc{Name: "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove(ctx, "rooms/r1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	waitFor(t, sub, func(snap treestore.Snapshot) bool { return !snap.Exists })

	sub.Close()
	if _, ok := <-sub.Snapshots(); ok {
		t.Fatalf("snapshot delivered after Close")
	}
}

func mustDecode(t *testing.T, s treestore.Store, path string, v any) {
	t.Helper()
	snap, err := s.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get %s: %v", path, err)
	}
	if err := snap.Decode(v); err != nil {
		t.Fatalf("Decode %s: %v", path, err)
	}
}

func next(t *testing.T, sub *treestore.Subscription) treestore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatalf("subscription ended: %v", sub.Err())
		}
		return snap
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for snapshot of %s", sub.Path)
	}
	return treestore.Snapshot{}
}

func waitFor(t *testing.T, sub *treestore.Subscription, match func(treestore.Snapshot) bool) {
	t.Helper()
	for {
		if match(next(t, sub)) {
			return
		}
	}
}
