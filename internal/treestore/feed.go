package treestore

import (
	"context"
	"sync"
)

// Feed fans committed changes out to in-process subscribers. Backends that
// own their data (memory, sqlite) publish through it while holding their
// write lock, so every subscriber sees changes in commit order.
//
// Publishing never blocks: each subscriber has its own unbounded queue
// drained by its subscription goroutine.
type Feed struct {
	mu     sync.Mutex
	subs   map[*feedSub]struct{}
	closed bool
}

type feedSub struct {
	path   string
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []Snapshot
	signal chan struct{}
}

// Subscribe registers a subscriber for path whose first snapshot is
// initial. The caller must hold the lock that serializes its Publish calls.
func (f *Feed) Subscribe(ctx context.Context, path string, initial Snapshot) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, context.Canceled
	}
	if f.subs == nil {
		f.subs = make(map[*feedSub]struct{})
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &feedSub{
		path:   path,
		cancel: cancel,
		queue:  []Snapshot{initial},
		signal: make(chan struct{}, 1),
	}
	f.subs[sub] = struct{}{}

	return StartSubscription(ctx, path, func(ctx context.Context, emit EmitFunc) error {
		defer f.remove(sub)
		for {
			for {
				snap, ok := sub.pop()
				if !ok {
					break
				}
				if !emit(snap) {
					return nil
				}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-sub.signal:
			}
		}
	}), nil
}

// Publish enqueues a fresh snapshot for every subscriber whose subtree
// overlaps changed. read must return the committed value at a path.
func (f *Feed) Publish(changed string, read func(path string) (Snapshot, bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if !Overlaps(sub.path, changed) {
			continue
		}
		snap, ok := read(sub.path)
		if !ok {
			continue
		}
		sub.push(snap)
	}
}

// Close ends every subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*feedSub, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
}

func (f *Feed) remove(sub *feedSub) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
	sub.cancel()
}

func (s *feedSub) push(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *feedSub) pop() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Snapshot{}, false
	}
	snap := s.queue[0]
	s.queue = s.queue[1:]
	return snap, true
}
