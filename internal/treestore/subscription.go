package treestore

import (
	"context"
	"sync"
)

// Subscription is a cancellable stream of snapshots for one path.
// Snapshots arrive on Snapshots() in the order the backend observed them.
// The channel is closed when the subscription ends; Err then reports why,
// or nil if it was closed or its context was cancelled.
type Subscription struct {
	Path string

	c      chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// EmitFunc hands a snapshot to the subscriber. It returns false once the
// subscription has been cancelled and the producer should stop.
type EmitFunc func(Snapshot) bool

// StartSubscription runs produce in its own goroutine and wires its output
// to a new Subscription. produce must return when ctx is done.
func StartSubscription(ctx context.Context, path string, produce func(ctx context.Context, emit EmitFunc) error) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		Path:   path,
		c:      make(chan Snapshot),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.c)
		err := produce(ctx, func(snap Snapshot) bool {
			select {
			case s.c <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return s
}

// Snapshots returns the snapshot channel.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.c
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the producer has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes and waits for the producer to stop. No snapshot is
// delivered after Close returns.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}
