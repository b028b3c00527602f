package hub

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/yourusername/nikah-service/internal/ceremony"
	"github.com/yourusername/nikah-service/internal/models"
	"github.com/yourusername/nikah-service/internal/repository"
	"github.com/yourusername/nikah-service/internal/treestore"
)

// listenerBuffer is how many views a slow listener may fall behind before
// newer views are dropped for it.
const listenerBuffer = 16

var ErrClosed = errors.New("hub closed")

// Observer is told about every room snapshot a mirror applies
type Observer interface {
	Observe(ctx context.Context, room *models.Room)
}

// Hub keeps one live mirror per watched room and fans its views out to
// listeners. A mirror of a completed room is retired once nobody listens
// to it; the next Watch or Listen starts a fresh one.
type Hub struct {
	repo     *repository.RoomRepository
	observer Observer
	rules    ceremony.Rules

	mu      sync.Mutex
	mirrors map[string]*mirror
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(repo *repository.RoomRepository, observer Observer, rules ceremony.Rules) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		repo:     repo,
		observer: observer,
		rules:    rules,
		mirrors:  make(map[string]*mirror),
		ctx:      ctx,
		cancel:   cancel,
	}
}

type mirror struct {
	hub    *Hub
	roomID string
	sub    *treestore.Subscription

	mu        sync.RWMutex
	latest    *ceremony.View
	listeners map[*Listener]struct{}
	pending   int // Listen calls between lookup and attach
	stopped   bool
}

// Listener receives views of one room. C is closed when the listener or
// its mirror stops.
type Listener struct {
	C <-chan ceremony.View

	c    chan ceremony.View
	m    *mirror
	once sync.Once
	done chan struct{}
}

// Watch starts the mirror of roomID unless it is already running
func (h *Hub) Watch(roomID string) error {
	_, err := h.mirror(roomID, false)
	return err
}

// mirror returns the running mirror of roomID, starting one if needed.
// With hold set the mirror cannot be retired until the caller attaches.
func (h *Hub) mirror(roomID string, hold bool) (*mirror, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if m, ok := h.mirrors[roomID]; ok {
		m.hold(hold)
		h.mu.Unlock()
		return m, nil
	}
	h.mu.Unlock()

	sub, err := h.repo.WatchRoom(h.ctx, roomID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.Close()
		return nil, ErrClosed
	}
	if m, ok := h.mirrors[roomID]; ok {
		// Lost the race to another caller
		sub.Close()
		m.hold(hold)
		return m, nil
	}

	m := &mirror{
		hub:       h,
		roomID:    roomID,
		sub:       sub,
		listeners: make(map[*Listener]struct{}),
	}
	m.hold(hold)
	h.mirrors[roomID] = m

	h.wg.Add(1)
	go h.run(m)

	log.Printf("🔌 Watching room %s", roomID)
	return m, nil
}

func (m *mirror) hold(hold bool) {
	if !hold {
		return
	}
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()
}

// run applies snapshots in the order the store delivers them
func (h *Hub) run(m *mirror) {
	defer h.wg.Done()
	defer h.stop(m)

	for snap := range m.sub.Snapshots() {
		room, err := repository.DecodeRoom(snap)
		if err != nil {
			log.Printf("⚠️  Skipping undecodable snapshot of room %s: %v", m.roomID, err)
			continue
		}
		if room != nil && room.ID == "" {
			room.ID = m.roomID
		}

		if room != nil && h.observer != nil {
			h.observer.Observe(h.ctx, room)
		}

		view := ceremony.NewView(m.roomID, room, h.rules)
		m.publish(view)

		if room == nil {
			log.Printf("🔌 Room %s is gone, stopping its mirror", m.roomID)
			return
		}
		if h.retire(m) {
			log.Printf("💍 Room %s is completed and idle, stopping its mirror", m.roomID)
			return
		}
	}

	if err := m.sub.Err(); err != nil {
		log.Printf("⚠️  Subscription for room %s ended: %v", m.roomID, err)
	}
}

// stop detaches the mirror and closes its listeners
func (h *Hub) stop(m *mirror) {
	h.mu.Lock()
	if h.mirrors[m.roomID] == m {
		delete(h.mirrors, m.roomID)
	}
	h.mu.Unlock()

	m.sub.Close()

	m.mu.Lock()
	m.stopped = true
	for l := range m.listeners {
		delete(m.listeners, l)
		close(l.c)
	}
	m.mu.Unlock()
}

// retire detaches m when its room is completed and no listener is attached
// or on the way. The caller must then close m.sub.
func (h *Hub) retire(m *mirror) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.closed || m.stopped || len(m.listeners) > 0 || m.pending > 0 {
		return false
	}
	if m.latest == nil || m.latest.Room == nil || !m.latest.Room.IsCompleted {
		return false
	}
	m.stopped = true
	if h.mirrors[m.roomID] == m {
		delete(h.mirrors, m.roomID)
	}
	return true
}

func (m *mirror) publish(view ceremony.View) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = &view
	for l := range m.listeners {
		select {
		case l.c <- view:
		default:
			// Listener is too slow, drop
		}
	}
}

// Listen registers a listener for roomID and starts its mirror if needed.
// The latest known view is delivered first. The listener is closed when
// ctx is done.
func (h *Hub) Listen(ctx context.Context, roomID string) (*Listener, error) {
	if _, err := h.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	m, err := h.mirror(roomID, true)
	if err != nil {
		return nil, err
	}

	c := make(chan ceremony.View, listenerBuffer)
	l := &Listener{
		C:    c,
		c:    c,
		m:    m,
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.pending--
	if m.stopped {
		m.mu.Unlock()
		return nil, models.ErrRoomNotFound
	}
	if m.latest != nil {
		l.c <- *m.latest
	}
	m.listeners[l] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-l.done:
		}
	}()

	return l, nil
}

// Close unregisters the listener. It is safe to call more than once.
// Closing the last listener of a completed room retires its mirror.
func (l *Listener) Close() {
	l.once.Do(func() {
		close(l.done)
		l.m.mu.Lock()
		if _, ok := l.m.listeners[l]; ok {
			delete(l.m.listeners, l)
			close(l.c)
		}
		l.m.mu.Unlock()

		if l.m.hub.retire(l.m) {
			log.Printf("💍 Room %s is completed and idle, stopping its mirror", l.m.roomID)
			l.m.sub.Close()
		}
	})
}

// View returns the latest view of a watched room
func (h *Hub) View(roomID string) (ceremony.View, bool) {
	h.mu.Lock()
	m, ok := h.mirrors[roomID]
	h.mu.Unlock()
	if !ok {
		return ceremony.View{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return ceremony.View{}, false
	}
	return *m.latest, true
}

// Close stops every mirror and waits for them to finish. No view is
// delivered after Close returns.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.cancel()
	mirrors := make([]*mirror, 0, len(h.mirrors))
	for _, m := range h.mirrors {
		mirrors = append(mirrors, m)
	}
	h.mu.Unlock()

	for _, m := range mirrors {
		m.sub.Close()
	}
	h.wg.Wait()
}
