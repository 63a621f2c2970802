package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// ErrClosed is returned by Next once the subscription or hub is closed and drained.
var ErrClosed = errors.New("notify: subscription closed")

const defaultBuffer = 64

// Hub fans progress events out to live subscribers. There is no replay: a subscriber
// only sees events published after Subscribe returned. Publish never blocks on
// subscribers; each has a bounded queue that sheds its oldest non-terminal event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	log    *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

type HubOption func(*Hub)

// WithBuffer sets the per-subscriber queue capacity.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultBuffer,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type subscribeConfig struct {
	jobID uuid.UUID
}

type SubscribeOption func(*subscribeConfig)

// ForJob limits the subscription to one job's events.
func ForJob(id uuid.UUID) SubscribeOption {
	return func(c *subscribeConfig) { c.jobID = id }
}

// Subscribe registers a new subscriber. Subscribing to a closed hub returns a
// subscription whose Next reports ErrClosed.
func (h *Hub) Subscribe(opts ...SubscribeOption) *Subscription {
	var cfg subscribeConfig
	for _, o := range opts {
		o(&cfg)
	}

	s := &Subscription{
		hub:    h,
		jobID:  cfg.jobID,
		limit:  h.buffer,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.shutdown()
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.log.Debug("hub.subscribe", "sub_id", s.id, "job_id", cfg.jobID, "subscribers", len(h.subs))
	return s
}

// Unsubscribe removes s and wakes any pending Next. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	s.shutdown()
	if ok {
		h.log.Debug("hub.unsubscribe", "sub_id", s.id, "subscribers", n)
	}
}

// Publish delivers evt to every current subscriber whose filter matches.
func (h *Hub) Publish(evt entity.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for _, s := range h.subs {
		if n := s.offer(evt); n > 0 {
			h.dropped.Add(uint64(n))
			h.log.Warn("hub.publish.dropped", "sub_id", s.id, "job_id", evt.JobID, "dropped", n)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return Stats{Subscribers: n, Published: h.published.Load(), Dropped: h.dropped.Load()}
}

// Close ends every subscription. Queued events can still be drained with Next.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.shutdown()
	}
	h.log.Info("hub.closed", "subscribers", len(subs))
}

// Subscription is one subscriber's queue.
type Subscription struct {
	id     uint64
	hub    *Hub
	jobID  uuid.UUID
	limit  int
	notify chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   []entity.ProgressEvent
	closed  bool
	dropped uint64
}

// JobID is the filter, or uuid.Nil for all jobs.
func (s *Subscription) JobID() uuid.UUID { return s.jobID }

// Dropped counts events this subscriber lost to overflow.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes from the hub.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

// Next blocks until an event is available, ctx ends, or the subscription is closed
// with an empty queue.
func (s *Subscription) Next(ctx context.Context) (entity.ProgressEvent, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue[0] = entity.ProgressEvent{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return evt, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return entity.ProgressEvent{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return entity.ProgressEvent{}, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}

// offer enqueues evt and returns how many events were shed to make room.
func (s *Subscription) offer(evt entity.ProgressEvent) int {
	if s.jobID != uuid.Nil && s.jobID != evt.JobID {
		return 0
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	shed := 0
	if len(s.queue) >= s.limit {
		if i := oldestNonTerminal(s.queue); i >= 0 {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			shed = 1
		} else if !evt.Terminal() {
			// queue is all terminal events; the incoming progress update loses
			s.dropped++
			s.mu.Unlock()
			return 1
		}
		// a terminal event is kept even if the queue has to grow past the limit
	}
	s.queue = append(s.queue, evt)
	s.dropped += uint64(shed)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return shed
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func oldestNonTerminal(q []entity.ProgressEvent) int {
	for i, e := range q {
		if !e.Terminal() {
			return i
		}
	}
	return -1
}
