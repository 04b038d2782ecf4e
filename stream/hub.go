package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/update"
)

// DefaultBufferSize is the default per-subscription channel buffer.
const DefaultBufferSize = 256

// Hub is an at-most-once fan-out of updates. It is safe for concurrent use.
type Hub struct {
	logger     *slog.Logger
	bufferSize int

	mu        sync.RWMutex
	callbacks map[string]func(update.Update)
	subs      map[string]*Subscription
	closed    bool

	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalDropped   atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the buffer size of channel subscriptions.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.bufferSize = size }
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger:     logger,
		bufferSize: DefaultBufferSize,
		callbacks:  make(map[string]func(update.Update)),
		subs:       make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers fn for every subsequently published update and
// returns a function that removes it. fn runs on the publisher's goroutine
// and must not block. The returned function is idempotent.
func (h *Hub) Subscribe(fn func(update.Update)) (unsubscribe func()) {
	lid := id.NewListener().String()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.callbacks[lid] = fn
	h.mu.Unlock()

	h.logger.Debug("hub callback registered", slog.String("listener_id", lid))

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.callbacks, lid)
			h.mu.Unlock()
			h.logger.Debug("hub callback removed", slog.String("listener_id", lid))
		})
	}
}

// Channel opens a buffered channel subscription. Close it with
// Subscription.Close or Hub.Close.
func (h *Hub) Channel() *Subscription {
	sub := newSubscription(id.NewListener().String(), h.bufferSize, h)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closeLocked()
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers u to every callback and channel subscription registered
// at the time of the call. It never blocks on a slow channel subscriber.
func (h *Hub) Publish(u update.Update) {
	if u == nil {
		return
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	fns := make([]func(update.Update), 0, len(h.callbacks))
	for _, fn := range h.callbacks {
		fns = append(fns, fn)
	}
	var delivered, dropped int64
	for _, sub := range h.subs {
		if sub.send(u) {
			delivered++
		} else {
			dropped++
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(u)
		delivered++
	}

	h.totalPublished.Add(1)
	h.totalDelivered.Add(delivered)
	if dropped > 0 {
		h.totalDropped.Add(dropped)
		h.logger.Debug("hub dropped update",
			slog.String("kind", string(u.Kind())),
			slog.String("job_id", u.TargetJob()),
			slog.Int64("subscribers", dropped),
		)
	}
}

// Close removes all callbacks and closes all channel subscriptions. Later
// publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	clear(h.callbacks)
	for k, sub := range h.subs {
		sub.closeLocked()
		delete(h.subs, k)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		sub.closeLocked()
	}
}

// Stats returns hub statistics.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	callbacks, channels := len(h.callbacks), len(h.subs)
	h.mu.RUnlock()
	return HubStats{
		Callbacks:      callbacks,
		Channels:       channels,
		TotalPublished: h.totalPublished.Load(),
		TotalDelivered: h.totalDelivered.Load(),
		TotalDropped:   h.totalDropped.Load(),
	}
}

// HubStats contains hub metrics.
type HubStats struct {
	Callbacks      int   `json:"callbacks"`
	Channels       int   `json:"channels"`
	TotalPublished int64 `json:"total_published"`
	TotalDelivered int64 `json:"total_delivered"`
	TotalDropped   int64 `json:"total_dropped"`
}
