package stream

import (
	"sync/atomic"

	"github.com/xraph/researchsync/update"
)

// Subscription is a buffered channel of updates from a Hub.
type Subscription struct {
	id     string
	ch     chan update.Update
	hub    *Hub
	closed atomic.Bool

	dropped atomic.Int64
}

func newSubscription(subID string, bufferSize int, hub *Hub) *Subscription {
	return &Subscription{
		id:  subID,
		ch:  make(chan update.Update, bufferSize),
		hub: hub,
	}
}

// ID returns the subscription's listener id.
func (s *Subscription) ID() string { return s.id }

// C returns the receive channel. It is closed when the subscription closes.
func (s *Subscription) C() <-chan update.Update { return s.ch }

// Dropped returns how many updates were dropped on a full buffer.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscription from its hub. Safe to call repeatedly.
func (s *Subscription) Close() { s.hub.remove(s) }

// send is called with the hub read lock held. It returns false when the
// buffer is full.
func (s *Subscription) send(u update.Update) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- u:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// closeLocked is called with the hub write lock held.
func (s *Subscription) closeLocked() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
