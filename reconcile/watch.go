package reconcile

import "context"

// watcher holds the latest unseen state for one observer. The channel has
// capacity one and is overwritten, so slow observers skip intermediate
// states but always end on the newest.
type watcher struct {
	ch chan State
}

// Watch returns a channel delivering the current state and then every
// subsequent state change. Intermediate states may be conflated. The
// channel is closed when ctx is done or the reconciler is closed.
func (r *Reconciler) Watch(ctx context.Context) <-chan State {
	w := &watcher{ch: make(chan State, 1)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(w.ch)
		return w.ch
	}
	r.watchers[w] = struct{}{}
	w.ch <- r.stateLocked()
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-r.done:
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.watchers[w]; ok {
			delete(r.watchers, w)
			close(w.ch)
		}
	}()
	return w.ch
}

// Close closes every watch channel. Later Watch calls return a closed
// channel; apply operations keep working.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	for w := range r.watchers {
		delete(r.watchers, w)
		close(w.ch)
	}
}

// publishLocked must be called with r.mu held. Only the lock holder sends,
// so after draining the slot the send cannot block.
func (r *Reconciler) publishLocked() {
	if len(r.watchers) == 0 {
		return
	}
	s := r.stateLocked()
	for w := range r.watchers {
		select {
		case w.ch <- s:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- s
		}
	}
}
