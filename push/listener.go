// Package push implements the Push Listener: the fast channel that receives
// incremental research updates from an Update Subscriber, filters them by
// the active job id and forwards the in-scope ones to the reconciler in
// arrival order.
package push

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/researchsync/reconcile"
	"github.com/xraph/researchsync/update"
)

// Subscriber delivers updates to registered callbacks. Delivery is
// at-most-once and may stay silent indefinitely. Callbacks must not block.
// stream.Hub, ws.Subscriber, redis.Subscriber and postgres.Store implement it.
type Subscriber interface {
	Subscribe(fn func(update.Update)) (unsubscribe func())
}

// DefaultQueueSize is the default number of updates buffered per pump.
const DefaultQueueSize = 256

// Listener attaches pumps to a Subscriber.
type Listener struct {
	sub       Subscriber
	queueSize int
	logger    *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithQueueSize sets the per-pump buffer between the subscriber callback
// and the reconciler.
func WithQueueSize(n int) Option {
	return func(l *Listener) { l.queueSize = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a Listener on sub.
func NewListener(sub Subscriber, opts ...Option) *Listener {
	l := &Listener{
		sub:       sub,
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.queueSize <= 0 {
		l.queueSize = DefaultQueueSize
	}
	return l
}

// Listen registers a callback for act immediately and returns the pump
// that forwards its updates. The callback is removed when the pump's Run
// returns or Close is called.
func (l *Listener) Listen(act *reconcile.Activation) *Pump {
	p := &Pump{
		act:    act,
		queue:  make(chan update.Update, l.queueSize),
		logger: l.logger,
	}
	p.unsubscribe = l.sub.Subscribe(p.receive)
	l.logger.Debug("push listener attached", slog.String("job_id", act.JobID()))
	return p
}

// Pump moves in-scope updates for one activation into the reconciler.
type Pump struct {
	act         *reconcile.Activation
	queue       chan update.Update
	logger      *slog.Logger
	unsubscribe func()
	closeOnce   sync.Once

	received  atomic.Int64
	filtered  atomic.Int64
	dropped   atomic.Int64
	forwarded atomic.Int64
}

// receive runs on the subscriber's goroutine and never blocks.
func (p *Pump) receive(u update.Update) {
	p.received.Add(1)
	if u == nil || !update.InScope(u, p.act.JobID()) {
		p.filtered.Add(1)
		return
	}
	select {
	case p.queue <- u:
	default:
		p.dropped.Add(1)
		p.logger.Warn("push queue full, update dropped",
			slog.String("job_id", p.act.JobID()),
			slog.String("kind", string(u.Kind())),
		)
	}
}

// Run forwards queued updates until ctx is done, then detaches. It always
// returns nil.
func (p *Pump) Run(ctx context.Context) error {
	defer p.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-p.queue:
			p.act.ApplyUpdate(ctx, u)
			p.forwarded.Add(1)
		}
	}
}

// Close removes the subscriber callback. Safe to call repeatedly.
func (p *Pump) Close() {
	p.closeOnce.Do(func() {
		p.unsubscribe()
		p.logger.Debug("push listener detached", slog.String("job_id", p.act.JobID()))
	})
}

// Stats returns pump counters.
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Received:  p.received.Load(),
		Filtered:  p.filtered.Load(),
		Dropped:   p.dropped.Load(),
		Forwarded: p.forwarded.Load(),
	}
}

// PumpStats contains pump counters.
type PumpStats struct {
	Received  int64 `json:"received"`
	Filtered  int64 `json:"filtered"`
	Dropped   int64 `json:"dropped"`
	Forwarded int64 `json:"forwarded"`
}
