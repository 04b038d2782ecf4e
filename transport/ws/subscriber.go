// Package ws provides an Update Subscriber that receives research updates
// over a WebSocket.
//
// The producer sends one update per message: text frames carry JSON,
// binary frames carry MessagePack. When the connection drops the
// Subscriber reconnects with a backoff.Strategy; updates sent while it is
// disconnected are lost, which the at-most-once push contract allows (the
// poll loop covers the gap).
//
// Usage:
//
//	sub, err := ws.Dial(ctx, "wss://research.example.com/updates",
//	    ws.WithToken("rk_..."),
//	)
//	defer sub.Close()
//
//	eng, err := engine.New(backend, sub)
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/backoff"
	"github.com/xraph/researchsync/stream"
	"github.com/xraph/researchsync/update"
)

// Subscriber is a reconnecting WebSocket update source. It implements
// push.Subscriber.
type Subscriber struct {
	url        string
	token      string
	logger     *slog.Logger
	strategy   backoff.Strategy
	maxRetries int

	hub    *stream.Hub
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   net.Conn
	closed atomic.Bool

	received     atomic.Int64
	decodeErrors atomic.Int64
	reconnects   atomic.Int64
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithToken sends token as a bearer Authorization header on every
// handshake.
func WithToken(token string) Option {
	return func(s *Subscriber) { s.token = token }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

// WithBackoff sets the reconnect delay strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Subscriber) { s.strategy = b }
}

// WithMaxRetries bounds consecutive failed reconnect attempts. Zero, the
// default, retries until Close.
func WithMaxRetries(n int) Option {
	return func(s *Subscriber) { s.maxRetries = n }
}

// Dial connects to url and starts receiving. The first connection must
// succeed; later drops are retried in the background.
func Dial(ctx context.Context, url string, opts ...Option) (*Subscriber, error) {
	s := &Subscriber{
		url:      url,
		logger:   slog.Default(),
		strategy: backoff.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = stream.NewHub(s.logger)

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ws dial %s: %w", researchsync.ErrTransport, url, err)
	}
	s.conn = conn

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.run(conn)

	s.logger.Info("update stream connected", slog.String("url", url))
	return s, nil
}

// Subscribe registers fn for every update received from now on.
func (s *Subscriber) Subscribe(fn func(update.Update)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// Stats returns connection counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received:     s.received.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		Reconnects:   s.reconnects.Load(),
	}
}

// Stats contains subscriber counters.
type Stats struct {
	Received     int64 `json:"received"`
	DecodeErrors int64 `json:"decode_errors"`
	Reconnects   int64 `json:"reconnects"`
}

// Close stops reconnecting, closes the connection and removes all
// callbacks. Safe to call repeatedly.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.hub.Close()
	return err
}

func (s *Subscriber) connect(ctx context.Context) (net.Conn, error) {
	d := ws.Dialer{}
	if s.token != "" {
		d.Header = ws.HandshakeHeaderHTTP(http.Header{
			"Authorization": []string{"Bearer " + s.token},
		})
	}
	conn, _, _, err := d.Dial(ctx, s.url)
	return conn, err
}

// run reads from conn until it fails, then reconnects, until Close.
func (s *Subscriber) run(conn net.Conn) {
	defer s.wg.Done()
	for {
		err := s.readLoop(conn)
		if s.closed.Load() {
			return
		}
		s.logger.Warn("update stream read error", slog.String("error", err.Error()))

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()

		conn = s.reconnect()
		if conn == nil {
			return
		}
	}
}

// readLoop decodes frames from conn and publishes them until a read fails.
func (s *Subscriber) readLoop(conn net.Conn) error {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			return err
		}

		var codec update.Codec
		switch op {
		case ws.OpText:
			codec = update.JSONCodec{}
		case ws.OpBinary:
			codec = update.MsgpackCodec{}
		default:
			continue
		}

		u, err := codec.Decode(data)
		if err != nil {
			s.decodeErrors.Add(1)
			s.logger.Warn("update stream: invalid message",
				slog.String("codec", codec.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.received.Add(1)
		s.hub.Publish(u)
	}
}

// reconnect dials until it succeeds, retries run out, or Close is called.
// It returns nil in the latter two cases.
func (s *Subscriber) reconnect() net.Conn {
	for attempt := 1; s.maxRetries == 0 || attempt <= s.maxRetries; attempt++ {
		if err := backoff.Wait(s.ctx, s.strategy, attempt); err != nil {
			return nil
		}
		s.logger.Info("update stream reconnecting", slog.Int("attempt", attempt))

		conn, err := s.connect(s.ctx)
		if err != nil {
			s.logger.Warn("update stream reconnect failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conn = conn
		s.mu.Unlock()

		s.reconnects.Add(1)
		s.logger.Info("update stream reconnected", slog.Int("attempt", attempt))
		return conn
	}
	s.logger.Error("update stream: max reconnection attempts reached")
	return nil
}
