// Package redis provides an Update Subscriber and Publisher over Redis
// Pub/Sub.
//
// Each message on the channel is one encoded update (JSON by default,
// MessagePack with WithCodec). Redis Pub/Sub is fire-and-forget, which
// matches the at-most-once push contract.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sub := redistransport.New(client, "research:updates")
//	go sub.Run(ctx)
//	defer sub.Close()
//
//	eng, err := engine.New(backend, sub)
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/stream"
	"github.com/xraph/researchsync/update"
)

// DefaultChannel is the Pub/Sub channel used when none is given.
const DefaultChannel = "researchsync:updates"

// PubSubClient is the part of a go-redis client the Subscriber needs.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type PubSubClient interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Option configures a Subscriber or Publisher.
type Option func(*options)

type options struct {
	codec  update.Codec
	logger *slog.Logger
}

// WithCodec sets the message codec.
func WithCodec(c update.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{codec: update.JSONCodec{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Subscriber receives updates from a Redis channel and fans them out to
// callbacks. It implements push.Subscriber.
type Subscriber struct {
	client  PubSubClient
	channel string
	codec   update.Codec
	logger  *slog.Logger
	hub     *stream.Hub

	received     atomic.Int64
	decodeErrors atomic.Int64
}

// New creates a Subscriber for channel. The caller owns the Redis client
// lifecycle. Nothing is received until Run is called.
func New(client PubSubClient, channel string, opts ...Option) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	o := buildOptions(opts)
	return &Subscriber{
		client:  client,
		channel: channel,
		codec:   o.codec,
		logger:  o.logger,
		hub:     stream.NewHub(o.logger),
	}
}

// Subscribe registers fn for every update received from now on.
func (s *Subscriber) Subscribe(fn func(update.Update)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// Run subscribes to the channel and publishes received updates until ctx
// is done. go-redis re-establishes dropped Pub/Sub connections itself.
func (s *Subscriber) Run(ctx context.Context) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: redis subscribe %s: %w", researchsync.ErrTransport, s.channel, err)
	}
	s.logger.Info("update channel subscribed", slog.String("channel", s.channel))

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *Subscriber) handle(payload string) {
	u, err := s.codec.Decode([]byte(payload))
	if err != nil {
		s.decodeErrors.Add(1)
		s.logger.Warn("update channel: invalid message",
			slog.String("channel", s.channel),
			slog.String("codec", s.codec.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.received.Add(1)
	s.hub.Publish(u)
}

// Received returns the number of updates decoded so far.
func (s *Subscriber) Received() int64 { return s.received.Load() }

// DecodeErrors returns the number of messages that failed to decode.
func (s *Subscriber) DecodeErrors() int64 { return s.decodeErrors.Load() }

// Close removes all callbacks. Stop Run by cancelling its context.
func (s *Subscriber) Close() error {
	s.hub.Close()
	return nil
}
