package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/update"
)

// publishTimeout bounds Publish calls made without a caller context.
const publishTimeout = 5 * time.Second

// Publisher encodes updates onto a Redis channel. It lets in-process
// producers (such as store/memory) feed remote Subscribers.
type Publisher struct {
	client  redis.Cmdable
	channel string
	codec   update.Codec
	logger  *slog.Logger
}

// NewPublisher creates a Publisher for channel.
func NewPublisher(client redis.Cmdable, channel string, opts ...Option) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	o := buildOptions(opts)
	return &Publisher{client: client, channel: channel, codec: o.codec, logger: o.logger}
}

// PublishContext encodes u and publishes it.
func (p *Publisher) PublishContext(ctx context.Context, u update.Update) error {
	data, err := p.codec.Encode(u)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %w", researchsync.ErrTransport, p.channel, err)
	}
	return nil
}

// Publish implements memory.Publisher. Errors are logged, not returned,
// since push delivery is at-most-once.
func (p *Publisher) Publish(u update.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.PublishContext(ctx, u); err != nil {
		p.logger.Warn("update publish failed",
			slog.String("kind", string(u.Kind())),
			slog.String("job_id", u.TargetJob()),
			slog.String("error", err.Error()),
		)
	}
}
