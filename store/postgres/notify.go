package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/update"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying JSON-encoded updates.
const NotifyChannel = "researchsync_updates"

// Publish sends u to every listener through pg_notify.
func (s *Store) Publish(ctx context.Context, u update.Update) error {
	data, err := update.JSONCodec{}.Encode(u)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(data)); err != nil {
		return fmt.Errorf("%w: researchsync/postgres: notify: %w", researchsync.ErrTransport, err)
	}
	return nil
}

// Listen holds a dedicated connection on NotifyChannel and relays each
// notification to Subscribe callbacks until ctx is done. Notifications
// sent while no connection is listening are lost.
func (s *Store) Listen(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: researchsync/postgres: acquire listener: %w", researchsync.ErrTransport, err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("%w: researchsync/postgres: listen: %w", researchsync.ErrTransport, err)
	}
	s.logger.Info("listening for updates", slog.String("channel", NotifyChannel))

	codec := update.JSONCodec{}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("%w: researchsync/postgres: wait for notification: %w", researchsync.ErrTransport, err)
		}
		u, err := codec.Decode([]byte(n.Payload))
		if err != nil {
			s.logger.Warn("update notification: invalid payload",
				slog.String("channel", n.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.hub.Publish(u)
	}
}
