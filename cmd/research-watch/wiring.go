package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/researchsync"
	audithook "github.com/xraph/researchsync/audit_hook"
	"github.com/xraph/researchsync/engine"
	"github.com/xraph/researchsync/fetch/httpapi"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/observability"
	"github.com/xraph/researchsync/push"
	"github.com/xraph/researchsync/store/postgres"
	redistransport "github.com/xraph/researchsync/transport/redis"
	"github.com/xraph/researchsync/transport/ws"
)

// runtime bundles the engine with the background work and resources that
// feed it.
type runtime struct {
	engine  *engine.Engine
	group   *errgroup.Group
	cancel  context.CancelFunc
	closers []func() error
}

// shutdown stops the engine, background receivers and transports.
func (rt *runtime) shutdown(ctx context.Context) error {
	err := rt.engine.Close(ctx)
	if errors.Is(err, researchsync.ErrEngineClosed) {
		err = nil
	}
	rt.cancel()
	if werr := rt.group.Wait(); werr != nil {
		err = errors.Join(err, werr)
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, rt.closers[i]())
	}
	return err
}

// buildRuntime picks the backend and update transport from cfg.
//
// Backend: PostgreSQL when a DSN is set, otherwise the REST API.
// Transport: WebSocket, then Redis, then PostgreSQL LISTEN/NOTIFY.
func buildRuntime(ctx context.Context) (*runtime, error) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(bgCtx)
	rt := &runtime{group: g, cancel: cancel}

	fail := func(err error) (*runtime, error) {
		cancel()
		_ = g.Wait()
		for i := len(rt.closers) - 1; i >= 0; i-- {
			_ = rt.closers[i]()
		}
		return nil, err
	}

	var (
		backend job.Backend
		pg      *postgres.Store
	)
	switch {
	case cfg.postgresDSN != "":
		s, err := postgres.New(ctx, cfg.postgresDSN, postgres.WithLogger(logger))
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, s.Close)
		if err := s.Migrate(ctx); err != nil {
			return fail(err)
		}
		backend, pg = s, s
	case cfg.apiURL != "":
		opts := []httpapi.Option{httpapi.WithLogger(logger), httpapi.WithToken(cfg.token)}
		if cfg.rateLimit > 0 {
			opts = append(opts, httpapi.WithRateLimit(cfg.rateLimit, 1))
		}
		backend = httpapi.New(cfg.apiURL, opts...)
	default:
		return fail(errors.New("no backend: set --api-url or --postgres-dsn"))
	}

	var sub push.Subscriber
	switch {
	case cfg.wsURL != "":
		s, err := ws.Dial(ctx, cfg.wsURL, ws.WithToken(cfg.token), ws.WithLogger(logger))
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, s.Close)
		sub = s
	case cfg.redisAddr != "":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.redisAddr})
		rt.closers = append(rt.closers, client.Close)
		s := redistransport.New(client, cfg.redisChannel, redistransport.WithLogger(logger))
		rt.closers = append(rt.closers, s.Close)
		g.Go(func() error { return s.Run(gctx) })
		sub = s
	case pg != nil:
		g.Go(func() error { return pg.Listen(gctx) })
		sub = pg
	default:
		return fail(errors.New("no update feed: set --ws-url, --redis-addr or --postgres-dsn"))
	}

	eng, err := newEngine(backend, sub)
	if err != nil {
		return fail(err)
	}
	rt.engine = eng
	return rt, nil
}

func newEngine(backend job.Backend, sub push.Subscriber) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithPollInterval(cfg.pollInterval),
		engine.WithProgressRule(researchsync.ProgressRule(cfg.progressRule)),
		engine.WithLogger(logger),
		engine.WithExtension(observability.NewMetricsExtension()),
	}
	if cfg.audit {
		opts = append(opts, engine.WithExtension(
			audithook.New(audithook.NewLogRecorder(logger), audithook.WithLogger(logger)),
		))
	}
	eng, err := engine.New(backend, sub, opts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	logger.Debug("engine ready",
		slog.Duration("poll_interval", cfg.pollInterval),
		slog.String("progress_rule", cfg.progressRule),
	)
	return eng, nil
}
