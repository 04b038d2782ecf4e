package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/researchsync/engine"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/push"
	"github.com/xraph/researchsync/store/memory"
	"github.com/xraph/researchsync/stream"
	redistransport "github.com/xraph/researchsync/transport/redis"
)

var demoCmd = &cobra.Command{
	Use:   "demo <platform> <market-id>",
	Short: "Run a simulated producer against an in-memory backend",
	Long: `demo starts a job on an in-memory backend and plays a producer run
against it: pipeline phases, progress, a completed report and a follow-up.
Updates travel over an in-process hub, or over Redis Pub/Sub when
--redis-addr is set.`,
	Args: cobra.ExactArgs(2),
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().DurationVar(&cfg.demoStepDelay, "step-delay", 500*time.Millisecond, "delay between simulated producer steps")
}

func runDemo(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var (
		store *memory.Store
		sub   push.Subscriber
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.redisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.redisAddr})
		defer client.Close()
		rs := redistransport.New(client, cfg.redisChannel, redistransport.WithLogger(logger))
		defer rs.Close()
		g.Go(func() error { return rs.Run(gctx) })
		store = memory.New(memory.WithPublisher(redistransport.NewPublisher(client, cfg.redisChannel, redistransport.WithLogger(logger))))
		sub = rs
	} else {
		hub := stream.NewHub(logger)
		defer hub.Close()
		store = memory.New(memory.WithPublisher(hub))
		sub = hub
	}

	eng, err := newEngine(store, sub)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close(context.Background()) }()

	started := make(chan string, 1)
	g.Go(func() error {
		var jobID string
		select {
		case jobID = <-started:
		case <-gctx.Done():
			return nil
		}
		return simulate(gctx, store, eng, key, jobID, cfg.demoStepDelay)
	})

	err = track(gctx, cmd.OutOrStdout(), eng, key, func(ctx context.Context, eng *engine.Engine, key job.Key) (string, error) {
		jobID, err := eng.Start(ctx, key)
		if err == nil {
			started <- jobID
		}
		return jobID, err
	})
	if err != nil {
		return err
	}
	// track returns at the first terminal state; let the follow-up finish.
	return g.Wait()
}

// simulate plays a producer run for jobID, then a follow-up, and finally
// resumes the engine on the rotated job id.
func simulate(ctx context.Context, s *memory.Store, eng *engine.Engine, key job.Key, jobID string, delay time.Duration) error {
	step := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			return nil
		}
	}

	phases := []string{"decomposing", "searching", "analyzing", "synthesizing"}
	for i, phase := range phases {
		if err := step(); err != nil {
			return nil
		}
		if err := s.SetStatus(ctx, jobID, job.StatusRunning, phase); err != nil {
			return err
		}
		err := s.SetProgress(ctx, jobID, job.Progress{
			CurrentStep:       phase,
			TotalSteps:        len(phases),
			CompletedSteps:    i,
			SearchesCompleted: i * 3,
			SearchesTotal:     len(phases) * 3,
		})
		if err != nil {
			return err
		}
	}

	if err := step(); err != nil {
		return nil
	}
	report := job.Report{
		Title:                fmt.Sprintf("Research: %s", key),
		ExecutiveSummary:     "Simulated research run.",
		Sections:             []job.Section{{Heading: "Overview", Content: "Market overview."}},
		KeyFactors:           []job.KeyFactor{{Factor: "Liquidity", Impact: "neutral", Confidence: "medium"}},
		ConfidenceAssessment: "medium",
	}
	if err := s.Complete(ctx, jobID, report); err != nil {
		return err
	}

	if err := step(); err != nil {
		return nil
	}
	refined := report
	refined.Title += " (refined)"
	newID, err := s.FollowUp(ctx, jobID, []string{"Refining ", "the ", "analysis."}, refined)
	if err != nil {
		return err
	}
	logger.Info("demo follow-up finished", slog.String("job_id", newID))

	if _, err := eng.RefreshByKey(ctx, key); err != nil {
		return err
	}
	st := eng.State()
	if st.Job != nil && st.Job.Report != nil {
		logger.Info("demo resumed on rotated job",
			slog.String("job_id", st.JobID),
			slog.String("report", st.Job.Report.Title),
		)
	}
	return nil
}
