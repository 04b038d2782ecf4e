package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/researchsync/engine"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/reconcile"
)

var startCmd = &cobra.Command{
	Use:   "start <platform> <market-id>",
	Short: "Start a new research job and watch it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracked(cmd, args, func(ctx context.Context, eng *engine.Engine, key job.Key) (string, error) {
			return eng.Start(ctx, key)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <platform> <market-id>",
	Short: "Watch the current job for a market, e.g. after a follow-up",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracked(cmd, args, func(ctx context.Context, eng *engine.Engine, key job.Key) (string, error) {
			return eng.RefreshByKey(ctx, key)
		})
	},
}

func parseKey(args []string) (job.Key, error) {
	p, err := job.ParsePlatform(args[0])
	if err != nil {
		return job.Key{}, err
	}
	key := job.Key{Platform: p, MarketID: args[1]}
	return key, key.Validate()
}

type activateFunc func(ctx context.Context, eng *engine.Engine, key job.Key) (string, error)

func runTracked(cmd *cobra.Command, args []string, activate activateFunc) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.shutdown(context.Background()) }()

	return track(ctx, cmd.OutOrStdout(), rt.engine, key, activate)
}

// track activates key and prints state changes until the job is terminal
// (unless --follow) or ctx ends.
func track(ctx context.Context, out io.Writer, eng *engine.Engine, key job.Key, activate activateFunc) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	states := eng.Watch(watchCtx)

	jobID, err := activate(ctx, eng, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "tracking %s as %s\n", key, jobID)

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			line := describe(st)
			if line != "" && line != last {
				fmt.Fprintln(out, line)
				last = line
			}
			if st.Terminal() && !st.FollowUp && !cfg.follow {
				return nil
			}
		}
	}
}

// describe renders one line per observable state.
func describe(st reconcile.State) string {
	if !st.Active() || st.Job == nil {
		return ""
	}
	j := st.Job
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-9s", j.ID, j.Status)
	if j.Phase != "" && j.Status == job.StatusRunning {
		fmt.Fprintf(&b, " phase=%s", j.Phase)
	}
	if p := j.Progress; p != nil && j.Status == job.StatusRunning {
		fmt.Fprintf(&b, " step=%d/%d (%.0f%%)", p.CompletedSteps, p.TotalSteps, p.Fraction()*100)
		if p.SearchesTotal > 0 {
			fmt.Fprintf(&b, " searches=%d/%d", p.SearchesCompleted, p.SearchesTotal)
		}
	}
	if st.FollowUp {
		fmt.Fprintf(&b, " follow-up buffer=%d bytes", len(st.Buffer))
	}
	switch {
	case j.Status == job.StatusFailed:
		fmt.Fprintf(&b, " error=%q", j.Error)
	case j.Report != nil:
		fmt.Fprintf(&b, " report=%q", j.Report.Title)
	}
	return b.String()
}
