// Command research-watch starts or resumes a research job and prints every
// state change the synchronization engine observes.
//
// Configuration comes from flags, falling back to environment variables
// (optionally loaded from a .env file):
//
//	RESEARCH_API_URL       research REST API base URL
//	RESEARCH_API_TOKEN     bearer token for the API and WebSocket
//	RESEARCH_WS_URL        WebSocket update feed
//	RESEARCH_REDIS_ADDR    Redis server carrying updates over Pub/Sub
//	RESEARCH_REDIS_CHANNEL Redis Pub/Sub channel
//	RESEARCH_POSTGRES_DSN  PostgreSQL database holding research_jobs
//	RESEARCH_POLL_INTERVAL snapshot poll interval, e.g. 5s
//	RESEARCH_PROGRESS_RULE push_authoritative or last_write_wins
//	RESEARCH_LOG_LEVEL     debug, info, warn or error
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xraph/researchsync"
)

// settings holds the resolved configuration.
type settings struct {
	envFile       string
	apiURL        string
	token         string
	wsURL         string
	redisAddr     string
	redisChannel  string
	postgresDSN   string
	pollInterval  time.Duration
	progressRule  string
	logLevel      string
	rateLimit     float64
	follow        bool
	audit         bool
	demoStepDelay time.Duration
}

var (
	cfg    settings
	logger *slog.Logger
)

// envBindings maps flag names to the environment variables that supply
// their defaults.
var envBindings = map[string]string{
	"api-url":       "RESEARCH_API_URL",
	"token":         "RESEARCH_API_TOKEN",
	"ws-url":        "RESEARCH_WS_URL",
	"redis-addr":    "RESEARCH_REDIS_ADDR",
	"redis-channel": "RESEARCH_REDIS_CHANNEL",
	"postgres-dsn":  "RESEARCH_POSTGRES_DSN",
	"poll-interval": "RESEARCH_POLL_INTERVAL",
	"progress-rule": "RESEARCH_PROGRESS_RULE",
	"log-level":     "RESEARCH_LOG_LEVEL",
}

var rootCmd = &cobra.Command{
	Use:   "research-watch",
	Short: "Track a market research job through polling and pushed updates",
	Long: `research-watch drives the research synchronization engine from the
command line. It merges periodic snapshots with pushed incremental updates
and prints each state change until the job reaches a terminal status.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadEnv(cmd.Flags(), cfg.envFile); err != nil {
			return err
		}
		l, err := newLogger(cfg.logLevel)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	defaults := researchsync.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.envFile, "env-file", ".env", "environment file to load if present")
	pf.StringVar(&cfg.apiURL, "api-url", "", "research REST API base URL")
	pf.StringVar(&cfg.token, "token", "", "bearer token for the API and update feed")
	pf.StringVar(&cfg.wsURL, "ws-url", "", "WebSocket update feed URL")
	pf.StringVar(&cfg.redisAddr, "redis-addr", "", "Redis address for Pub/Sub updates")
	pf.StringVar(&cfg.redisChannel, "redis-channel", "", "Redis Pub/Sub channel")
	pf.StringVar(&cfg.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	pf.DurationVar(&cfg.pollInterval, "poll-interval", defaults.PollInterval, "snapshot poll interval")
	pf.StringVar(&cfg.progressRule, "progress-rule", string(defaults.ProgressRule), "progress merge rule")
	pf.StringVar(&cfg.logLevel, "log-level", "info", "log level")
	pf.Float64Var(&cfg.rateLimit, "rate-limit", 0, "max API requests per second (0 = unlimited)")
	pf.BoolVar(&cfg.follow, "follow", false, "keep watching after the job reaches a terminal status")
	pf.BoolVar(&cfg.audit, "audit", false, "log an audit trail of tracking events")

	rootCmd.AddCommand(startCmd, resumeCmd, demoCmd)
}

// loadEnv reads envFile when it exists and fills every flag the user did
// not set from its bound environment variable.
func loadEnv(flags *pflag.FlagSet, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	for name, key := range envBindings {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
