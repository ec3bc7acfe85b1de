// The dispatcher binary runs one dispatch pass and exits. It is meant to be
// invoked on a fixed cadence (cron, Kubernetes CronJob, Cloud Scheduler);
// the cadence should match RELAY_DISPATCH_WINDOW.
//
// Exit code 0 means the pass completed with no send errors; 1 means the
// pass could not run or at least one schedule failed to enqueue.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/nimbusflow/relay/config"
	"github.com/nimbusflow/relay/cronmatch"
	"github.com/nimbusflow/relay/dispatcher"
	"github.com/nimbusflow/relay/queue"
	memqueue "github.com/nimbusflow/relay/queue/memory"
	redisqueue "github.com/nimbusflow/relay/queue/redis"
	"github.com/nimbusflow/relay/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.ValidateDispatcher(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to store", slog.String("error", err.Error()))
		return 1
	}
	defer st.Close()

	q, err := openQueue(cfg)
	if err != nil {
		logger.Error("failed to open queue", slog.String("error", err.Error()))
		return 1
	}
	defer q.Close()

	matcher := cronmatch.New(cronmatch.WithWindow(cfg.DispatchWindow))

	opts := []dispatcher.Option{
		dispatcher.WithLogger(logger),
		dispatcher.WithMatcher(matcher),
	}
	if cfg.SendRate > 0 {
		opts = append(opts, dispatcher.WithSendLimit(cfg.SendRate, 1))
	}

	d := dispatcher.New(st, q, opts...)
	stats, err := d.Dispatch(ctx)
	if err != nil {
		logger.Error("dispatch run failed", slog.String("error", err.Error()))
		return 1
	}
	if stats.Errors > 0 {
		return 1
	}
	return 0
}

func openQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.QueueURL == "" {
		return memqueue.New(), nil
	}
	return redisqueue.New(cfg.QueueURL, cfg.QueueName)
}
