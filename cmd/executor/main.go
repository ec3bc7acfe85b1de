// The executor binary is the long-running consumer of the trigger queue.
// It runs until SIGINT or SIGTERM, finishing any in-flight batch before
// exiting.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimbusflow/relay/backoff"
	"github.com/nimbusflow/relay/config"
	"github.com/nimbusflow/relay/cronmatch"
	"github.com/nimbusflow/relay/execapi"
	"github.com/nimbusflow/relay/executor"
	"github.com/nimbusflow/relay/middleware"
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

	if err := cfg.ValidateExecutor(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to store", slog.String("error", err.Error()))
		return 1
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		return 1
	}

	q, err := openQueue(cfg)
	if err != nil {
		logger.Error("failed to open queue", slog.String("error", err.Error()))
		return 1
	}
	defer q.Close()

	api := execapi.New(cfg.ExecutionAPIURL, cfg.ServiceKey)

	exec := executor.New(st, q, api,
		executor.WithLogger(logger),
		executor.WithMatcher(cronmatch.New(cronmatch.WithWindow(cfg.DispatchWindow))),
		executor.WithBackoff(backoff.NewConstant(cfg.ReceiveBackoff)),
		executor.WithReceiveOptions(queue.ReceiveOptions{
			MaxMessages:       cfg.MaxMessages,
			WaitTime:          cfg.WaitTime,
			VisibilityTimeout: cfg.VisibilityTimeout,
		}),
		executor.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Metrics(),
		),
	)

	if err := exec.Run(ctx); err != nil {
		logger.Error("executor exited with error", slog.String("error", err.Error()))
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
