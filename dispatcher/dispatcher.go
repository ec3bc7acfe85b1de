// Package dispatcher implements the one-shot dispatch run: evaluate every
// active schedule against a single shared now snapshot and emit one queue
// message per fired schedule.
//
// The dispatcher is stateless by design. It never writes to the schedule
// store — all bookkeeping is deferred to the executor — so running it twice
// for the same minute is safe (it may emit duplicate messages, which
// downstream consumers must tolerate under the at-least-once contract).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nimbusflow/relay/cronmatch"
	"github.com/nimbusflow/relay/queue"
	"github.com/nimbusflow/relay/schedule"
	"github.com/nimbusflow/relay/trigger"
)

// Stats summarizes one dispatch run for observability.
type Stats struct {
	// Evaluated is how many active schedules were checked.
	Evaluated int
	// Triggered is how many messages were emitted.
	Triggered int
	// Errors counts per-schedule send failures. Firing zero schedules is a
	// normal outcome; a non-zero error count is what makes the run fail.
	Errors int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMatcher replaces the cron matcher (for a non-default window).
func WithMatcher(m *cronmatch.Matcher) Option {
	return func(d *Dispatcher) { d.matcher = m }
}

// WithSendLimit paces queue sends at n per second with the given burst.
// Zero n disables pacing.
func WithSendLimit(n float64, burst int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			if burst <= 0 {
				burst = 1
			}
			d.limiter = rate.NewLimiter(rate.Limit(n), burst)
		}
	}
}

// WithClock replaces the time source. Useful for window tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher evaluates schedules and emits trigger messages.
type Dispatcher struct {
	schedules schedule.Store
	queue     queue.Queue
	matcher   *cronmatch.Matcher
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Dispatcher.
func New(schedules schedule.Store, q queue.Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		schedules: schedules,
		queue:     q,
		matcher:   cronmatch.New(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one evaluation pass. It returns an error only when the
// schedule store itself is unreachable; per-schedule failures are isolated,
// counted in Stats.Errors, and never block evaluation of the rest.
func (d *Dispatcher) Dispatch(ctx context.Context) (Stats, error) {
	var stats Stats

	active, err := d.schedules.ListActiveSchedules(ctx)
	if err != nil {
		return stats, fmt.Errorf("dispatcher: list active schedules: %w", err)
	}

	// One shared snapshot keeps the evaluation window consistent across the
	// whole batch.
	now := d.now().UTC()

	for _, sc := range active {
		stats.Evaluated++

		fired, matchErr := d.matcher.ShouldTrigger(sc.CronExpression, sc.Timezone, now)
		if matchErr != nil {
			// Malformed expression or timezone: can only be fixed by the
			// user editing the schedule, so it is logged, not counted as a
			// run error.
			d.logger.Warn("schedule has invalid cron expression",
				slog.String("schedule_id", sc.ID.String()),
				slog.String("workflow_id", sc.WorkflowID.String()),
				slog.String("cron", sc.CronExpression),
				slog.String("error", matchErr.Error()),
			)
			continue
		}
		if !fired {
			continue
		}

		if sendErr := d.send(ctx, sc, now); sendErr != nil {
			stats.Errors++
			d.logger.Error("failed to send trigger message",
				slog.String("schedule_id", sc.ID.String()),
				slog.String("workflow_id", sc.WorkflowID.String()),
				slog.String("error", sendErr.Error()),
			)
			continue
		}

		stats.Triggered++
		d.logger.Info("schedule fired",
			slog.String("schedule_id", sc.ID.String()),
			slog.String("workflow_id", sc.WorkflowID.String()),
			slog.Time("trigger_time", now),
		)
	}

	d.logger.Info("dispatch run complete",
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("triggered", stats.Triggered),
		slog.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (d *Dispatcher) send(ctx context.Context, sc *schedule.Schedule, now time.Time) error {
	msg := trigger.NewScheduleMessage(sc.WorkflowID.String(), sc.ID.String(), now)
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	return d.queue.Send(ctx, body, msg.Attributes())
}
