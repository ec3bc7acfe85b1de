// Package executor implements the long-running consumer side of Relay: it
// long-polls the queue in batches, re-validates each trigger message
// against current workflow and schedule state, creates the execution
// record, invokes the workflow execution API, and updates schedule
// bookkeeping.
//
// A message is acknowledged (deleted) only on a handled outcome: success,
// soft skip, or malformed input. Any failure between execution creation and
// the API call leaves the message on the queue, so the visibility timeout
// doubles as the retry schedule. Replays are safe but not deduplicated —
// redelivery can create a second execution row for the same tick.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/backoff"
	"github.com/nimbusflow/relay/cronmatch"
	"github.com/nimbusflow/relay/execapi"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/middleware"
	"github.com/nimbusflow/relay/queue"
	"github.com/nimbusflow/relay/schedule"
	"github.com/nimbusflow/relay/store"
	"github.com/nimbusflow/relay/trigger"
	"github.com/nimbusflow/relay/workflow"
)

// Invoker is the execution API surface the executor needs. *execapi.Client
// satisfies it; tests substitute fakes.
type Invoker interface {
	Execute(ctx context.Context, workflowID string, req execapi.ExecuteRequest) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMatcher replaces the cron matcher used to recompute NextRunAt.
func WithMatcher(m *cronmatch.Matcher) Option {
	return func(e *Executor) { e.matcher = m }
}

// WithBackoff replaces the receive-failure backoff strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Executor) { e.backoff = b }
}

// WithReceiveOptions sets the batch size, long-poll wait and visibility
// timeout used on every Receive call.
func WithReceiveOptions(opts queue.ReceiveOptions) Option {
	return func(e *Executor) { e.recvOpts = opts }
}

// WithMiddleware sets the per-message middleware chain.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithClock replaces the time source. Useful for bookkeeping tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor drains the trigger queue.
type Executor struct {
	store   store.Store
	queue   queue.Queue
	api     Invoker
	matcher *cronmatch.Matcher
	backoff backoff.Strategy
	mw      middleware.Middleware
	logger  *slog.Logger

	recvOpts queue.ReceiveOptions
	now      func() time.Time
}

// New creates an Executor.
func New(st store.Store, q queue.Queue, api Invoker, opts ...Option) *Executor {
	e := &Executor{
		store:    st,
		queue:    q,
		api:      api,
		matcher:  cronmatch.New(),
		backoff:  backoff.DefaultStrategy(),
		logger:   slog.Default(),
		recvOpts: queue.ReceiveOptions{}.Normalize(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mw == nil {
		e.mw = middleware.Chain(middleware.Recover(e.logger))
	}
	return e
}

// Run drives the receive/process loop until ctx is cancelled. A receive
// failure backs off and retries; it never terminates the loop. Returns nil
// on graceful shutdown.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started",
		slog.Int("max_messages", e.recvOpts.Normalize().MaxMessages),
		slog.Duration("wait_time", e.recvOpts.Normalize().WaitTime),
		slog.Duration("visibility_timeout", e.recvOpts.Normalize().VisibilityTimeout),
	)

	attempt := 0
	for {
		if ctx.Err() != nil {
			e.logger.Info("executor stopping")
			return nil
		}

		_, err := e.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.logger.Info("executor stopping")
				return nil
			}
			attempt++
			delay := e.backoff.Delay(attempt)
			e.logger.Error("receive failed, backing off",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				e.logger.Info("executor stopping")
				return nil
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
	}
}

// ProcessBatch receives one batch and processes its messages concurrently
// with all-settled semantics: a failure in one message never cancels or
// blocks the others. It returns the number of messages received. The error
// return covers the receive call only — processing failures stay on the
// queue for redelivery.
func (e *Executor) ProcessBatch(ctx context.Context) (int, error) {
	msgs, err := e.queue.Receive(ctx, e.recvOpts)
	if err != nil {
		return 0, fmt.Errorf("executor: receive batch: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	// Message handling survives shutdown of the poll loop: once a batch is
	// leased it is processed to completion.
	detached := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, m := range msgs {
		wg.Add(1)
		go func(m *queue.Message) {
			defer wg.Done()
			e.processMessage(detached, m)
		}(m)
	}
	wg.Wait()

	return len(msgs), nil
}

// processMessage runs one message through the middleware chain and
// acknowledges it on a handled outcome. On error the message is left in
// flight and becomes visible again when its lease expires.
func (e *Executor) processMessage(ctx context.Context, m *queue.Message) {
	err := e.mw(ctx, m, func(ctx context.Context) error {
		return e.handle(ctx, m)
	})
	if err != nil {
		return
	}

	if delErr := e.queue.Delete(ctx, m.ReceiptHandle); delErr != nil {
		e.logger.Error("failed to acknowledge message",
			slog.String("message_id", m.ID),
			slog.String("error", delErr.Error()),
		)
	}
}

// handle implements the per-message protocol. A nil return means handled
// (acknowledge); an error means retry via lease expiry.
func (e *Executor) handle(ctx context.Context, m *queue.Message) error {
	msg, err := trigger.Decode(m.Body)
	if err != nil {
		// Malformed bodies can never succeed; drop instead of retrying.
		e.logger.Warn("dropping malformed message",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	workflowID, err := id.ParseWorkflowID(msg.WorkflowID)
	if err != nil {
		e.logger.Warn("dropping message with invalid workflow id",
			slog.String("message_id", m.ID),
			slog.String("workflow_id", msg.WorkflowID),
		)
		return nil
	}
	scheduleID, err := id.ParseScheduleID(msg.ScheduleID)
	if err != nil {
		e.logger.Warn("dropping message with invalid schedule id",
			slog.String("message_id", m.ID),
			slog.String("schedule_id", msg.ScheduleID),
		)
		return nil
	}

	// Re-validate against current state: the message may be arbitrarily
	// stale relative to user edits.
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		if errors.Is(err, relay.ErrWorkflowNotFound) {
			e.markScheduleError(ctx, scheduleID, "workflow not found")
			return nil
		}
		return fmt.Errorf("executor: get workflow: %w", err)
	}
	if !wf.Enabled {
		// Expected race against user edits, not a failure.
		e.logger.Info("skipping trigger for disabled workflow",
			slog.String("workflow_id", workflowID.String()),
			slog.String("schedule_id", scheduleID.String()),
		)
		return nil
	}

	sc, err := e.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, relay.ErrScheduleNotFound) {
			e.logger.Info("skipping trigger for deleted schedule",
				slog.String("schedule_id", scheduleID.String()),
			)
			return nil
		}
		return fmt.Errorf("executor: get schedule: %w", err)
	}
	if !sc.Enabled {
		e.logger.Info("skipping trigger for disabled schedule",
			slog.String("schedule_id", scheduleID.String()),
		)
		return nil
	}

	return e.dispatch(ctx, wf, sc, msg)
}

// dispatch creates the execution record and hands it to the execution API,
// then writes schedule bookkeeping for either outcome.
func (e *Executor) dispatch(ctx context.Context, wf *workflow.Workflow, sc *schedule.Schedule, msg *trigger.ScheduleMessage) error {
	now := e.now().UTC()

	input := execapi.ExecuteInput{
		TriggerType: msg.TriggerType,
		ScheduleID:  msg.ScheduleID,
		TriggerTime: msg.TriggerTime,
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("executor: marshal execution input: %w", err)
	}

	exec := &workflow.Execution{
		ID:         id.NewExecutionID(),
		WorkflowID: wf.ID,
		UserID:     wf.OwnerID,
		Status:     workflow.StatusRunning,
		Input:      inputJSON,
		StartedAt:  now,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return e.recordFailure(ctx, sc, nil, now, fmt.Errorf("create execution: %w", err))
	}

	req := execapi.ExecuteRequest{
		ExecutionID: exec.ID.String(),
		Input:       input,
	}
	if err := e.api.Execute(ctx, wf.ID.String(), req); err != nil {
		return e.recordFailure(ctx, sc, exec, now, err)
	}

	// Success: the engine now owns the execution's terminal state. Advance
	// the schedule from "now", not the trigger time, so a delayed dispatch
	// never schedules a recurrence of the tick just processed.
	sc.RecordSuccess(now, e.nextRun(sc, now))
	if err := e.store.UpdateSchedule(ctx, sc); err != nil {
		// Bookkeeping lost; let redelivery repeat the run. A duplicate
		// execution is the accepted cost of at-least-once delivery.
		return fmt.Errorf("executor: update schedule after dispatch: %w", err)
	}

	e.logger.Info("workflow dispatched",
		slog.String("workflow_id", wf.ID.String()),
		slog.String("schedule_id", sc.ID.String()),
		slog.String("execution_id", exec.ID.String()),
		slog.Int("run_count", sc.RunCount),
	)
	return nil
}

// recordFailure writes the error to the execution (when one was created)
// and the schedule, then returns the cause so the message is retried.
func (e *Executor) recordFailure(ctx context.Context, sc *schedule.Schedule, exec *workflow.Execution, now time.Time, cause error) error {
	msg := cause.Error()

	if exec != nil {
		exec.MarkError(msg, e.now().UTC())
		if err := e.store.UpdateExecution(ctx, exec); err != nil {
			e.logger.Error("failed to mark execution error",
				slog.String("execution_id", exec.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	sc.RecordError(msg, now, e.nextRun(sc, now))
	if err := e.store.UpdateSchedule(ctx, sc); err != nil {
		e.logger.Error("failed to mark schedule error",
			slog.String("schedule_id", sc.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return cause
}

// markScheduleError is the workflow-not-found path: the message can never
// succeed, so the schedule is marked and the message acknowledged.
func (e *Executor) markScheduleError(ctx context.Context, scheduleID id.ScheduleID, reason string) {
	sc, err := e.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		e.logger.Warn("cannot mark schedule error",
			slog.String("schedule_id", scheduleID.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}

	now := e.now().UTC()
	sc.RecordError(reason, now, e.nextRun(sc, now))
	if err := e.store.UpdateSchedule(ctx, sc); err != nil {
		e.logger.Error("failed to mark schedule error",
			slog.String("schedule_id", scheduleID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// nextRun recomputes NextRunAt from now in the schedule's timezone.
// A malformed expression yields nil; the invariant is best-effort for
// schedules the user has broken.
func (e *Executor) nextRun(sc *schedule.Schedule, now time.Time) *time.Time {
	next, err := e.matcher.NextOccurrence(sc.CronExpression, sc.Timezone, now)
	if err != nil {
		e.logger.Warn("cannot compute next run",
			slog.String("schedule_id", sc.ID.String()),
			slog.String("cron", sc.CronExpression),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return next
}
