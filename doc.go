// Package relay is the scheduling and dispatch layer of the Nimbus
// workflow-automation platform. It turns declarative cron schedules attached
// to user workflows into reliably-delivered execution requests, decoupled
// from the workflow execution engine.
//
// Relay is two cooperating processes and the message contract between them:
//
//   - The Dispatcher (package dispatcher, cmd/dispatcher) runs once per
//     invocation on an external cadence. It reads the enabled schedules of
//     enabled workflows, evaluates each cron expression against a single
//     shared "now" snapshot, and emits one queue message per fired schedule.
//     It never writes schedule state, which keeps it safely re-runnable.
//
//   - The Executor (package executor, cmd/executor) is a long-running
//     consumer. It long-polls the queue in batches, re-validates every
//     message against current workflow and schedule state, creates an
//     execution record, invokes the workflow execution API, updates schedule
//     bookkeeping, and acknowledges the message only on a handled outcome.
//
// Delivery is at-least-once: a message whose processing fails stays on the
// queue and becomes visible again when its lease expires. There is no
// deduplication key, so a double-fired tick or an expired lease can produce
// two execution records for one logical occurrence; downstream consumers
// must tolerate that.
//
// Persistence and transport are pluggable behind store.Store and
// queue.Queue. The repo ships Postgres and in-memory stores, and Redis and
// in-memory queues.
package relay
