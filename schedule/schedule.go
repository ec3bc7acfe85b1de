// Package schedule defines the cron schedule record attached to workflows
// and its persistence contract.
//
// Schedules are created and edited by the user-facing application. The
// dispatcher only reads them; all bookkeeping writes (last run, last status,
// next run, run counter) come from the executor after each dispatch attempt.
package schedule

import (
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
)

// RunStatus is the outcome of a schedule's most recent dispatch attempt.
type RunStatus string

const (
	// StatusSuccess means the last dispatch was handed to the execution
	// engine successfully.
	StatusSuccess RunStatus = "success"
	// StatusError means the last dispatch failed; LastError carries the
	// reason.
	StatusError RunStatus = "error"
)

// Schedule is a recurring trigger for a workflow.
//
// Invariant: NextRunAt is always the next future cron occurrence computed
// relative to the time of the last update, in the schedule's own timezone.
type Schedule struct {
	relay.Entity

	ID             id.ScheduleID `json:"id"`
	WorkflowID     id.WorkflowID `json:"workflow_id"`
	CronExpression string        `json:"cron_expression"`
	Timezone       string        `json:"timezone,omitempty"`
	Enabled        bool          `json:"enabled"`
	LastRunAt      *time.Time    `json:"last_run_at,omitempty"`
	LastStatus     RunStatus     `json:"last_status,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	NextRunAt      *time.Time    `json:"next_run_at,omitempty"`
	RunCount       int           `json:"run_count"`
}

// RecordSuccess updates the bookkeeping fields after a successful dispatch.
// next may be nil when the expression has no future occurrence.
func (s *Schedule) RecordSuccess(now time.Time, next *time.Time) {
	n := now
	s.LastRunAt = &n
	s.LastStatus = StatusSuccess
	s.LastError = ""
	s.NextRunAt = next
	s.RunCount++
}

// RecordError updates the bookkeeping fields after a failed dispatch.
// The run counter only advances on success.
func (s *Schedule) RecordError(msg string, now time.Time, next *time.Time) {
	n := now
	s.LastRunAt = &n
	s.LastStatus = StatusError
	s.LastError = msg
	s.NextRunAt = next
}
