package schedule

import (
	"context"

	"github.com/nimbusflow/relay/id"
)

// Store defines the persistence contract for schedules.
type Store interface {
	// CreateSchedule persists a new schedule.
	CreateSchedule(ctx context.Context, s *Schedule) error

	// GetSchedule retrieves a schedule by ID.
	GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*Schedule, error)

	// ListActiveSchedules returns every enabled schedule whose workflow is
	// also enabled. A workflow disabled independently of its schedule must
	// suppress dispatch, so the join happens here rather than in the
	// dispatcher.
	ListActiveSchedules(ctx context.Context) ([]*Schedule, error)

	// UpdateSchedule persists changes to an existing schedule. Updates are
	// last-write-wins; the queue's lease mechanism is the only concurrency
	// control.
	UpdateSchedule(ctx context.Context, s *Schedule) error

	// DeleteSchedule removes a schedule by ID.
	DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error
}
