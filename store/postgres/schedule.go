package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/schedule"
)

// CreateSchedule persists a new schedule.
func (s *Store) CreateSchedule(ctx context.Context, sc *schedule.Schedule) error {
	now := time.Now().UTC()
	sc.Touch(now)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO relay_schedules
			(id, workflow_id, cron_expression, timezone, enabled,
			 last_run_at, last_status, last_error, next_run_at, run_count,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12)`,
		sc.ID, sc.WorkflowID, sc.CronExpression, sc.Timezone, sc.Enabled,
		sc.LastRunAt, string(sc.LastStatus), sc.LastError, sc.NextRunAt, sc.RunCount,
		sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return relay.ErrScheduleAlreadyExists
		}
		return fmt.Errorf("relay/postgres: create schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, cron_expression, timezone, enabled,
		       last_run_at, COALESCE(last_status, ''), COALESCE(last_error, ''),
		       next_run_at, run_count, created_at, updated_at
		FROM relay_schedules WHERE id = $1`,
		scheduleID,
	)

	sc, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, relay.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("relay/postgres: get schedule: %w", err)
	}
	return sc, nil
}

// ListActiveSchedules returns enabled schedules of enabled workflows. The
// join enforces that a workflow disabled independently of its schedule
// suppresses dispatch.
func (s *Store) ListActiveSchedules(ctx context.Context) ([]*schedule.Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sc.id, sc.workflow_id, sc.cron_expression, sc.timezone, sc.enabled,
		       sc.last_run_at, COALESCE(sc.last_status, ''), COALESCE(sc.last_error, ''),
		       sc.next_run_at, sc.run_count, sc.created_at, sc.updated_at
		FROM relay_schedules sc
		JOIN relay_workflows w ON w.id = sc.workflow_id
		WHERE sc.enabled AND w.enabled
		ORDER BY sc.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("relay/postgres: list active schedules: %w", err)
	}
	defer rows.Close()

	var result []*schedule.Schedule
	for rows.Next() {
		sc, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("relay/postgres: scan schedule: %w", scanErr)
		}
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relay/postgres: list active schedules: %w", err)
	}
	return result, nil
}

// UpdateSchedule persists changes to an existing schedule (last-write-wins).
func (s *Store) UpdateSchedule(ctx context.Context, sc *schedule.Schedule) error {
	sc.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE relay_schedules
		SET cron_expression = $2, timezone = $3, enabled = $4,
		    last_run_at = $5, last_status = NULLIF($6, ''), last_error = NULLIF($7, ''),
		    next_run_at = $8, run_count = $9, updated_at = $10
		WHERE id = $1`,
		sc.ID, sc.CronExpression, sc.Timezone, sc.Enabled,
		sc.LastRunAt, string(sc.LastStatus), sc.LastError,
		sc.NextRunAt, sc.RunCount, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("relay/postgres: update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relay.ErrScheduleNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule by ID.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM relay_schedules WHERE id = $1`, scheduleID)
	if err != nil {
		return fmt.Errorf("relay/postgres: delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relay.ErrScheduleNotFound
	}
	return nil
}

func scanSchedule(row pgx.Row) (*schedule.Schedule, error) {
	var (
		sc         schedule.Schedule
		lastStatus string
	)
	err := row.Scan(
		&sc.ID, &sc.WorkflowID, &sc.CronExpression, &sc.Timezone, &sc.Enabled,
		&sc.LastRunAt, &lastStatus, &sc.LastError,
		&sc.NextRunAt, &sc.RunCount, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sc.LastStatus = schedule.RunStatus(lastStatus)
	return &sc, nil
}
