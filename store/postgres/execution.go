package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/workflow"
)

// CreateExecution persists a new execution record.
func (s *Store) CreateExecution(ctx context.Context, e *workflow.Execution) error {
	now := time.Now().UTC()
	e.Touch(now)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO relay_executions
			(id, workflow_id, user_id, status, input, output, error,
			 started_at, completed_at, duration_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		e.ID, e.WorkflowID, e.UserID, e.Status, e.Input, e.Output, e.Error,
		e.StartedAt, e.CompletedAt, e.Duration.Milliseconds(), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return relay.ErrExecutionAlreadyExists
		}
		return fmt.Errorf("relay/postgres: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID id.ExecutionID) (*workflow.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, user_id, status, input, output,
		       COALESCE(error, ''), started_at, completed_at, duration_ms,
		       created_at, updated_at
		FROM relay_executions WHERE id = $1`,
		executionID,
	)

	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, relay.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("relay/postgres: get execution: %w", err)
	}
	return e, nil
}

// UpdateExecution persists changes to an existing execution.
func (s *Store) UpdateExecution(ctx context.Context, e *workflow.Execution) error {
	e.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE relay_executions
		SET status = $2, input = $3, output = $4, error = NULLIF($5, ''),
		    completed_at = $6, duration_ms = $7, updated_at = $8
		WHERE id = $1`,
		e.ID, e.Status, e.Input, e.Output, e.Error,
		e.CompletedAt, e.Duration.Milliseconds(), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("relay/postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relay.ErrExecutionNotFound
	}
	return nil
}

// ListExecutions returns a workflow's executions, most recent first.
func (s *Store) ListExecutions(ctx context.Context, workflowID id.WorkflowID, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // NULLIF below turns -1 into LIMIT NULL (no limit)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, workflow_id, user_id, status, input, output,
		       COALESCE(error, ''), started_at, completed_at, duration_ms,
		       created_at, updated_at
		FROM relay_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT NULLIF($2, -1) OFFSET $3`,
		workflowID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("relay/postgres: list executions: %w", err)
	}
	defer rows.Close()

	var result []*workflow.Execution
	for rows.Next() {
		e, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("relay/postgres: scan execution: %w", scanErr)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relay/postgres: list executions: %w", err)
	}
	return result, nil
}

func scanExecution(row pgx.Row) (*workflow.Execution, error) {
	var (
		e          workflow.Execution
		durationMS int64
	)
	err := row.Scan(
		&e.ID, &e.WorkflowID, &e.UserID, &e.Status, &e.Input, &e.Output,
		&e.Error, &e.StartedAt, &e.CompletedAt, &durationMS,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}
