package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/workflow"
)

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	now := time.Now().UTC()
	w.Touch(now)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO relay_workflows (id, name, enabled, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.Name, w.Enabled, w.OwnerID, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return relay.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("relay/postgres: create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, enabled, owner_id, created_at, updated_at
		FROM relay_workflows WHERE id = $1`,
		workflowID,
	)

	var w workflow.Workflow
	err := row.Scan(&w.ID, &w.Name, &w.Enabled, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, relay.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("relay/postgres: get workflow: %w", err)
	}
	return &w, nil
}

// UpdateWorkflow persists changes to an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	w.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE relay_workflows
		SET name = $2, enabled = $3, owner_id = $4, updated_at = $5
		WHERE id = $1`,
		w.ID, w.Name, w.Enabled, w.OwnerID, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("relay/postgres: update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return relay.ErrWorkflowNotFound
	}
	return nil
}
