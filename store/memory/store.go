// Package memory is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/schedule"
	"github.com/nimbusflow/relay/workflow"
)

// Compile-time interface checks.
var (
	_ workflow.Store = (*Store)(nil)
	_ schedule.Store = (*Store)(nil)
)

// Store holds everything in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	workflows  map[string]*workflow.Workflow
	schedules  map[string]*schedule.Schedule
	executions map[string]*workflow.Execution
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		workflows:  make(map[string]*workflow.Workflow),
		schedules:  make(map[string]*schedule.Schedule),
		executions: make(map[string]*workflow.Execution),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow store
// ──────────────────────────────────────────────────

// CreateWorkflow persists a new workflow.
func (m *Store) CreateWorkflow(_ context.Context, w *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := w.ID.String()
	if _, exists := m.workflows[key]; exists {
		return relay.ErrWorkflowAlreadyExists
	}
	w.Touch(time.Now().UTC())
	cp := *w
	m.workflows[key] = &cp
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (m *Store) GetWorkflow(_ context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workflows[workflowID.String()]
	if !ok {
		return nil, relay.ErrWorkflowNotFound
	}
	cp := *w
	return &cp, nil
}

// UpdateWorkflow persists changes to an existing workflow.
func (m *Store) UpdateWorkflow(_ context.Context, w *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := w.ID.String()
	if _, ok := m.workflows[key]; !ok {
		return relay.ErrWorkflowNotFound
	}
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	m.workflows[key] = &cp
	return nil
}

// ──────────────────────────────────────────────────
// Execution store
// ──────────────────────────────────────────────────

// CreateExecution persists a new execution record.
func (m *Store) CreateExecution(_ context.Context, e *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, exists := m.executions[key]; exists {
		return relay.ErrExecutionAlreadyExists
	}
	e.Touch(time.Now().UTC())
	cp := *e
	m.executions[key] = &cp
	return nil
}

// GetExecution retrieves an execution by ID.
func (m *Store) GetExecution(_ context.Context, executionID id.ExecutionID) (*workflow.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[executionID.String()]
	if !ok {
		return nil, relay.ErrExecutionNotFound
	}
	cp := *e
	return &cp, nil
}

// UpdateExecution persists changes to an existing execution.
func (m *Store) UpdateExecution(_ context.Context, e *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, ok := m.executions[key]; !ok {
		return relay.ErrExecutionNotFound
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	m.executions[key] = &cp
	return nil
}

// ListExecutions returns a workflow's executions, most recent first.
func (m *Store) ListExecutions(_ context.Context, workflowID id.WorkflowID, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wfKey := workflowID.String()
	result := make([]*workflow.Execution, 0)
	for _, e := range m.executions {
		if e.WorkflowID.String() != wfKey {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].StartedAt.After(result[k].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Schedule store
// ──────────────────────────────────────────────────

// CreateSchedule persists a new schedule.
func (m *Store) CreateSchedule(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, exists := m.schedules[key]; exists {
		return relay.ErrScheduleAlreadyExists
	}
	s.Touch(time.Now().UTC())
	cp := *s
	m.schedules[key] = &cp
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (m *Store) GetSchedule(_ context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[scheduleID.String()]
	if !ok {
		return nil, relay.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

// ListActiveSchedules returns enabled schedules of enabled workflows.
func (m *Store) ListActiveSchedules(_ context.Context) ([]*schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schedule.Schedule, 0)
	for _, s := range m.schedules {
		if !s.Enabled {
			continue
		}
		w, ok := m.workflows[s.WorkflowID.String()]
		if !ok || !w.Enabled {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// UpdateSchedule persists changes to an existing schedule (last-write-wins).
func (m *Store) UpdateSchedule(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, ok := m.schedules[key]; !ok {
		return relay.ErrScheduleNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	m.schedules[key] = &cp
	return nil
}

// DeleteSchedule removes a schedule by ID.
func (m *Store) DeleteSchedule(_ context.Context, scheduleID id.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scheduleID.String()
	if _, ok := m.schedules[key]; !ok {
		return relay.ErrScheduleNotFound
	}
	delete(m.schedules, key)
	return nil
}
