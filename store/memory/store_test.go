package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/schedule"
	"github.com/nimbusflow/relay/workflow"
)

func newWorkflow(enabled bool) *workflow.Workflow {
	return &workflow.Workflow{
		ID:      id.NewWorkflowID(),
		Name:    "wf",
		Enabled: enabled,
		OwnerID: "user-1",
	}
}

func newSchedule(workflowID id.WorkflowID, enabled bool) *schedule.Schedule {
	return &schedule.Schedule{
		ID:             id.NewScheduleID(),
		WorkflowID:     workflowID,
		CronExpression: "* * * * *",
		Enabled:        enabled,
	}
}

func TestWorkflowCRUD(t *testing.T) {
	st := New()
	ctx := context.Background()

	wf := newWorkflow(true)
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	if err := st.CreateWorkflow(ctx, wf); !errors.Is(err, relay.ErrWorkflowAlreadyExists) {
		t.Errorf("duplicate CreateWorkflow() error = %v, want ErrWorkflowAlreadyExists", err)
	}

	got, err := st.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	if got.Name != wf.Name {
		t.Errorf("Name = %q, want %q", got.Name, wf.Name)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	got.Enabled = false
	if err := st.UpdateWorkflow(ctx, got); err != nil {
		t.Fatalf("UpdateWorkflow() error = %v", err)
	}
	got2, err := st.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	if got2.Enabled {
		t.Error("update not persisted")
	}

	if _, err := st.GetWorkflow(ctx, id.NewWorkflowID()); !errors.Is(err, relay.ErrWorkflowNotFound) {
		t.Errorf("GetWorkflow(unknown) error = %v, want ErrWorkflowNotFound", err)
	}
	if err := st.UpdateWorkflow(ctx, newWorkflow(true)); !errors.Is(err, relay.ErrWorkflowNotFound) {
		t.Errorf("UpdateWorkflow(unknown) error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestGetWorkflowReturnsCopy(t *testing.T) {
	st := New()
	ctx := context.Background()

	wf := newWorkflow(true)
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	got, _ := st.GetWorkflow(ctx, wf.ID)
	got.Name = "mutated"

	again, _ := st.GetWorkflow(ctx, wf.ID)
	if again.Name == "mutated" {
		t.Error("store returned a shared pointer, not a copy")
	}
}

func TestScheduleCRUD(t *testing.T) {
	st := New()
	ctx := context.Background()

	wf := newWorkflow(true)
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	sc := newSchedule(wf.ID, true)
	if err := st.CreateSchedule(ctx, sc); err != nil {
		t.Fatalf("CreateSchedule() error = %v", err)
	}
	if err := st.CreateSchedule(ctx, sc); !errors.Is(err, relay.ErrScheduleAlreadyExists) {
		t.Errorf("duplicate CreateSchedule() error = %v, want ErrScheduleAlreadyExists", err)
	}

	got, err := st.GetSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if got.CronExpression != sc.CronExpression {
		t.Errorf("CronExpression = %q", got.CronExpression)
	}

	now := time.Now().UTC()
	next := now.Add(time.Minute)
	got.RecordSuccess(now, &next)
	if err := st.UpdateSchedule(ctx, got); err != nil {
		t.Fatalf("UpdateSchedule() error = %v", err)
	}
	got2, _ := st.GetSchedule(ctx, sc.ID)
	if got2.RunCount != 1 || got2.LastStatus != schedule.StatusSuccess {
		t.Errorf("bookkeeping not persisted: %+v", got2)
	}

	if err := st.DeleteSchedule(ctx, sc.ID); err != nil {
		t.Fatalf("DeleteSchedule() error = %v", err)
	}
	if _, err := st.GetSchedule(ctx, sc.ID); !errors.Is(err, relay.ErrScheduleNotFound) {
		t.Errorf("GetSchedule(deleted) error = %v, want ErrScheduleNotFound", err)
	}
	if err := st.DeleteSchedule(ctx, sc.ID); !errors.Is(err, relay.ErrScheduleNotFound) {
		t.Errorf("DeleteSchedule(deleted) error = %v, want ErrScheduleNotFound", err)
	}
}

func TestListActiveSchedules(t *testing.T) {
	st := New()
	ctx := context.Background()

	enabledWf := newWorkflow(true)
	disabledWf := newWorkflow(false)
	if err := st.CreateWorkflow(ctx, enabledWf); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateWorkflow(ctx, disabledWf); err != nil {
		t.Fatal(err)
	}

	active := newSchedule(enabledWf.ID, true)
	disabledSched := newSchedule(enabledWf.ID, false)
	schedOfDisabledWf := newSchedule(disabledWf.ID, true)
	orphan := newSchedule(id.NewWorkflowID(), true)
	for _, sc := range []*schedule.Schedule{active, disabledSched, schedOfDisabledWf, orphan} {
		if err := st.CreateSchedule(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.ListActiveSchedules(ctx)
	if err != nil {
		t.Fatalf("ListActiveSchedules() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListActiveSchedules() returned %d schedules, want 1", len(got))
	}
	if got[0].ID.String() != active.ID.String() {
		t.Errorf("active schedule = %s, want %s", got[0].ID, active.ID)
	}
}

func TestExecutionCRUDAndList(t *testing.T) {
	st := New()
	ctx := context.Background()

	wf := newWorkflow(true)
	if err := st.CreateWorkflow(ctx, wf); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var ids []id.ExecutionID
	for i := 0; i < 3; i++ {
		e := &workflow.Execution{
			ID:         id.NewExecutionID(),
			WorkflowID: wf.ID,
			UserID:     "user-1",
			Status:     workflow.StatusRunning,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution() error = %v", err)
		}
		ids = append(ids, e.ID)
	}

	got, err := st.GetExecution(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	got.MarkError("engine timeout", base.Add(time.Hour))
	if err := st.UpdateExecution(ctx, got); err != nil {
		t.Fatalf("UpdateExecution() error = %v", err)
	}
	updated, _ := st.GetExecution(ctx, ids[0])
	if updated.Status != workflow.StatusError || updated.Error != "engine timeout" {
		t.Errorf("execution update not persisted: %+v", updated)
	}

	list, err := st.ListExecutions(ctx, wf.ID, workflow.ListOpts{})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListExecutions() returned %d, want 3", len(list))
	}
	// Most recent first.
	if list[0].ID.String() != ids[2].String() {
		t.Errorf("first execution = %s, want most recent %s", list[0].ID, ids[2])
	}

	page, err := st.ListExecutions(ctx, wf.ID, workflow.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(page) != 1 || page[0].ID.String() != ids[1].String() {
		t.Errorf("paged result = %v", page)
	}

	if _, err := st.GetExecution(ctx, id.NewExecutionID()); !errors.Is(err, relay.ErrExecutionNotFound) {
		t.Errorf("GetExecution(unknown) error = %v, want ErrExecutionNotFound", err)
	}
}
