package execapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExecuteSuccess(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotReq ExecuteRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Service-Key")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key")
	req := ExecuteRequest{
		ExecutionID: "exec_01h2xcejqtf2nbrexx3vqjhp41",
		Input: ExecuteInput{
			TriggerType: "schedule",
			ScheduleID:  "sched_01h2xcejqtf2nbrexx3vqjhp41",
			TriggerTime: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	if err := c.Execute(context.Background(), "wf_01h2xcejqtf2nbrexx3vqjhp41", req); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if gotPath != "/api/workflow/wf_01h2xcejqtf2nbrexx3vqjhp41/execute" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret-key" {
		t.Errorf("service key header = %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotReq.ExecutionID != req.ExecutionID {
		t.Errorf("execution id = %q, want %q", gotReq.ExecutionID, req.ExecutionID)
	}
	if gotReq.Input.ScheduleID != req.Input.ScheduleID {
		t.Errorf("schedule id = %q, want %q", gotReq.Input.ScheduleID, req.Input.ScheduleID)
	}
}

func TestExecuteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "engine overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	err := c.Execute(context.Background(), "wf_x", ExecuteRequest{})
	if err == nil {
		t.Fatal("Execute() = nil, want error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Execute() error = %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}
	if statusErr.Error() != "execution API returned status 500" {
		t.Errorf("Error() = %q", statusErr.Error())
	}
}

func TestExecuteConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused

	c := New(srv.URL, "key")
	err := c.Execute(context.Background(), "wf_x", ExecuteRequest{})
	if err == nil {
		t.Fatal("Execute() = nil, want error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("connection error surfaced as *StatusError")
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise r.Context() is never
		// cancelled and srv.Close() hangs.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "key")
	err := c.Execute(ctx, "wf_x", ExecuteRequest{})
	if err == nil {
		t.Fatal("Execute() = nil, want error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded", err)
	}
}
