package cronmatch

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestShouldTriggerWindow(t *testing.T) {
	m := New()

	tests := []struct {
		name     string
		expr     string
		timezone string
		now      string
		want     bool
	}{
		{
			name: "exactly on the tick",
			expr: "0 * * * *",
			now:  "2024-01-01T10:00:00Z",
			want: true,
		},
		{
			name: "just inside the window",
			expr: "0 * * * *",
			now:  "2024-01-01T10:00:59Z",
			want: true,
		},
		{
			name: "at the window boundary",
			expr: "0 * * * *",
			now:  "2024-01-01T10:01:00Z",
			want: false,
		},
		{
			name: "just before the tick",
			expr: "0 * * * *",
			now:  "2024-01-01T09:59:59Z",
			want: false,
		},
		{
			name: "every minute always fires",
			expr: "* * * * *",
			now:  "2024-01-01T10:37:42Z",
			want: true,
		},
		{
			name: "descriptor",
			expr: "@hourly",
			now:  "2024-01-01T10:00:30Z",
			want: true,
		},
		{
			name:     "timezone shifts the tick",
			expr:     "0 9 * * *",
			timezone: "America/New_York",
			// 09:00 in New York is 14:00 UTC in January.
			now:  "2024-01-15T14:00:30Z",
			want: true,
		},
		{
			name:     "timezone non-match",
			expr:     "0 9 * * *",
			timezone: "America/New_York",
			now:      "2024-01-15T09:00:30Z",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ShouldTrigger(tt.expr, tt.timezone, mustTime(t, tt.now))
			if err != nil {
				t.Fatalf("ShouldTrigger() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldTrigger(%q, %q, %s) = %v, want %v", tt.expr, tt.timezone, tt.now, got, tt.want)
			}
		})
	}
}

func TestShouldTriggerCustomWindow(t *testing.T) {
	m := New(WithWindow(5 * time.Minute))

	now := mustTime(t, "2024-01-01T10:04:00Z")
	fired, err := m.ShouldTrigger("0 * * * *", "", now)
	if err != nil {
		t.Fatalf("ShouldTrigger() error = %v", err)
	}
	if !fired {
		t.Error("expected 10:00 tick to fire within a 5m window at 10:04")
	}

	now = mustTime(t, "2024-01-01T10:05:00Z")
	fired, err = m.ShouldTrigger("0 * * * *", "", now)
	if err != nil {
		t.Fatalf("ShouldTrigger() error = %v", err)
	}
	if fired {
		t.Error("expected 10:00 tick to be outside the 5m window at 10:05")
	}
}

func TestShouldTriggerMalformed(t *testing.T) {
	m := New()
	now := mustTime(t, "2024-01-01T10:00:00Z")

	if _, err := m.ShouldTrigger("not a cron", "", now); err == nil {
		t.Error("expected error for malformed expression")
	}
	if _, err := m.ShouldTrigger("* * * * * *", "", now); err == nil {
		t.Error("expected error for six-field expression")
	}
	if _, err := m.ShouldTrigger("0 * * * *", "Not/AZone", now); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestNextOccurrence(t *testing.T) {
	m := New()

	from := mustTime(t, "2024-01-01T10:15:00Z")
	next, err := m.NextOccurrence("0 * * * *", "", from)
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	if next == nil {
		t.Fatal("NextOccurrence() = nil, want a time")
	}
	want := mustTime(t, "2024-01-01T11:00:00Z")
	if !next.Equal(want) {
		t.Errorf("NextOccurrence() = %s, want %s", next, want)
	}
	if next.Location() != time.UTC {
		t.Errorf("NextOccurrence() location = %v, want UTC", next.Location())
	}
}

func TestNextOccurrenceStrictlyAfter(t *testing.T) {
	m := New()

	// From a time exactly on a tick, the next occurrence is the following
	// tick, not the current one.
	from := mustTime(t, "2024-01-01T10:00:00Z")
	next, err := m.NextOccurrence("0 * * * *", "", from)
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	want := mustTime(t, "2024-01-01T11:00:00Z")
	if next == nil || !next.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %s", next, want)
	}
}

func TestNextOccurrenceTimezone(t *testing.T) {
	m := New()

	// 09:00 in New York on Jan 16 is 14:00 UTC.
	from := mustTime(t, "2024-01-15T20:00:00Z")
	next, err := m.NextOccurrence("0 9 * * *", "America/New_York", from)
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	want := mustTime(t, "2024-01-16T14:00:00Z")
	if next == nil || !next.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %s", next, want)
	}
}

func TestNextOccurrenceMalformed(t *testing.T) {
	m := New()
	if _, err := m.NextOccurrence("bogus", "", time.Now()); err == nil {
		t.Error("expected error for malformed expression")
	}
}

func TestParseCacheConcurrent(t *testing.T) {
	m := New()
	now := mustTime(t, "2024-01-01T10:00:00Z")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if _, err := m.ShouldTrigger("*/5 * * * *", "", now); err != nil {
					t.Errorf("ShouldTrigger() error = %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
