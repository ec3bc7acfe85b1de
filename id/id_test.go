package id

import (
	"testing"
)

func TestNewAndParse(t *testing.T) {
	wf := NewWorkflowID()
	if wf.IsNil() {
		t.Fatal("NewWorkflowID() returned nil ID")
	}
	if wf.Prefix() != PrefixWorkflow {
		t.Errorf("Prefix() = %q, want %q", wf.Prefix(), PrefixWorkflow)
	}

	parsed, err := Parse(wf.String())
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", wf, err)
	}
	if parsed.String() != wf.String() {
		t.Errorf("round trip: %q != %q", parsed, wf)
	}
}

func TestParseWithPrefix(t *testing.T) {
	sc := NewScheduleID()

	if _, err := ParseScheduleID(sc.String()); err != nil {
		t.Errorf("ParseScheduleID(%q) error = %v", sc, err)
	}
	if _, err := ParseWorkflowID(sc.String()); err == nil {
		t.Errorf("ParseWorkflowID(%q) succeeded, want prefix mismatch", sc)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not an id", "wf_"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := NewExecutionID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestTextMarshaling(t *testing.T) {
	wf := NewWorkflowID()

	data, err := wf.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}

	var back ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if back.String() != wf.String() {
		t.Errorf("round trip: %q != %q", back, wf)
	}

	var zero ID
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) error = %v", err)
	}
	if !zero.IsNil() {
		t.Error("UnmarshalText(nil) produced a non-nil ID")
	}
}

func TestSQLValueScan(t *testing.T) {
	wf := NewWorkflowID()

	v, err := wf.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Value() = %T, want string", v)
	}

	var back ID
	if err := back.Scan(s); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if back.String() != wf.String() {
		t.Errorf("round trip: %q != %q", back, wf)
	}

	var fromNil ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("Scan(nil) produced a non-nil ID")
	}

	nilVal, err := Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value() error = %v", err)
	}
	if nilVal != nil {
		t.Errorf("Nil.Value() = %v, want nil", nilVal)
	}
}
