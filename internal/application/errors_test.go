package application

import "testing"

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected HasErrors to report false for nil error")
	}

	if !(&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddKeepsFirstMessage(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	vErr.add("startTime", "startTime is required")
	vErr.add("startTime", "startTime must be HH:mm")

	if got := vErr.FieldErrors["startTime"]; got != "startTime is required" {
		t.Fatalf("expected first message to be kept, got %q", got)
	}
}

func TestConflictError_Error(t *testing.T) {
	t.Parallel()

	var nilErr *ConflictError
	if nilErr.Error() != "" {
		t.Fatalf("expected empty message for nil conflict error")
	}

	err := &ConflictError{Conflicts: []Reservation{{ID: "a"}, {ID: "b"}}}
	if got := err.Error(); got != "time slot conflicts with 2 existing reservation(s)" {
		t.Fatalf("unexpected message %q", got)
	}
}
