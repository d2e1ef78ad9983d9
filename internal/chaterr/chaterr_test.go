package chaterr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(NotFound, "no such chat"), NotFound},
		{"wrapped in fmt", fmt.Errorf("loading: %w", New(Conflict, "duplicate")), Conflict},
		{"unclassified", errors.New("boom"), Internal},
		{"with cause", Wrap(Transient, "deadlock", errors.New("mysql 1213")), Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReasonOf(t *testing.T) {
	if got := ReasonOf(New(PermissionDenied, "not an active member")); got != "not an active member" {
		t.Errorf("ReasonOf() = %q", got)
	}
	// Unclassified errors must not leak their text to clients.
	if got := ReasonOf(errors.New("password hash mismatch at row 3")); got != "internal error" {
		t.Errorf("ReasonOf() leaked %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(Transient, "query", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause chain")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(New(Transient, "lock wait")) {
		t.Error("transient error not detected")
	}
	if IsTransient(New(Conflict, "slow mode")) {
		t.Error("conflict must not be retried")
	}
}
