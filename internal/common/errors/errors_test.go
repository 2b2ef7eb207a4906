package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeValidation, "bad length: %v", 0)

	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if got, want := err.Error(), "VALIDATION: bad length: 0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodePersistence, cause, "save project")

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got, want := err.Error(), "PERSISTENCE: save project: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsAndGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct", New(ErrCodeNotFound, "x"), ErrCodeNotFound, true},
		{"other code", New(ErrCodeNotFound, "x"), ErrCodeResolution, false},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(ErrCodeResolution, "x")), ErrCodeResolution, true},
		{"plain error", errors.New("x"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := GetCode(errors.New("x")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
	if got := GetCode(Wrap(ErrCodeForbidden, nil, "x")); got != ErrCodeForbidden {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeForbidden)
	}
}
