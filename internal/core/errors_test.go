package core

import (
	"errors"
	"testing"
)

func TestErrorForReplyCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"NOT_FOUND", ExitNotFound},
		{"INVALID", ExitUsage},
		{"UNAVAILABLE", ExitUnavailable},
		{"INTERNAL", ExitRuntime},
		{"UNKNOWN", ExitRuntime},
	}

	for _, test := range tests {
		err := ErrorForReplyCode(test.code, "message")
		if err.Code != test.expected {
			t.Fatalf("code %s expected %d got %d", test.code, test.expected, err.Code)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitOK {
		t.Fatalf("nil error expected %d got %d", ExitOK, got)
	}
	if got := ExitCode(&CLIError{Code: ExitNotFound, Msg: "missing"}); got != ExitNotFound {
		t.Fatalf("expected %d got %d", ExitNotFound, got)
	}
	if got := ExitCode(errors.New("boom")); got != ExitRuntime {
		t.Fatalf("plain error expected %d got %d", ExitRuntime, got)
	}
}
