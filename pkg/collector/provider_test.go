package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"wrappedVanished", fmt.Errorf("pid 7: %w", ErrProcessVanished), OutcomeVanished},
		{"notExist", &fs.PathError{Op: "open", Path: "/proc/7/stat", Err: syscall.ENOENT}, OutcomeVanished},
		{"esrch", syscall.ESRCH, OutcomeVanished},
		{"wrappedDenied", fmt.Errorf("pid 1: %w", ErrAccessDenied), OutcomeAccessDenied},
		{"permission", &os.PathError{Op: "open", Path: "/proc/1/environ", Err: syscall.EACCES}, OutcomeAccessDenied},
		{"eperm", syscall.EPERM, OutcomeAccessDenied},
		{"deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), OutcomeTimedOut},
		{"other", errors.New("boom"), OutcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}
