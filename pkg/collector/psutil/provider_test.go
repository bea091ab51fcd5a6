package psutil

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/proctop/pkg/collector"
)

func TestWrapClassifiesErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected collector.Outcome
	}{
		{"notRunning", process.ErrorProcessNotRunning, collector.OutcomeVanished},
		{"enoent", &os.PathError{Op: "open", Path: "/proc/9/stat", Err: syscall.ENOENT}, collector.OutcomeVanished},
		{"eacces", &os.PathError{Op: "open", Path: "/proc/9/io", Err: syscall.EACCES}, collector.OutcomeAccessDenied},
		{"other", errors.New("parse failure"), collector.OutcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := collector.Classify(wrap(9, tc.err)); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestFetchProcessSelf(t *testing.T) {
	p := New()
	ctx := context.Background()
	pid := int32(os.Getpid())

	raw, err := p.FetchProcess(ctx, pid)
	if err != nil {
		t.Fatalf("reading own process: %v", err)
	}
	if raw.PID != pid {
		t.Fatalf("expected pid %d, got %d", pid, raw.PID)
	}
	if raw.RSSBytes == 0 {
		t.Fatalf("expected non-zero RSS for running test binary")
	}
	if raw.Timestamp.IsZero() {
		t.Fatalf("sample timestamp not set")
	}
	if raw.Cmdline == "" {
		t.Fatalf("expected command line or name fallback")
	}
}

func TestFetchSystem(t *testing.T) {
	sys, err := New().FetchSystem(context.Background())
	if err != nil {
		t.Fatalf("reading system sample: %v", err)
	}
	if len(sys.PerCore) == 0 {
		t.Fatalf("expected at least one core")
	}
	if sys.MemTotal == 0 {
		t.Fatalf("expected memory total")
	}
}
