//go:build linux

package procfs

import (
	"context"
	"os"
	"testing"

	"github.com/srodi/proctop/pkg/collector"
)

func TestProviderReadsSelf(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("opening procfs: %v", err)
	}
	ctx := context.Background()
	self := int32(os.Getpid())

	pids, err := p.PIDs(ctx)
	if err != nil {
		t.Fatalf("listing pids: %v", err)
	}
	found := false
	for _, pid := range pids {
		if pid == self {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("own pid %d missing from enumeration", self)
	}

	raw, err := p.FetchProcess(ctx, self)
	if err != nil {
		t.Fatalf("reading own process: %v", err)
	}
	if raw.RSSBytes == 0 || raw.Threads == 0 {
		t.Fatalf("expected rss and threads, got %+v", raw)
	}
	if raw.Name == "" || raw.User == "" {
		t.Fatalf("expected name and user, got %+v", raw)
	}
}

func TestProviderMissingPIDVanishes(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("opening procfs: %v", err)
	}
	// pid_max tops out at 2^22 so this pid never exists.
	_, err = p.FetchProcess(context.Background(), 1<<30)
	if got := collector.Classify(err); got != collector.OutcomeVanished {
		t.Fatalf("expected vanished, got %s (%v)", got, err)
	}
}

func TestProviderSystemSample(t *testing.T) {
	p, err := New("")
	if err != nil {
		t.Fatalf("opening procfs: %v", err)
	}
	sys, err := p.FetchSystem(context.Background())
	if err != nil {
		t.Fatalf("reading system: %v", err)
	}
	if len(sys.PerCore) == 0 || sys.MemTotal == 0 {
		t.Fatalf("incomplete system sample: %+v", sys)
	}
	if sys.UptimeSeconds <= 0 {
		t.Fatalf("expected positive uptime, got %f", sys.UptimeSeconds)
	}
}
