package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/srodi/proctop/pkg/logging"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "interval: 2\n")
	useDotEnv(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, path, logging.Discard(), func(c Config) { reloaded <- c })
	}()

	// The watcher may not be registered yet, so keep rewriting until it reacts.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			// A reload can race the truncating write and see an empty file.
			if cfg.Interval != 0.5 {
				continue
			}
			cancel()
			if err := <-errCh; err != nil {
				t.Fatalf("watch returned error: %v", err)
			}
			return
		case <-tick.C:
			writeFile(t, path, "interval: 0.5\n")
		case <-deadline:
			t.Fatalf("config change not observed")
		}
	}
}

func TestWatchRequiresPath(t *testing.T) {
	if err := Watch(context.Background(), "", logging.Discard(), func(Config) {}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
