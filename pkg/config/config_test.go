package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/srodi/proctop/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func useDotEnv(t *testing.T, path string) {
	t.Helper()
	orig := dotEnvPath
	t.Cleanup(func() { dotEnvPath = orig })
	dotEnvPath = path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Interval != 2.0 || cfg.HistoryLength != types.DefaultHistoryLength {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Sort != "cpu" || cfg.Provider != ProviderGopsutil || cfg.DispatchCapacity != 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ReadTimeoutDuration() != 250*time.Millisecond || cfg.IntervalDuration() != 2*time.Second {
		t.Fatalf("unexpected durations %s %s", cfg.ReadTimeoutDuration(), cfg.IntervalDuration())
	}
	if cfg.Workers != runtime.NumCPU() || cfg.LogLevel != "info" || cfg.MemoryBudgetMB != 64 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		in    Config
		check func(t *testing.T, c Config)
	}{
		{"intervalFloor", Config{Interval: 0.01}, func(t *testing.T, c Config) {
			if c.Interval != 0.1 {
				t.Fatalf("expected 0.1 floor, got %v", c.Interval)
			}
		}},
		{"capacityClamped", Config{DispatchCapacity: 9}, func(t *testing.T, c Config) {
			if c.DispatchCapacity != 2 {
				t.Fatalf("expected capacity 2, got %d", c.DispatchCapacity)
			}
		}},
		{"unknownSort", Config{Sort: "bogus"}, func(t *testing.T, c Config) {
			if c.Sort != "cpu" {
				t.Fatalf("expected cpu, got %q", c.Sort)
			}
		}},
		{"sortAlias", Config{Sort: "Memory"}, func(t *testing.T, c Config) {
			if c.Sort != "mem" || c.SortKey() != types.SortByMem {
				t.Fatalf("expected mem, got %q", c.Sort)
			}
		}},
		{"providerCase", Config{Provider: " ProcFS "}, func(t *testing.T, c Config) {
			if c.Provider != ProviderProcfs {
				t.Fatalf("expected procfs, got %q", c.Provider)
			}
		}},
		{"unknownProvider", Config{Provider: "wmi"}, func(t *testing.T, c Config) {
			if c.Provider != ProviderGopsutil {
				t.Fatalf("expected gopsutil, got %q", c.Provider)
			}
		}},
		{"historyBoundedByBudget", Config{HistoryLength: 1 << 30, MemoryBudgetMB: 1}, func(t *testing.T, c Config) {
			if c.HistoryLength != historyCeiling(1, runtime.NumCPU()) {
				t.Fatalf("history not capped: %d", c.HistoryLength)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, Normalize(tc.in))
		})
	}
}

func TestHistoryCeiling(t *testing.T) {
	if got := historyCeiling(1, 4); got != 8192 {
		t.Fatalf("expected 8192 readings, got %d", got)
	}
	if got := historyCeiling(0, 4); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestLoadLayersSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "interval: 5\nsort: pid\nfilter: nginx\nhistory_length: 30\nprovider: procfs\n")
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "PROCTOP_SORT=user\nPROCTOP_HISTORY_LENGTH=40\nPROCTOP_LOG_LEVEL=debug\n")
	useDotEnv(t, envFile)
	t.Setenv("PROCTOP_HISTORY_LENGTH", "45")
	t.Setenv("PROCTOP_METRICS_ADDR", ":9101")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 5 || cfg.Filter != "nginx" || cfg.Provider != ProviderProcfs {
		t.Fatalf("yaml values lost: %+v", cfg)
	}
	if cfg.Sort != "user" || cfg.LogLevel != "debug" {
		t.Fatalf(".env should override yaml: %+v", cfg)
	}
	if cfg.HistoryLength != 45 || cfg.MetricsAddr != ":9101" {
		t.Fatalf("environment should override .env: %+v", cfg)
	}
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	useDotEnv(t, filepath.Join(dir, "absent.env"))
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("missing files should not fail: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	useDotEnv(t, "")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "interval: [not a number\n")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected yaml parse error")
	}

	t.Setenv("PROCTOP_INTERVAL", "fast")
	t.Setenv("PROCTOP_WORKERS", "many")
	cfg, err := Load("")
	if err == nil {
		t.Fatalf("expected env parse error")
	}
	if cfg.Interval != 2.0 || cfg.Workers != runtime.NumCPU() {
		t.Fatalf("malformed env values should leave defaults, got %+v", cfg)
	}
}

func TestApplyEnvOnlyTouchesPresentKeys(t *testing.T) {
	base := Config{Filter: "keep", Interval: 3}
	env := map[string]string{"PROCTOP_READ_TIMEOUT": "0.5"}
	cfg, err := ApplyEnv(base, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Filter != "keep" || cfg.Interval != 3 || cfg.ReadTimeout != 0.5 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
