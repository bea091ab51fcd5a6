// Package config loads proctop settings from defaults, a YAML file, a .env
// file and PROCTOP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/srodi/proctop/pkg/types"
)

const (
	defaultInterval       = 2.0
	minInterval           = 0.1
	defaultMemoryBudgetMB = 64
	defaultReadTimeout    = 0.25
	defaultProvider       = ProviderGopsutil

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PROCTOP_"

	ProviderGopsutil = "gopsutil"
	ProviderProcfs   = "procfs"
)

// dotEnvPath is read for overrides when present; tests point it elsewhere.
var dotEnvPath = ".env"

// Config is the full set of user-tunable settings.
type Config struct {
	Interval         float64 `yaml:"interval"`
	HistoryLength    int     `yaml:"history_length"`
	Sort             string  `yaml:"sort"`
	Filter           string  `yaml:"filter"`
	MemoryBudgetMB   int     `yaml:"memory_budget_mb"`
	Provider         string  `yaml:"provider"`
	ReadTimeout      float64 `yaml:"read_timeout"`
	Workers          int     `yaml:"workers"`
	DispatchCapacity int     `yaml:"dispatch_capacity"`
	LogLevel         string  `yaml:"log_level"`
	LogFile          string  `yaml:"log_file"`
	MetricsAddr      string  `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Normalize(Config{})
}

// DefaultPath is $XDG_CONFIG_HOME/proctop/config.yaml (or the platform
// equivalent), or "" when no config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "proctop", "config.yaml")
}

// Load layers the YAML file at path, the .env file and the environment over
// the defaults and returns the normalized result. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path, Config{})
	if err != nil {
		return Default(), err
	}
	dotenv, err := readDotEnv(dotEnvPath)
	if err != nil {
		return Normalize(cfg), err
	}
	cfg, err = ApplyEnv(cfg, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return Normalize(cfg), err
}

// LoadFile decodes the YAML file at path over base.
func LoadFile(path string, base Config) (Config, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// ApplyEnv overrides cfg with PROCTOP_* values returned by lookup. Malformed
// numbers are reported together and leave the field unchanged.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	num("INTERVAL", &cfg.Interval)
	integer("HISTORY_LENGTH", &cfg.HistoryLength)
	str("SORT", &cfg.Sort)
	str("FILTER", &cfg.Filter)
	integer("MEMORY_BUDGET_MB", &cfg.MemoryBudgetMB)
	str("PROVIDER", &cfg.Provider)
	num("READ_TIMEOUT", &cfg.ReadTimeout)
	integer("WORKERS", &cfg.Workers)
	integer("DISPATCH_CAPACITY", &cfg.DispatchCapacity)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	return cfg, errors.Join(errs...)
}

// Normalize fills defaults and clamps every field into its valid range.
func Normalize(cfg Config) Config {
	normalized := cfg

	if normalized.Interval <= 0 {
		normalized.Interval = defaultInterval
	}
	if normalized.Interval < minInterval {
		normalized.Interval = minInterval
	}
	if normalized.MemoryBudgetMB <= 0 {
		normalized.MemoryBudgetMB = defaultMemoryBudgetMB
	}
	if normalized.HistoryLength < 1 {
		normalized.HistoryLength = types.DefaultHistoryLength
	}
	if ceiling := historyCeiling(normalized.MemoryBudgetMB, runtime.NumCPU()); normalized.HistoryLength > ceiling {
		normalized.HistoryLength = ceiling
	}

	key, err := types.ParseSortKey(normalized.Sort)
	if err != nil {
		key = types.SortByCPU
	}
	normalized.Sort = strings.ToLower(key.String())

	switch p := strings.ToLower(strings.TrimSpace(normalized.Provider)); p {
	case ProviderGopsutil, ProviderProcfs:
		normalized.Provider = p
	default:
		normalized.Provider = defaultProvider
	}

	if normalized.ReadTimeout <= 0 {
		normalized.ReadTimeout = defaultReadTimeout
	}
	if normalized.Workers <= 0 {
		normalized.Workers = runtime.NumCPU()
	}
	if normalized.DispatchCapacity < 1 {
		normalized.DispatchCapacity = 1
	}
	if normalized.DispatchCapacity > 2 {
		normalized.DispatchCapacity = 2
	}
	normalized.LogLevel = strings.ToLower(strings.TrimSpace(normalized.LogLevel))
	if normalized.LogLevel == "" {
		normalized.LogLevel = "info"
	}
	return normalized
}

// historyCeiling caps per-core history so it uses at most a quarter of the
// memory budget at eight bytes per reading.
func historyCeiling(budgetMB, cores int) int {
	if cores < 1 {
		cores = 1
	}
	ceiling := budgetMB << 20 / 4 / (8 * cores)
	if ceiling < 1 {
		return 1
	}
	return ceiling
}

// IntervalDuration is the poll interval as a time.Duration.
func (c Config) IntervalDuration() time.Duration {
	return seconds(c.Interval)
}

// ReadTimeoutDuration is the per-process read budget as a time.Duration.
func (c Config) ReadTimeoutDuration() time.Duration {
	return seconds(c.ReadTimeout)
}

// SortKey parses the configured sort key, falling back to CPU.
func (c Config) SortKey() types.SortKey {
	key, err := types.ParseSortKey(c.Sort)
	if err != nil {
		return types.SortByCPU
	}
	return key
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
