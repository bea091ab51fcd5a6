package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	plog "github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/collector/procfs"
	"github.com/srodi/proctop/pkg/collector/psutil"
	"github.com/srodi/proctop/pkg/config"
	"github.com/srodi/proctop/pkg/control"
	"github.com/srodi/proctop/pkg/dispatch"
	"github.com/srodi/proctop/pkg/logging"
	"github.com/srodi/proctop/pkg/metrics"
	"github.com/srodi/proctop/pkg/sampler"
	"github.com/srodi/proctop/pkg/store"
	"github.com/srodi/proctop/pkg/types"
	"github.com/srodi/proctop/pkg/ui"
)

const (
	pollEvery   = 250 * time.Millisecond
	stopTimeout = 3 * time.Second
)

type runConfig struct {
	config.Config
	overrides  func(config.Config) config.Config
	configPath string
	plain      bool
	iterations int
	limit      int
}

func parseConfig(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("proctop", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML config file")
	interval := fs.Float64("interval", 0, "poll interval in seconds (minimum 0.1)")
	history := fs.Int("history", 0, "per-core CPU history length")
	sortKey := fs.String("sort", "", "initial sort key: cpu, mem, pid or user")
	filter := fs.String("filter", "", "initial filter regexp matched against name and command line")
	provider := fs.String("provider", "", "counter source: gopsutil or procfs")
	readTimeout := fs.Float64("read-timeout", 0, "per-process read budget in seconds")
	workers := fs.Int("workers", 0, "processes read in parallel")
	logLevel := fs.String("log-level", "", "trace, debug, info, warn or error")
	logFile := fs.String("log-file", "", "write logs to this file")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	plain := fs.Bool("plain", false, "use the plain text renderer even on a terminal")
	iterations := fs.Int("n", 0, "exit after this many batches in plain mode (0 runs until interrupted)")
	limit := fs.Int("limit", 0, "maximum process rows in plain mode (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return runConfig{}, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return runConfig{}, err
	}

	var given []string
	fs.Visit(func(f *flag.Flag) { given = append(given, f.Name) })

	// Flags win over every other source, but only when given. Reloads of the
	// config file go through the same overlay.
	overrides := func(cfg config.Config) config.Config {
		for _, name := range given {
			switch name {
			case "interval":
				cfg.Interval = *interval
			case "history":
				cfg.HistoryLength = *history
			case "sort":
				cfg.Sort = *sortKey
			case "filter":
				cfg.Filter = *filter
			case "provider":
				cfg.Provider = *provider
			case "read-timeout":
				cfg.ReadTimeout = *readTimeout
			case "workers":
				cfg.Workers = *workers
			case "log-level":
				cfg.LogLevel = *logLevel
			case "log-file":
				cfg.LogFile = *logFile
			case "metrics-addr":
				cfg.MetricsAddr = *metricsAddr
			}
		}
		return config.Normalize(cfg)
	}

	return runConfig{
		Config:     overrides(cfg),
		overrides:  overrides,
		configPath: *configPath,
		plain:      *plain,
		iterations: *iterations,
		limit:      *limit,
	}, nil
}

func newProvider(name string) (collector.Provider, error) {
	switch name {
	case config.ProviderProcfs:
		return procfs.New("")
	case config.ProviderGopsutil:
		return psutil.New(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	interactive := term.IsTerminal(int(os.Stdout.Fd())) && !cfg.plain

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Quiet: interactive})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg.Provider)
	if err != nil {
		log.Fatalf("initializing %s provider: %v", cfg.Provider, err)
	}

	out := dispatch.New(cfg.DispatchCapacity)
	smp := sampler.New(provider, out,
		sampler.WithLogger(logger),
		sampler.WithSettings(sampler.Settings{Interval: cfg.IntervalDuration(), HistoryLength: cfg.HistoryLength}),
		sampler.WithReadTimeout(cfg.ReadTimeoutDuration()),
		sampler.WithWorkers(cfg.Workers),
	)
	st := store.New(types.ViewState{Sort: cfg.SortKey(), Filter: cfg.Filter})

	worker := control.NewWorker(logger)
	worker.Start(ctx)
	defer worker.Close()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			metrics.NewCollector(smp, st),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if _, err := os.Stat(cfg.configPath); err == nil {
		go watchConfig(ctx, cfg, logger, smp)
	}

	if err := smp.Start(ctx); err != nil {
		log.Fatalf("starting sampler: %v", err)
	}
	defer func() {
		if err := smp.Stop(stopTimeout); err != nil {
			logger.Warn().Err(err).Msg("sampler shutdown")
		}
	}()

	if interactive {
		err = runInteractive(ctx, st, out, worker, smp)
	} else {
		err = runPlain(ctx, st, out, smp, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		_ = smp.Stop(stopTimeout)
		log.Fatalf("proctop: %v", err)
	}
}

func runInteractive(ctx context.Context, st *store.Store, out *dispatch.Channel, worker *control.Worker, smp *sampler.Sampler) error {
	model := ui.NewModel(st, out, worker, smp, smp.Fatal())
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	}
	if m, ok := final.(ui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func runPlain(ctx context.Context, st *store.Store, out *dispatch.Channel, smp *sampler.Sampler, cfg runConfig) error {
	singleView := term.IsTerminal(int(os.Stdout.Fd()))
	if singleView {
		cleanupTerminal := enableSingleView()
		defer cleanupTerminal()
	}

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-smp.Fatal():
			return err
		case <-ticker.C:
			if !st.Refresh(out) {
				continue
			}
			if singleView {
				clearScreen()
			}
			err := ui.RenderPlain(os.Stdout, st.Current(), st.Rows(), ui.PlainOptions{
				Interval: smp.Settings().Interval,
				View:     st.View(),
				Limit:    cfg.limit,
				Banner:   singleView,
			})
			if err != nil {
				return err
			}
			if !singleView {
				fmt.Println()
			}
			printed++
			if cfg.iterations > 0 && printed >= cfg.iterations {
				return nil
			}
		}
	}
}

// watchConfig applies interval and history changes live; the rest needs a restart.
func watchConfig(ctx context.Context, cfg runConfig, logger plog.Logger, smp *sampler.Sampler) {
	current := cfg.Config
	err := config.Watch(ctx, cfg.configPath, logger, func(next config.Config) {
		if cfg.overrides != nil {
			next = cfg.overrides(next)
		}
		smp.Reconfigure(sampler.Settings{Interval: next.IntervalDuration(), HistoryLength: next.HistoryLength})
		if next.Provider != current.Provider || next.MetricsAddr != current.MetricsAddr ||
			next.Workers != current.Workers || next.DispatchCapacity != current.DispatchCapacity {
			logger.Warn().Str("path", cfg.configPath).Msg("provider, workers, dispatch and metrics changes apply after restart")
		}
		current = next
	})
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher stopped")
	}
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
