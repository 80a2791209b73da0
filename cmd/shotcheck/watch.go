package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"shotcheck/internal/config"
	"shotcheck/internal/health"
	"shotcheck/internal/watcher"
)

func cmdWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	debounce := fs.Duration("debounce", 0, "quiet period before regenerating (default from config)")
	listen := fs.String("listen", "", "serve /metrics and health probes on this address")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shotcheck watch [flags] <output.html> <dir>...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	cfg, err := common.load(fs)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	if *debounce > 0 {
		cfg.Watch.DebounceMs = int(debounce.Milliseconds())
	}
	if *listen != "" {
		cfg.Watch.MetricsAddr = *listen
	}
	output, roots, err := reportArgs(fs, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return exitFatal
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	defer logger.Close()

	r, err := newRunner(cfg, logger, stderr)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the config file is reloaded on change; flags given on the command
	// line are not reapplied
	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	if common.configPath != "" {
		loader := config.NewLoader(common.configPath)
		if _, err := loader.Load(); err != nil {
			return fatalf(stderr, "%v", err)
		}
		loader.OnChange(func(c *config.Config) {
			current.Store(c)
			logger.Info("config reloaded", slog.String("path", common.configPath))
		})
		if err := loader.Watch(ctx); err != nil {
			return fatalf(stderr, "%v", err)
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-loader.Errors():
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				}
			}
		}()
	}

	var lastRun health.LastRun
	checker := health.NewChecker()
	checker.RegisterFunc("roots", true, health.DirsCheck(roots...))
	checker.RegisterFunc("last_run", false, lastRun.Check)
	if r.history != nil {
		checker.RegisterFunc("history", false, health.PingCheck(r.history.Ping))
	}

	if cfg.Watch.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: metricsMux(r, checker)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", slog.String("addr", cfg.Watch.MetricsAddr))
	}

	regenerate := func(reason string) {
		defer checker.Check(ctx)
		res, err := r.run(ctx, current.Load(), output, roots)
		if err != nil {
			lastRun.Record(time.Now(), exitFatal, err)
			logger.Error("report failed", slog.String("reason", reason), slog.String("error", err.Error()))
			return
		}
		lastRun.Record(time.Now(), res.ExitCode, nil)
		printSummary(stdout, output, res)
	}
	regenerate("startup")
	checker.SetReady(true)

	w, err := watcher.New(roots, time.Duration(cfg.Watch.DebounceMs)*time.Millisecond)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}
	// files written by a run must not trigger the next one
	if err := w.Ignore(outputPaths(cfg, output)...); err != nil {
		return fatalf(stderr, "%v", err)
	}
	logger.Info("watching", slog.Any("roots", roots), slog.Int("debounce_ms", cfg.Watch.DebounceMs))

	err = w.Run(ctx, func(b watcher.Batch) {
		logger.Debug("changes settled", slog.Int("paths", len(b.Paths)))
		regenerate("change")
	}, func(err error) {
		logger.Warn("watch error", slog.String("error", err.Error()))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fatalf(stderr, "%v", err)
	}
	return exitOK
}

// outputPaths lists everything a report run writes.
func outputPaths(cfg *config.Config, output string) []string {
	paths := []string{
		output,
		cfg.ThumbDirFor(output),
		cfg.Report.SummaryPath,
		cfg.Metrics.TextfilePath,
		cfg.Logging.FilePath,
	}
	if cfg.History.Enabled {
		// sqlite also writes -wal and -journal files next to the database
		paths = append(paths, cfg.History.Path, cfg.History.Path+"-wal", cfg.History.Path+"-shm", cfg.History.Path+"-journal")
	}
	return paths
}

func metricsMux(r *runner, checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	mux.Handle("/health", checker.HealthHandler())
	return mux
}
