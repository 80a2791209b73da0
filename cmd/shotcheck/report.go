package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shotcheck/internal/artifact"
	"shotcheck/internal/config"
	"shotcheck/internal/history"
	"shotcheck/internal/index"
	"shotcheck/internal/logging"
	"shotcheck/internal/metrics"
	"shotcheck/internal/report"
)

// runner ingests the screenshot roots and generates one report per call.
type runner struct {
	logger  *logging.Logger
	metrics *metrics.Collector
	history *history.Store
	diag    io.Writer
}

func newRunner(cfg *config.Config, logger *logging.Logger, diag io.Writer) (*runner, error) {
	r := &runner{
		logger:  logger,
		metrics: metrics.NewCollector(),
		diag:    diag,
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		r.history = store
	}
	return r, nil
}

func (r *runner) Close() error {
	if r.history != nil {
		return r.history.Close()
	}
	return nil
}

// run produces the report at output from roots. A non-nil error means the
// run could not complete; violations are reported through the result.
func (r *runner) run(ctx context.Context, cfg *config.Config, output string, roots []string) (*report.Result, error) {
	started := time.Now()

	res, err := r.generate(ctx, cfg, output, roots)
	if err != nil {
		r.metrics.ObserveError(exitFatal)
		r.writeMetrics(cfg)
		return nil, err
	}

	r.metrics.ObserveRun(res, time.Now())
	r.writeMetrics(cfg)

	if cfg.Report.SummaryPath != "" {
		if err := report.WriteJSONFile(cfg.Report.SummaryPath, res); err != nil {
			return res, err
		}
	}

	if r.history != nil {
		run := history.NewRun(res, roots, started)
		if err := r.history.RecordRun(ctx, run); err != nil {
			return res, fmt.Errorf("record run: %w", err)
		}
		r.logger.WithRun(run.ID).Info("run recorded", slog.Int("violations", run.ViolationCount))
	}

	return res, nil
}

func (r *runner) generate(ctx context.Context, cfg *config.Config, output string, roots []string) (*report.Result, error) {
	alg, err := artifact.ParseHashAlgorithm(cfg.Ingest.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	idx := index.New(
		index.WithHasher(artifact.NewHasher(alg)),
		index.WithWorkers(cfg.Ingest.Workers),
		index.WithLenientPaths(!cfg.Ingest.StrictPaths),
		index.WithLogger(r.logger.WithComponent("index").Logger),
	)
	for _, root := range roots {
		if err := idx.IngestDirectory(ctx, root); err != nil {
			return nil, err
		}
	}
	r.logger.Info("ingest complete",
		slog.Int("roots", len(roots)),
		slog.String("stats", idx.Stats().String()),
	)

	opts := report.HTMLOptions{
		Title:       cfg.Report.Title,
		ThumbWidth:  cfg.Report.ThumbWidth,
		ThumbHeight: cfg.Report.ThumbHeight,
		Logger:      r.logger.WithComponent("report").Logger,
	}
	if cfg.Report.Thumbnails {
		opts.Thumbnailer = report.NewThumbCache(cfg.ThumbDirFor(output), cfg.Report.ThumbWidth, cfg.Report.ThumbHeight)
	}
	sink, err := report.NewHTMLSink(output, opts)
	if err != nil {
		return nil, err
	}

	gen := report.NewGenerator().
		WithDiagnostics(r.diag).
		WithLogger(r.logger.WithComponent("report").Logger)
	res, err := gen.Generate(idx, sink)
	if err != nil {
		return nil, err
	}
	r.logger.Info("report written", slog.String("path", sink.Path()), slog.Int("exit_code", res.ExitCode))
	return res, nil
}

func (r *runner) writeMetrics(cfg *config.Config) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := r.metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		r.logger.Warn("metrics not written", slog.String("error", err.Error()))
	}
}

// reportArgs returns the output path and roots, falling back to the config
// for both.
func reportArgs(fs *flag.FlagSet, cfg *config.Config) (string, []string, error) {
	output := cfg.Report.Output
	roots := cfg.Ingest.Roots
	if fs.NArg() >= 1 {
		output = fs.Arg(0)
	}
	if fs.NArg() >= 2 {
		roots = fs.Args()[1:]
	}
	if len(roots) == 0 {
		return "", nil, fmt.Errorf("at least one screenshot directory required")
	}
	return output, roots, nil
}

func cmdReport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	quiet := fs.Bool("quiet", false, "do not print the summary line")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shotcheck report [flags] <output.html> <dir>...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	cfg, err := common.load(fs)
	if err != nil {
		return fatalf(stderr, "%v", err)
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

	res, err := r.run(ctx, cfg, output, roots)
	if err != nil {
		return fatalf(stderr, "%v", err)
	}

	if !*quiet {
		printSummary(stdout, output, res)
	}
	return res.ExitCode
}

func printSummary(w io.Writer, output string, res *report.Result) {
	status := "PASS"
	if !res.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s: %d models, %d browsers, %d engines, %d violations -> %s\n",
		status, len(res.Models), len(res.Browsers), len(res.Engines), len(res.Violations), output)
}
