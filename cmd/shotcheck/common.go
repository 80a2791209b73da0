package main

import (
	"flag"
	"fmt"
	"io"

	"shotcheck/internal/config"
	"shotcheck/internal/logging"
)

// commonFlags are shared by report and watch. Flags given on the command
// line override the config file.
type commonFlags struct {
	configPath  string
	workers     int
	hash        string
	thumbs      bool
	lenient     bool
	history     bool
	metricsFile string
	jsonPath    string
	logLevel    string
	logFormat   string
	title       string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file (toml, json or yaml)")
	fs.IntVar(&c.workers, "workers", 1, "files hashed concurrently")
	fs.StringVar(&c.hash, "hash", "sha256", "content hash: sha256 or blake2b")
	fs.BoolVar(&c.thumbs, "thumbs", false, "write scaled thumbnails next to the report")
	fs.BoolVar(&c.lenient, "lenient", false, "skip files not laid out as engine/model/variant/browser")
	fs.BoolVar(&c.history, "history", false, "record the run in the history database")
	fs.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to path")
	fs.StringVar(&c.jsonPath, "json", "", "write a JSON summary to path")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&c.title, "title", "shotcheck", "report title")
}

// load reads the config file and applies explicitly set flags on top.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Ingest.Workers = c.workers
		case "hash":
			cfg.Ingest.HashAlgorithm = c.hash
		case "thumbs":
			cfg.Report.Thumbnails = c.thumbs
		case "lenient":
			cfg.Ingest.StrictPaths = !c.lenient
		case "history":
			cfg.History.Enabled = c.history
		case "metrics-file":
			cfg.Metrics.TextfilePath = c.metricsFile
		case "json":
			cfg.Report.SummaryPath = c.jsonPath
		case "log-level":
			cfg.Logging.Level = c.logLevel
		case "log-format":
			cfg.Logging.Format = c.logFormat
		case "title":
			cfg.Report.Title = c.title
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section. Records
// go to stderr unless the config names a file.
func newLogger(lc config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	cfg := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		FilePath:   lc.FilePath,
		MaxSizeMB:  int64(lc.MaxSizeMB),
		MaxBackups: lc.MaxBackups,
		Component:  "shotcheck",
	}
	if lc.Output == "stderr" {
		cfg.Writer = stderr
	}
	return logging.New(cfg)
}

func fatalf(w io.Writer, format string, args ...any) int {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
	return exitFatal
}
