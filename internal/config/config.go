// Package config handles configuration loading, validation, and defaults for
// shotcheck.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete shotcheck configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Ingest configuration for walking screenshot trees.
	Ingest IngestConfig `toml:"ingest" json:"ingest" yaml:"ingest"`

	// Report configuration for the HTML and JSON outputs.
	Report ReportConfig `toml:"report" json:"report" yaml:"report"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// History configuration for the run database.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Watch configuration for continuous mode.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Matrix configuration for test generation.
	Matrix MatrixConfig `toml:"matrix" json:"matrix" yaml:"matrix"`
}

// IngestConfig holds screenshot ingestion settings.
type IngestConfig struct {
	// Roots are the screenshot directories to ingest when none are given on
	// the command line.
	Roots []string `toml:"roots" json:"roots" yaml:"roots"`

	// HashAlgorithm is the content digest: "sha256" or "blake2b".
	HashAlgorithm string `toml:"hash_algorithm" json:"hash_algorithm" yaml:"hash_algorithm"`

	// Workers is the number of files hashed concurrently. 1 hashes
	// sequentially.
	Workers int `toml:"workers" json:"workers" yaml:"workers"`

	// StrictPaths makes a file without engine/model/variant/browser
	// segments abort ingestion. When false such files are skipped.
	StrictPaths bool `toml:"strict_paths" json:"strict_paths" yaml:"strict_paths"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	// Output is the HTML report path.
	Output string `toml:"output" json:"output" yaml:"output"`

	// Title is shown in the page heading.
	Title string `toml:"title" json:"title" yaml:"title"`

	// SummaryPath, if set, receives a JSON summary of the run.
	SummaryPath string `toml:"summary_path" json:"summary_path" yaml:"summary_path"`

	// Thumbnails enables writing scaled thumbnails next to the report.
	Thumbnails bool `toml:"thumbnails" json:"thumbnails" yaml:"thumbnails"`

	// ThumbDir is where thumbnails are written. Relative paths are resolved
	// against the report directory.
	ThumbDir string `toml:"thumb_dir" json:"thumb_dir" yaml:"thumb_dir"`

	// ThumbWidth and ThumbHeight size the grid images.
	ThumbWidth  int `toml:"thumb_width" json:"thumb_width" yaml:"thumb_width"`
	ThumbHeight int `toml:"thumb_height" json:"thumb_height" yaml:"thumb_height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, or file.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is used when Output is file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// HistoryConfig holds the run history database settings.
type HistoryConfig struct {
	// Enabled records every report run.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// WatchConfig holds continuous-mode settings.
type WatchConfig struct {
	// DebounceMs is how long the screenshot trees must be quiet before the
	// report is regenerated.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// MetricsAddr, if set, serves /metrics while watching.
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr" yaml:"metrics_addr"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// TextfilePath, if set, receives Prometheus text-format metrics after
	// each run.
	TextfilePath string `toml:"textfile_path" json:"textfile_path" yaml:"textfile_path"`
}

// MatrixConfig holds test-matrix generation settings.
type MatrixConfig struct {
	// GridSize is the number of cells per side of a material test frame.
	GridSize int `toml:"grid_size" json:"grid_size" yaml:"grid_size"`

	// Engine is the engine script URL written into every test.
	Engine string `toml:"engine" json:"engine" yaml:"engine"`

	// Environment is the environment map asset.
	Environment string `toml:"environment" json:"environment" yaml:"environment"`

	// ModelManifest is the glTF model-index.json path. Empty skips glTF
	// tests.
	ModelManifest string `toml:"model_manifest" json:"model_manifest" yaml:"model_manifest"`

	// ModelRoot is the URL prefix of glTF sample models.
	ModelRoot string `toml:"model_root" json:"model_root" yaml:"model_root"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := ShotcheckDir()

	return &Config{
		Version: Version,
		Ingest: IngestConfig{
			Roots:         []string{},
			HashAlgorithm: "sha256",
			Workers:       1,
			StrictPaths:   true,
		},
		Report: ReportConfig{
			Output:      "report.html",
			Title:       "shotcheck",
			ThumbDir:    "thumbs",
			ThumbWidth:  160,
			ThumbHeight: 120,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "shotcheck.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "history.db"),
		},
		Watch: WatchConfig{
			DebounceMs: 2000,
		},
		Matrix: MatrixConfig{
			GridSize:    8,
			Engine:      "https://code.playcanvas.com/playcanvas-stable.js",
			Environment: "assets/abandoned_tank_farm_01_2k.hdr",
			ModelRoot:   "gltf-sample-models/2.0",
		},
	}
}

// ShotcheckDir returns the base data directory.
// SHOTCHECK_DATA_DIR overrides the platform default.
func ShotcheckDir() string {
	if envDir := os.Getenv("SHOTCHECK_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with SHOTCHECK_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SHOTCHECK_REPORT_OUTPUT"); v != "" {
		c.Report.Output = v
	}
	if v := os.Getenv("SHOTCHECK_HASH"); v != "" {
		c.Ingest.HashAlgorithm = v
	}
	if v := os.Getenv("SHOTCHECK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("SHOTCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SHOTCHECK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SHOTCHECK_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("SHOTCHECK_HISTORY"); v != "" {
		c.History.Enabled = parseBool(v)
	}
	if v := os.Getenv("SHOTCHECK_METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Ingest.Roots = append([]string{}, c.Ingest.Roots...)
	return &clone
}

// ThumbDirFor resolves the thumbnail directory for a report written to
// reportPath.
func (c *Config) ThumbDirFor(reportPath string) string {
	dir := expandPath(c.Report.ThumbDir)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(filepath.Dir(reportPath), dir)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
