package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidConfig is wrapped by Validate failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateIngest(&c.Ingest)...)
	errs = append(errs, validateReport(&c.Report)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateHistory(&c.History)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateMatrix(&c.Matrix)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateIngest(in *IngestConfig) ValidationErrors {
	var errs ValidationErrors

	switch in.HashAlgorithm {
	case "sha256", "blake2b":
	default:
		errs = append(errs, ValidationError{
			Field:   "ingest.hash_algorithm",
			Message: fmt.Sprintf("unknown algorithm %q (want sha256 or blake2b)", in.HashAlgorithm),
		})
	}
	if in.Workers < 1 || in.Workers > 256 {
		errs = append(errs, *RangeError("ingest.workers", 1, 256))
	}
	for i, root := range in.Roots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ingest.roots[%d]", i),
				Message: "root is empty",
			})
		}
	}
	return errs
}

func validateReport(r *ReportConfig) ValidationErrors {
	var errs ValidationErrors

	if r.Output == "" {
		errs = append(errs, *RequiredFieldError("report.output"))
	} else if ext := strings.ToLower(filepath.Ext(r.Output)); ext != ".html" && ext != ".htm" {
		errs = append(errs, ValidationError{
			Field:   "report.output",
			Message: "must end in .html",
		})
	}
	if r.ThumbWidth < 8 || r.ThumbWidth > 4096 {
		errs = append(errs, *RangeError("report.thumb_width", 8, 4096))
	}
	if r.ThumbHeight < 8 || r.ThumbHeight > 4096 {
		errs = append(errs, *RangeError("report.thumb_height", 8, 4096))
	}
	if r.Thumbnails && r.ThumbDir == "" {
		errs = append(errs, *RequiredFieldError("report.thumb_dir"))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(l.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}
	if l.Format != "text" && l.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (want text or json)", l.Format),
		})
	}
	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, *RequiredFieldError("logging.file_path"))
		}
		if l.MaxSizeMB < 1 {
			errs = append(errs, *RangeError("logging.max_size_mb", 1, "unbounded"))
		}
		if l.MaxBackups < 0 {
			errs = append(errs, *RangeError("logging.max_backups", 0, "unbounded"))
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q (want stdout, stderr or file)", l.Output),
		})
	}
	return errs
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	if h.Enabled && h.Path == "" {
		return ValidationErrors{*RequiredFieldError("history.path")}
	}
	return nil
}

func validateWatch(w *WatchConfig) ValidationErrors {
	if w.DebounceMs < 50 {
		return ValidationErrors{{
			Field:   "watch.debounce_ms",
			Message: "must be at least 50",
		}}
	}
	return nil
}

func validateMatrix(m *MatrixConfig) ValidationErrors {
	var errs ValidationErrors
	if m.GridSize < 1 || m.GridSize > 64 {
		errs = append(errs, *RangeError("matrix.grid_size", 1, 64))
	}
	if m.Engine == "" {
		errs = append(errs, *RequiredFieldError("matrix.engine"))
	}
	return errs
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// RequiredFieldError creates an error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates an error for a value outside its allowed range.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be between %v and %v", min, max),
	}
}
