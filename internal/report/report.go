// Package report turns a screenshot index into a comparison grid and a list
// of integrity violations.
//
// The grid has one row per model and one column per browser; each cell shows
// one thumbnail per distinct content hash. The integrity check requires every
// known engine to have rendered every (model, browser, variant) and every
// render to be pixel-identical to the reference engine's. Violations are
// written one per line to a diagnostic writer and handed to the Sink.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"shotcheck/internal/imagediff"
	"shotcheck/internal/index"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitViolations = 1
)

// Sink receives the report as it is generated. Calls arrive in order: Init,
// Entry for every cell, Violation for every violation, then Done.
type Sink interface {
	Init(models, browsers []string)
	Entry(model, browser int, groups []index.HashGroup)
	Violation(v Violation)
	Done() error
}

// DiffFunc compares two renders on disk.
type DiffFunc func(pathA, pathB string) (description string, match bool, err error)

// Result summarises one report run.
type Result struct {
	ExitCode   int           `json:"exit_code"`
	Models     []string      `json:"models"`
	Browsers   []string      `json:"browsers"`
	Engines    []string      `json:"engines"`
	Violations []Violation   `json:"violations"`
	Stats      index.Stats   `json:"stats"`
	Duration   time.Duration `json:"duration_ns"`
}

// Passed reports whether no violation was found.
func (r *Result) Passed() bool {
	return r.ExitCode == ExitOK
}

// Count returns the number of violations of kind k.
func (r *Result) Count(k Kind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == k {
			n++
		}
	}
	return n
}

// Generator drives a Sink from an Index.
type Generator struct {
	diff   DiffFunc
	diag   io.Writer
	logger *slog.Logger
}

// NewGenerator creates a generator that diffs PNG files from disk and writes
// diagnostics to stderr.
func NewGenerator() *Generator {
	return &Generator{
		diff:   imagediff.DiffFiles,
		diag:   os.Stderr,
		logger: slog.Default(),
	}
}

// WithDiff replaces the pixel comparison.
func (g *Generator) WithDiff(fn DiffFunc) *Generator {
	g.diff = fn
	return g
}

// WithDiagnostics sets where violation lines are written. nil discards them.
func (g *Generator) WithDiagnostics(w io.Writer) *Generator {
	if w == nil {
		w = io.Discard
	}
	g.diag = w
	return g
}

// WithLogger sets the logger.
func (g *Generator) WithLogger(l *slog.Logger) *Generator {
	g.logger = l
	return g
}

// Generate renders idx into sink and returns the run result. The error is
// non-nil only when the sink fails; violations are reported through the
// result's exit code.
func (g *Generator) Generate(idx *index.Index, sink Sink) (*Result, error) {
	start := time.Now()

	res := &Result{
		Models:     idx.Models(),
		Browsers:   idx.Browsers(),
		Engines:    idx.Engines(),
		Violations: []Violation{},
		Stats:      idx.Stats(),
	}

	sink.Init(res.Models, res.Browsers)
	for m, model := range res.Models {
		for b, browser := range res.Browsers {
			sink.Entry(m, b, idx.Grouped().Groups(model, browser))
		}
	}

	for _, v := range g.check(idx.Identity(), res.Engines) {
		res.Violations = append(res.Violations, v)
		fmt.Fprintln(g.diag, v.Line())
		g.logger.Warn("violation",
			slog.String("kind", string(v.Kind)),
			slog.String("model", v.Model),
			slog.String("browser", v.Browser),
			slog.String("variant", v.Variant),
			slog.String("engine", v.Engine),
		)
		sink.Violation(v)
	}

	if len(res.Violations) > 0 {
		res.ExitCode = ExitViolations
	}

	if err := sink.Done(); err != nil {
		return res, fmt.Errorf("finish report: %w", err)
	}

	res.Duration = time.Since(start)
	g.logger.Info("report generated",
		slog.Int("models", len(res.Models)),
		slog.Int("browsers", len(res.Browsers)),
		slog.Int("engines", len(res.Engines)),
		slog.Int("violations", len(res.Violations)),
		slog.Int("exit_code", res.ExitCode),
	)
	return res, nil
}

// check finds missing and mismatched renders, in sorted triple order.
func (g *Generator) check(ids *index.IdentityIndex, engines []string) []Violation {
	var out []Violation

	for _, t := range ids.Triples() {
		present := ids.Engines(t)

		for _, e := range engines {
			if _, ok := present[e]; !ok {
				out = append(out, Violation{
					Kind:    KindMissing,
					Model:   t.Model,
					Browser: t.Browser,
					Variant: t.Variant,
					Engine:  e,
				})
			}
		}

		names := slices.Sorted(maps.Keys(present))
		if len(names) < 2 {
			continue
		}

		refEngine := names[0]
		ref := present[refEngine]
		for _, e := range names[1:] {
			other := present[e]
			if other.Hash == ref.Hash {
				continue
			}

			v := Violation{
				Model:           t.Model,
				Browser:         t.Browser,
				Variant:         t.Variant,
				Engine:          e,
				ReferenceEngine: refEngine,
				PathA:           ref.Path,
				PathB:           other.Path,
			}

			desc, match, err := g.diff(ref.Path, other.Path)
			switch {
			case err != nil:
				v.Kind = KindUnreadable
				v.Description = "unreadable image (" + err.Error() + ")"
			case match:
				// different bytes, same pixels: metadata or compression only
				g.logger.Debug("hash differs but pixels match",
					slog.String("a", ref.Path),
					slog.String("b", other.Path),
				)
				continue
			default:
				v.Kind = kindFor(desc)
				v.Description = desc
			}
			out = append(out, v)
		}
	}

	return out
}
