package report

import (
	"fmt"

	"shotcheck/internal/imagediff"
)

// Kind classifies a violation.
type Kind string

const (
	// KindMissing means an engine has no render for a (model, browser,
	// variant) that other engines rendered.
	KindMissing Kind = "missing"
	// KindDimensions means two renders differ in size.
	KindDimensions Kind = "dimensions"
	// KindPixels means two renders differ in pixel data.
	KindPixels Kind = "pixels"
	// KindUnreadable means a render could not be decoded for comparison.
	KindUnreadable Kind = "unreadable"
)

// Violation is one integrity failure found by the report.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Model   string `json:"model"`
	Browser string `json:"browser"`
	Variant string `json:"variant"`
	// Engine is the missing engine, or the engine compared against the
	// reference engine.
	Engine          string `json:"engine"`
	ReferenceEngine string `json:"reference_engine,omitempty"`
	Description     string `json:"description,omitempty"`
	PathA           string `json:"path_a,omitempty"`
	PathB           string `json:"path_b,omitempty"`
}

// Line formats the violation for the diagnostic stream.
func (v Violation) Line() string {
	if v.Kind == KindMissing {
		return fmt.Sprintf("missing model=%s browser=%s variant=%s engine=%s",
			v.Model, v.Browser, v.Variant, v.Engine)
	}
	return fmt.Sprintf("%s %s %s", v.Description, v.PathA, v.PathB)
}

func kindFor(description string) Kind {
	if description == imagediff.DimensionMismatch {
		return KindDimensions
	}
	return KindPixels
}
