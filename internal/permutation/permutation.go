// Package permutation enumerates combinations of configuration fragments.
//
// A Space is built from an ordered list of axes. Each axis is an ordered list
// of fragments (property name to value). Every integer index addresses exactly
// one combination: the index is decomposed in mixed radix, with axis 0 as the
// fastest-moving digit, and the selected fragments are merged in axis order so
// that later axes override earlier ones on key collision.
//
// Resolve wraps indices past the end, so a fixed-size grid of cells can keep
// pulling configurations after the space is exhausted.
package permutation

import (
	"errors"
	"fmt"
	"maps"
)

// Errors
var (
	ErrNoAxes    = errors.New("permutation: at least one axis is required")
	ErrEmptyAxis = errors.New("permutation: axis has no fragments")
)

// Fragment is a partial configuration contributed by one axis.
type Fragment map[string]any

// Axis is an ordered list of alternative fragments.
type Axis []Fragment

// Space is an immutable permutation space over a fixed set of axes.
type Space struct {
	axes     []Axis
	dimSizes []int
	total    int
}

// New builds a Space and precomputes the stride of every axis.
func New(axes ...Axis) (*Space, error) {
	if len(axes) == 0 {
		return nil, ErrNoAxes
	}

	s := &Space{
		axes:     make([]Axis, len(axes)),
		dimSizes: make([]int, len(axes)),
		total:    1,
	}

	for i, axis := range axes {
		if len(axis) == 0 {
			return nil, fmt.Errorf("%w: axis %d", ErrEmptyAxis, i)
		}
		s.axes[i] = cloneAxis(axis)
		s.total *= len(axis)
	}

	s.dimSizes[0] = 1
	for i := 1; i < len(axes); i++ {
		s.dimSizes[i] = s.dimSizes[i-1] * len(axes[i-1])
	}

	return s, nil
}

// MustNew is like New but panics on error. Intended for static axis tables.
func MustNew(axes ...Axis) *Space {
	s, err := New(axes...)
	if err != nil {
		panic(err)
	}
	return s
}

// Total returns the number of distinct permutations.
func (s *Space) Total() int {
	return s.total
}

// Axes returns the number of axes.
func (s *Space) Axes() int {
	return len(s.axes)
}

// Stride returns the stride of axis i.
func (s *Space) Stride(i int) int {
	return s.dimSizes[i]
}

// Coords decomposes idx (after wrapping) into one coordinate per axis.
func (s *Space) Coords(idx int) []int {
	idx = s.wrap(idx)

	coords := make([]int, len(s.axes))
	for i := len(s.axes) - 1; i >= 0; i-- {
		coords[i] = idx / s.dimSizes[i]
		idx %= s.dimSizes[i]
	}
	return coords
}

// Index is the inverse of Coords for in-range coordinates.
func (s *Space) Index(coords []int) (int, error) {
	if len(coords) != len(s.axes) {
		return 0, fmt.Errorf("permutation: got %d coordinates for %d axes", len(coords), len(s.axes))
	}
	idx := 0
	for i, c := range coords {
		if c < 0 || c >= len(s.axes[i]) {
			return 0, fmt.Errorf("permutation: coordinate %d out of range for axis %d (size %d)", c, i, len(s.axes[i]))
		}
		idx += c * s.dimSizes[i]
	}
	return idx, nil
}

// Resolve returns the merged configuration for idx. The result is a fresh
// map; callers may modify it.
func (s *Space) Resolve(idx int) map[string]any {
	coords := s.Coords(idx)

	result := make(map[string]any)
	for i, c := range coords {
		maps.Copy(result, s.axes[i][c])
	}
	return result
}

// wrap maps any integer into [0, total).
func (s *Space) wrap(idx int) int {
	idx %= s.total
	if idx < 0 {
		idx += s.total
	}
	return idx
}

func cloneAxis(a Axis) Axis {
	out := make(Axis, len(a))
	for i, f := range a {
		out[i] = maps.Clone(f)
	}
	return out
}
