package index

import (
	"cmp"
	"maps"
	"slices"
)

// Ref locates the artifact recorded for one identity tuple.
type Ref struct {
	Hash string
	Path string
}

// TripleKey is (model, browser, variant): the unit of the integrity check.
type TripleKey struct {
	Model   string
	Browser string
	Variant string
}

// IdentityIndex maps model -> browser -> variant -> engine -> Ref. There is
// exactly one Ref per tuple; a later Put for the same tuple replaces the
// earlier one.
type IdentityIndex struct {
	triples map[TripleKey]map[string]Ref
}

// NewIdentityIndex returns an empty IdentityIndex.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{triples: make(map[TripleKey]map[string]Ref)}
}

// Put records ref for the tuple and reports whether an earlier entry was
// overwritten.
func (x *IdentityIndex) Put(model, browser, variant, engine string, ref Ref) (replaced bool) {
	k := TripleKey{Model: model, Browser: browser, Variant: variant}
	engines, ok := x.triples[k]
	if !ok {
		engines = make(map[string]Ref)
		x.triples[k] = engines
	}
	_, replaced = engines[engine]
	engines[engine] = ref
	return replaced
}

// Get returns the Ref for a full tuple.
func (x *IdentityIndex) Get(model, browser, variant, engine string) (Ref, bool) {
	ref, ok := x.triples[TripleKey{Model: model, Browser: browser, Variant: variant}][engine]
	return ref, ok
}

// Triples returns every (model, browser, variant) seen, sorted.
func (x *IdentityIndex) Triples() []TripleKey {
	keys := slices.Collect(maps.Keys(x.triples))
	slices.SortFunc(keys, func(a, b TripleKey) int {
		return cmp.Or(
			cmp.Compare(a.Model, b.Model),
			cmp.Compare(a.Browser, b.Browser),
			cmp.Compare(a.Variant, b.Variant),
		)
	})
	return keys
}

// Engines returns a copy of the engine -> Ref map for t.
func (x *IdentityIndex) Engines(t TripleKey) map[string]Ref {
	return maps.Clone(x.triples[t])
}

// Len returns the number of (model, browser, variant) triples.
func (x *IdentityIndex) Len() int {
	return len(x.triples)
}
