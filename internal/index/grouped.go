package index

// HashGroup is every path at one (model, browser) cell that produced the
// same content hash. Paths keeps insertion order; Paths[0] is the
// representative thumbnail.
type HashGroup struct {
	Hash  string
	Paths []string
}

// CellKey addresses one cell of the report grid.
type CellKey struct {
	Model   string
	Browser string
}

type cell struct {
	order  []string
	groups map[string][]string
}

// GroupedIndex maps model -> browser -> hash -> ordered paths. It backs the
// report grid. Adding a path twice under the same hash appends it again.
type GroupedIndex struct {
	cells map[CellKey]*cell
}

// NewGroupedIndex returns an empty GroupedIndex.
func NewGroupedIndex() *GroupedIndex {
	return &GroupedIndex{cells: make(map[CellKey]*cell)}
}

// Add appends path to the hash group at (model, browser). The first path
// added for a hash stays first.
func (g *GroupedIndex) Add(model, browser, hash, path string) {
	k := CellKey{Model: model, Browser: browser}
	c, ok := g.cells[k]
	if !ok {
		c = &cell{groups: make(map[string][]string)}
		g.cells[k] = c
	}
	if _, seen := c.groups[hash]; !seen {
		c.order = append(c.order, hash)
	}
	c.groups[hash] = append(c.groups[hash], path)
}

// Groups returns the hash groups at (model, browser) in first-seen order,
// or nil if nothing was ingested there. The returned slices are copies.
func (g *GroupedIndex) Groups(model, browser string) []HashGroup {
	c, ok := g.cells[CellKey{Model: model, Browser: browser}]
	if !ok {
		return nil
	}
	out := make([]HashGroup, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, HashGroup{
			Hash:  h,
			Paths: append([]string(nil), c.groups[h]...),
		})
	}
	return out
}

// Len returns the number of non-empty cells.
func (g *GroupedIndex) Len() int {
	return len(g.cells)
}
