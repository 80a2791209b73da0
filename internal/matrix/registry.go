package matrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

// ErrInvalidTestName is returned for names that are empty or would escape
// the output directory.
var ErrInvalidTestName = errors.New("invalid test name")

// Registry holds tests by name.
type Registry struct {
	tests map[string]*Test
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tests: make(map[string]*Test)}
}

// Register adds t, replacing any test with the same name.
func (r *Registry) Register(t Test) error {
	if !validName(t.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidTestName, t.Name)
	}
	r.tests[t.Name] = &t
	return nil
}

// RegisterAll adds every test in ts.
func (r *Registry) RegisterAll(ts []Test) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Index returns the sorted test names.
func (r *Registry) Index() []string {
	names := make([]string, 0, len(r.tests))
	for name := range r.tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named test.
func (r *Registry) Get(name string) (*Test, bool) {
	t, ok := r.tests[name]
	return t, ok
}

// Len returns the number of tests.
func (r *Registry) Len() int {
	return len(r.tests)
}

// WriteIndex writes the test names as a JSON array.
func (r *Registry) WriteIndex(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Index())
}

// WriteDir writes index.json and one <name>.json per test under dir.
func (r *Registry) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create matrix directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "index.json"))
	if err != nil {
		return err
	}
	if err := r.WriteIndex(f); err != nil {
		f.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	for _, name := range r.Index() {
		path := filepath.Join(dir, filepath.FromSlash(name)+".json")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		data, err := json.MarshalIndent(r.tests[name], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func validName(name string) bool {
	if name == "" || name == "index" {
		return false
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return false
	}
	return !slices.Contains([]byte(name), '\\')
}
