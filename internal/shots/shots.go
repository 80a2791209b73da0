// Package shots stores uploaded renders in the directory layout the index
// reads: <root>/<testID>/<platform>.png, where root is one engine's tree.
package shots

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidName is returned for test IDs or platforms that are empty
	// or would escape the root.
	ErrInvalidName = errors.New("invalid shot name")

	// ErrNotPNG is returned when the upload is not a PNG image.
	ErrNotPNG = errors.New("upload is not a PNG image")
)

// Uploader stores one render for a test and platform and returns where it
// was written.
type Uploader interface {
	Store(testID, platform string, r io.Reader) (string, error)
}

// DirStore is an Uploader writing into a directory tree.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the store's root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Path returns the file a render for testID and platform is stored at.
func (s *DirStore) Path(testID, platform string) (string, error) {
	id := filepath.FromSlash(testID)
	if testID == "" || !filepath.IsLocal(id) {
		return "", fmt.Errorf("%w: test id %q", ErrInvalidName, testID)
	}
	if platform == "" || strings.ContainsAny(platform, `/\`) || platform == "." || platform == ".." {
		return "", fmt.Errorf("%w: platform %q", ErrInvalidName, platform)
	}
	return filepath.Join(s.root, id, platform+".png"), nil
}

// Store implements Uploader. The file is replaced atomically.
func (s *DirStore) Store(testID, platform string, r io.Reader) (string, error) {
	dst, err := s.Path(testID, platform)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPNG, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create shot directory: %w", err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write shot: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write shot: %w", err)
	}
	return dst, nil
}
