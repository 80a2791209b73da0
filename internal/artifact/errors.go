package artifact

import (
	"errors"
	"fmt"
)

// ErrUnknownHash is returned when a hash algorithm name is not recognised.
var ErrUnknownHash = errors.New("artifact: unknown hash algorithm")

// MalformedPathError is returned when a path does not carry the
// engine/model/variant/browser segments.
type MalformedPathError struct {
	Path     string
	Segments int
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("artifact: malformed path %q: need 4 segments (engine/model/variant/browser), got %d", e.Path, e.Segments)
}

// FilesystemError is returned when an ingestion root or file cannot be read.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("artifact: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
