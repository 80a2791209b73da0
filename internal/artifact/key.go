// Package artifact identifies screenshot artifacts by their storage path and
// hashes their contents.
//
// Screenshots are stored as .../<engine>/<model>/<variant>/<browser>.png. The
// identity of a file is read from the path backwards, so any prefix (the root
// directory a run was written to) is ignored.
package artifact

import (
	"path"
	"path/filepath"
	"strings"
)

// markerNames are files the OS drops into directories that are never
// screenshots.
var markerNames = map[string]struct{}{
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
}

// IsMarker reports whether name is a reserved filesystem marker file.
func IsMarker(name string) bool {
	_, ok := markerNames[name]
	return ok
}

// Key is the identity tuple of one screenshot.
type Key struct {
	Engine  string `json:"engine"`
	Model   string `json:"model"`
	Variant string `json:"variant"`
	// Browser is the final path segment, extension included.
	Browser string `json:"browser"`
}

// BrowserName returns Browser without its file extension.
func (k Key) BrowserName() string {
	return strings.TrimSuffix(k.Browser, path.Ext(k.Browser))
}

// Tag is the engine/variant label shown next to a thumbnail.
func (k Key) Tag() string {
	return k.Engine + "/" + k.Variant
}

// String formats the key the way violations print it.
func (k Key) String() string {
	return "model=" + k.Model + " browser=" + k.Browser + " variant=" + k.Variant + " engine=" + k.Engine
}

// ExtractKey parses the identity tuple out of p. It returns ok=false for
// marker files, and a *MalformedPathError when p has fewer than four
// segments.
func ExtractKey(p string) (key Key, ok bool, err error) {
	bits := strings.Split(filepath.ToSlash(p), "/")

	if IsMarker(bits[len(bits)-1]) {
		return Key{}, false, nil
	}

	// drop empty segments so "a//b" and a leading "/" don't shift positions
	segs := bits[:0]
	for _, b := range bits {
		if b != "" {
			segs = append(segs, b)
		}
	}

	n := len(segs)
	if n < 4 {
		return Key{}, false, &MalformedPathError{Path: p, Segments: n}
	}

	return Key{
		Browser: segs[n-1],
		Variant: segs[n-2],
		Model:   segs[n-3],
		Engine:  segs[n-4],
	}, true, nil
}
