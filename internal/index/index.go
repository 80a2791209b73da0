// Package index builds the content-addressed screenshot database a report
// run works from.
//
// Ingestion walks one or more screenshot trees, hashes every file whose path
// carries an identity tuple, and records it in two indexes:
//   - GroupedIndex: model -> browser -> hash -> paths, for the report grid
//   - IdentityIndex: model -> browser -> variant -> engine, for the
//     integrity check
//
// An Index is a single-writer structure. Ingestion may hash files on a
// worker pool, but results are always merged in walk order so the first-path
// and last-write rules resolve the same way on every run.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"shotcheck/internal/artifact"
)

// ErrNotDirectory is wrapped in a FilesystemError when an ingestion root is
// a file.
var ErrNotDirectory = errors.New("index: not a directory")

// Entry is one ingested screenshot.
type Entry struct {
	Key  artifact.Key
	Path string
	Hash string
	Size int64
}

// Stats counts what an Index has ingested.
type Stats struct {
	Files     int
	Skipped   int
	Malformed int
	Replaced  int
	Bytes     int64
}

// Option configures an Index.
type Option func(*Index)

// WithHasher sets the content hasher. Defaults to sha256.
func WithHasher(h *artifact.Hasher) Option {
	return func(x *Index) { x.hasher = h }
}

// WithWorkers sets how many files are hashed concurrently during
// IngestDirectory. Values below 2 hash sequentially.
func WithWorkers(n int) Option {
	return func(x *Index) { x.workers = n }
}

// WithLenientPaths makes files without an identity tuple a logged skip
// instead of a fatal error.
func WithLenientPaths(lenient bool) Option {
	return func(x *Index) { x.lenient = lenient }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Index) { x.logger = l }
}

// Index is the screenshot database for one report run.
type Index struct {
	hasher  *artifact.Hasher
	workers int
	lenient bool
	logger  *slog.Logger

	grouped  *GroupedIndex
	identity *IdentityIndex

	models   map[string]struct{}
	browsers map[string]struct{}
	engines  map[string]struct{}

	stats Stats
}

// New creates an empty Index.
func New(opts ...Option) *Index {
	x := &Index{
		hasher:   artifact.NewHasher(artifact.HashSHA256),
		workers:  1,
		logger:   slog.Default(),
		grouped:  NewGroupedIndex(),
		identity: NewIdentityIndex(),
		models:   make(map[string]struct{}),
		browsers: make(map[string]struct{}),
		engines:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Grouped returns the grid index.
func (x *Index) Grouped() *GroupedIndex { return x.grouped }

// Identity returns the identity index.
func (x *Index) Identity() *IdentityIndex { return x.identity }

// Stats returns ingestion counters.
func (x *Index) Stats() Stats { return x.stats }

// Models returns every model observed, sorted.
func (x *Index) Models() []string { return sortedKeys(x.models) }

// Browsers returns every browser observed, sorted.
func (x *Index) Browsers() []string { return sortedKeys(x.browsers) }

// Engines returns every engine observed, sorted.
func (x *Index) Engines() []string { return sortedKeys(x.engines) }

// IngestFile hashes and records one file. Marker files are ignored.
func (x *Index) IngestFile(path string) error {
	key, ok, err := x.keyFor(path)
	if err != nil || !ok {
		return err
	}

	hash, size, err := x.hasher.HashFile(path)
	if err != nil {
		return err
	}

	x.add(Entry{Key: key, Path: path, Hash: hash, Size: size})
	return nil
}

// IngestDirectory walks root breadth-first and ingests every regular file
// below it. Any read failure aborts the walk; the index may then hold a
// partial result and should be discarded.
func (x *Index) IngestDirectory(ctx context.Context, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return &artifact.FilesystemError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return &artifact.FilesystemError{Op: "walk", Path: root, Err: ErrNotDirectory}
	}

	pending, err := x.walk(ctx, root)
	if err != nil {
		return err
	}

	entries, err := x.hashAll(ctx, pending)
	if err != nil {
		return err
	}

	for _, e := range entries {
		x.add(e)
	}

	x.logger.Debug("directory ingested",
		slog.String("root", root),
		slog.Int("files", len(entries)),
	)
	return nil
}

// walk lists the files under root in breadth-first order, keyed and
// filtered but not yet hashed.
func (x *Index) walk(ctx context.Context, root string) ([]Entry, error) {
	var pending []Entry
	queue := []string{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := queue[0]
		queue = queue[1:]

		children, err := os.ReadDir(dir)
		if err != nil {
			return nil, &artifact.FilesystemError{Op: "readdir", Path: dir, Err: err}
		}

		for _, child := range children {
			full := filepath.Join(dir, child.Name())

			isDir, isFile, err := classify(full, child)
			if err != nil {
				return nil, err
			}
			switch {
			case isDir:
				queue = append(queue, full)
			case isFile:
				key, ok, err := x.keyFor(full)
				if err != nil {
					return nil, err
				}
				if ok {
					pending = append(pending, Entry{Key: key, Path: full})
				}
			}
		}
	}

	return pending, nil
}

// hashAll fills in Hash and Size for every entry, preserving order.
func (x *Index) hashAll(ctx context.Context, entries []Entry) ([]Entry, error) {
	if x.workers < 2 {
		for i := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h, size, err := x.hasher.HashFile(entries[i].Path)
			if err != nil {
				return nil, err
			}
			entries[i].Hash, entries[i].Size = h, size
		}
		return entries, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)

	for i := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, size, err := x.hasher.HashFile(entries[i].Path)
			if err != nil {
				return err
			}
			entries[i].Hash, entries[i].Size = h, size
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// keyFor extracts the identity tuple, applying the malformed-path policy.
func (x *Index) keyFor(path string) (artifact.Key, bool, error) {
	key, ok, err := artifact.ExtractKey(path)
	if err != nil {
		var mpe *artifact.MalformedPathError
		if x.lenient && errors.As(err, &mpe) {
			x.stats.Malformed++
			x.logger.Warn("skipping file without identity", slog.String("path", path))
			return artifact.Key{}, false, nil
		}
		return artifact.Key{}, false, err
	}
	if !ok {
		x.stats.Skipped++
		x.logger.Debug("skipping marker file", slog.String("path", path))
	}
	return key, ok, nil
}

func (x *Index) add(e Entry) {
	k := e.Key
	x.grouped.Add(k.Model, k.Browser, e.Hash, e.Path)
	if x.identity.Put(k.Model, k.Browser, k.Variant, k.Engine, Ref{Hash: e.Hash, Path: e.Path}) {
		x.stats.Replaced++
		x.logger.Debug("identity overwritten",
			slog.String("key", k.String()),
			slog.String("path", e.Path),
		)
	}

	x.models[k.Model] = struct{}{}
	x.browsers[k.Browser] = struct{}{}
	x.engines[k.Engine] = struct{}{}

	x.stats.Files++
	x.stats.Bytes += e.Size
}

// classify resolves symlinks so linked files are ingested but linked
// directories are not followed.
func classify(full string, d fs.DirEntry) (isDir, isFile bool, err error) {
	switch {
	case d.IsDir():
		return true, false, nil
	case d.Type().IsRegular():
		return false, true, nil
	case d.Type()&fs.ModeSymlink != 0:
		info, err := os.Stat(full)
		if err != nil {
			return false, false, &artifact.FilesystemError{Op: "stat", Path: full, Err: err}
		}
		return false, info.Mode().IsRegular(), nil
	default:
		return false, false, nil
	}
}

func sortedKeys(m map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(m))
}

// String summarises the index for logs.
func (s Stats) String() string {
	return fmt.Sprintf("files=%d skipped=%d malformed=%d replaced=%d bytes=%d",
		s.Files, s.Skipped, s.Malformed, s.Replaced, s.Bytes)
}
