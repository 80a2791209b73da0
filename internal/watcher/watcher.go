// Package watcher monitors screenshot trees and reports batches of changes
// once the trees have been quiet for a while.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"shotcheck/internal/artifact"
)

// Batch is the set of paths that changed since the previous batch.
type Batch struct {
	Paths []string
	At    time.Time
}

// Watcher monitors directory trees for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	roots     []string
	quiet     time.Duration
	tick      time.Duration

	// path -> time of last change, plus the latest change overall
	pending    map[string]time.Time
	lastChange time.Time
	ignored    []string
	stateMu    sync.Mutex

	events chan Batch
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher over roots that emits a Batch after quiet has
// passed without further changes.
func New(roots []string, quiet time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	tick := quiet / 4
	if tick > 250*time.Millisecond {
		tick = 250 * time.Millisecond
	}
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		roots:     roots,
		quiet:     quiet,
		tick:      tick,
		pending:   make(map[string]time.Time),
		events:    make(chan Batch, 4),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Ignore drops changes to each path, to temporary siblings written while
// replacing it and, for directories, to everything below it. Call before
// Start.
func (w *Watcher) Ignore(paths ...string) error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		w.ignored = append(w.ignored, abs)
	}
	return nil
}

func (w *Watcher) isIgnored(path string) bool {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	for _, ig := range w.ignored {
		rest, ok := strings.CutPrefix(path, ig)
		if !ok {
			continue
		}
		if rest == "" || rest[0] == filepath.Separator || isTempSuffix(rest) {
			return true
		}
	}
	return false
}

// isTempSuffix matches the siblings atomic writers create next to a file:
// "<name>.tmp" and the random numeric suffix of os.CreateTemp.
func isTempSuffix(rest string) bool {
	if rest == ".tmp" {
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Events returns the channel of change batches.
func (w *Watcher) Events() <-chan Batch {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching every directory under each root.
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: not a directory", abs)
		}
		if err := w.addTree(abs, false); err != nil {
			return err
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop shuts down the watcher and closes its channels.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// Run starts the watcher and calls fn for every batch until ctx is done.
// Errors from the underlying watcher are passed to onErr when it is
// non-nil.
func (w *Watcher) Run(ctx context.Context, fn func(Batch), onErr func(error)) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-w.events:
			fn(b)
		case err := <-w.errors:
			if onErr != nil {
				onErr(err)
			}
		}
	}
}

// addTree watches dir and every directory below it. When markPending is
// set, files already present are recorded as changed; this covers files
// written into a new directory before its watch was in place.
func (w *Watcher) addTree(dir string, markPending bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if w.isIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fsWatcher.Add(path)
		}
		if markPending {
			w.touch(path, time.Now())
		}
		return nil
	})
}

func (w *Watcher) touch(path string, at time.Time) {
	if artifact.IsMarker(filepath.Base(path)) || w.isIgnored(path) {
		return
	}
	w.stateMu.Lock()
	w.pending[path] = at
	w.lastChange = at
	w.stateMu.Unlock()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name, true); err != nil {
						w.sendErr(err)
					}
					continue
				}
			}
			w.touch(event.Name, time.Now())

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			if b, ok := w.takeQuiet(now); ok {
				select {
				case w.events <- b:
				case <-w.done:
					return
				}
			}
		}
	}
}

// takeQuiet drains pending changes if nothing changed for the quiet period.
func (w *Watcher) takeQuiet(now time.Time) (Batch, bool) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if len(w.pending) == 0 || now.Sub(w.lastChange) < w.quiet {
		return Batch{}, false
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	clear(w.pending)

	return Batch{Paths: paths, At: now}, true
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// WatchedRoots returns the roots being watched.
func (w *Watcher) WatchedRoots() []string {
	return w.roots
}

// Pending returns the number of changed paths not yet emitted.
func (w *Watcher) Pending() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.pending)
}
