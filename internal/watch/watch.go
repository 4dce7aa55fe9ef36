// Package watch rebuilds a project whenever its input directories change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/pool"
	"github.com/tomster/embuild/internal/tree"
)

const (
	taskName        = "build"
	defaultDebounce = 100 * time.Millisecond
)

var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/tmp/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// Options configure a Watcher.
type Options struct {
	// Dirs are the directories watched recursively. Missing directories are
	// skipped.
	Dirs []string

	// Ignore are path patterns, relative to the watched directory, whose
	// changes never trigger a build. They add to the default ignores.
	Ignore []string

	// Debounce is the quiet period after the last change before a build
	// starts.
	Debounce time.Duration

	// Build runs one build. Its errors are logged; the watcher keeps
	// running.
	Build func(ctx context.Context) error

	Logger *logging.Logger
}

// Watcher runs Build once, then again after every burst of changes. Builds
// never overlap; changes seen during a build cause exactly one rebuild.
type Watcher struct {
	opts    Options
	fsw     *fsnotify.Watcher
	ignores tree.Globs
	roots   []string
	log     *logging.Logger
}

func New(opts Options) (*Watcher, error) {
	if opts.Build == nil {
		return nil, errors.New("watch: missing build function")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	ignores, err := tree.CompileGlobs(append(append([]string{}, defaultIgnores...), opts.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{opts: opts, fsw: fsw, ignores: ignores, log: log}

	for _, dir := range opts.Dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ctx, cancel := context.WithCancel(ctx)
	p := pool.New(ctx, 1)
	defer func() {
		cancel()
		p.Wait()
	}()

	p.Add(taskName, func(ctx context.Context) time.Time {
		if err := w.opts.Build(ctx); err != nil {
			w.log.Errorf("Build failed: %v", err)
		}
		return pool.Idle()
	})

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if w.ignored(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.log.Warnf("%v", err)
					}
				}
			}

			w.log.Debugf("file changed: %s", evt.Name)
			if err := p.TriggerAt(taskName, time.Now().Add(w.opts.Debounce)); err != nil {
				return err
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) {
				return fmt.Errorf("watch: %w", err)
			}
			w.log.Warnf("watch: %v", err)
		}
	}
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return nil
	}

	root := ""
	for _, r := range w.roots {
		if rel, err := filepath.Rel(r, abs); err == nil && filepath.IsLocal(rel) {
			root = r
			break
		}
	}
	if root == "" {
		root = abs
		w.roots = append(w.roots, abs)
	}

	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warnf("watch: skipping %s: %v", p, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add %s: %w", p, err)
		}
		return nil
	})
}

// ignored matches p, relative to the watched directory containing it,
// against the ignore patterns.
func (w *Watcher) ignored(p string) bool {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r, p)
		if err != nil || !filepath.IsLocal(rel) {
			continue
		}
		rel = filepath.ToSlash(rel)
		return w.ignores.Match(rel) || w.ignores.Match(rel+"/")
	}
	return false
}
