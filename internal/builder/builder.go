// Package builder runs a build of an application and places the result in
// the output directory, calling the addon lifecycle hooks on the way.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomster/embuild/internal/addon"
	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/metrics"
	"github.com/tomster/embuild/internal/progress"
	"github.com/tomster/embuild/internal/tree"
)

// Lifecycle stages, as reported by Error.Stage.
const (
	StagePreBuild    = "preBuild"
	StageBuild       = "build"
	StagePostBuild   = "postBuild"
	StageCopy        = "copyToOutputPath"
	StageOutputReady = "outputReady"
)

// Project is what a Builder builds. *app.App implements it.
type Project interface {
	ToTree(additional ...fs.FS) (fs.FS, error)
	Addons() []addon.Addon
}

// Error is returned for every failed build. Err is the error of the failing
// step, as passed to the addons' BuildError hooks.
type Error struct {
	Stage string
	Err   error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %v", err.Stage, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

type Builder struct {
	project    Project
	root       string
	outputPath string
	tmpRoot    string
	progress   io.Writer
	log        *logging.Logger

	mu      sync.Mutex
	tmpDir  string
	cleaned bool
}

func New(p Project) *Builder {
	return &Builder{project: p, outputPath: "dist", log: logging.NewNop()}
}

// WithRoot sets the project root. Relative output paths are resolved
// against it.
func (b *Builder) WithRoot(root string) *Builder {
	b.root = root
	return b
}

func (b *Builder) WithOutputPath(p string) *Builder {
	b.outputPath = p
	return b
}

// WithTempDir sets the directory builds are written to before they are
// copied to the output path. Defaults to os.TempDir().
func (b *Builder) WithTempDir(dir string) *Builder {
	b.tmpRoot = dir
	return b
}

// WithProgress shows a progress bar on w while the output is written.
func (b *Builder) WithProgress(w io.Writer) *Builder {
	b.progress = w
	return b
}

func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.log = l
	return b
}

// OutputPath returns the absolute output path.
func (b *Builder) OutputPath() string {
	return b.abs(b.outputPath)
}

func (b *Builder) abs(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.root, p)
	}
	if a, err := filepath.Abs(p); err == nil {
		p = a
	}
	return filepath.Clean(p)
}

// Build runs one build. The hooks are called in the order PreBuild,
// PostBuild, OutputReady; PostBuild sees the temporary build directory,
// OutputReady the output path. If any step fails, the remaining steps are
// skipped and BuildError is called on every addon implementing it.
func (b *Builder) Build(ctx context.Context) (addon.BuildResult, error) {
	start := time.Now()
	metrics.BuildCount.Inc()
	defer func() {
		metrics.BuildDuration.Observe(time.Since(start).Seconds())
		metrics.LastBuildEnd.SetToCurrentTime()
	}()

	result, err := b.build(ctx)
	if err != nil {
		var berr *Error
		if errors.As(err, &berr) {
			metrics.BuildFailed.WithLabelValues(berr.Stage).Inc()
			b.buildError(berr.Err)
		}
		return addon.BuildResult{}, err
	}

	b.log.Infof("Built project successfully. Stored in %q (%s).", result.Directory, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (b *Builder) build(ctx context.Context) (addon.BuildResult, error) {
	addons := b.project.Addons()

	for _, ad := range addons {
		if h, ok := ad.(addon.PreBuilder); ok {
			if err := h.PreBuild(ctx); err != nil {
				return addon.BuildResult{}, &Error{Stage: StagePreBuild, Err: err}
			}
		}
	}

	dir, err := b.buildTree(ctx)
	if err != nil {
		return addon.BuildResult{}, &Error{Stage: StageBuild, Err: err}
	}

	result := addon.BuildResult{Directory: dir}
	for _, ad := range addons {
		if h, ok := ad.(addon.PostBuilder); ok {
			if err := h.PostBuild(ctx, result); err != nil {
				return addon.BuildResult{}, &Error{Stage: StagePostBuild, Err: err}
			}
		}
	}

	changes, err := b.CopyToOutputPath(ctx, dir)
	if err != nil {
		return addon.BuildResult{}, &Error{Stage: StageCopy, Err: err}
	}

	result = addon.BuildResult{Directory: b.OutputPath(), OutputChanges: changes}
	for _, ad := range addons {
		if h, ok := ad.(addon.OutputReadier); ok {
			if err := h.OutputReady(ctx, result); err != nil {
				return addon.BuildResult{}, &Error{Stage: StageOutputReady, Err: err}
			}
		}
	}

	return result, nil
}

func (b *Builder) buildError(err error) {
	for _, ad := range b.project.Addons() {
		if h, ok := ad.(addon.BuildErrorHandler); ok {
			h.BuildError(err)
		}
	}
}

// buildTree produces the output tree and writes it into a fresh temporary
// directory. The directory of the previous build is removed.
func (b *Builder) buildTree(ctx context.Context) (string, error) {
	t, err := b.project.ToTree()
	if err != nil {
		return "", err
	}

	dir, err := b.nextTempDir()
	if err != nil {
		return "", err
	}

	bar := progress.New(b.progress, "building", b.progress != nil)
	defer bar.Finish()

	if _, err := tree.Write(ctx, t, dir, tree.WriteOptions{
		OnStart: bar.AddMax,
		OnFile:  func(string) { bar.Add(1) },
	}); err != nil {
		return "", err
	}

	return dir, nil
}

func (b *Builder) nextTempDir() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cleaned {
		return "", errors.New("builder was cleaned up")
	}

	if b.tmpDir != "" {
		if err := os.RemoveAll(b.tmpDir); err != nil {
			return "", err
		}
		b.tmpDir = ""
	}

	if b.tmpRoot != "" {
		if err := os.MkdirAll(b.tmpRoot, 0o755); err != nil {
			return "", err
		}
	}

	dir, err := os.MkdirTemp(b.tmpRoot, "embuild-")
	if err != nil {
		return "", err
	}
	b.tmpDir = dir
	return dir, nil
}

// CopyToOutputPath copies dir into the output path, creating it at any
// depth. The output path is emptied first unless CanDeleteOutputPath
// refuses it. It returns the copied files.
func (b *Builder) CopyToOutputPath(ctx context.Context, dir string) ([]string, error) {
	out := b.OutputPath()

	if b.CanDeleteOutputPath(out) {
		if err := removeDir(out); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}

	files, err := tree.Write(ctx, os.DirFS(dir), out, tree.WriteOptions{})
	if err != nil {
		return nil, err
	}
	metrics.FilesWritten.Add(float64(len(files)))
	return files, nil
}

// CanDeleteOutputPath reports whether the output path p may be emptied
// before a build is copied there: it must not be the project root or any
// of its parents, which includes the filesystem root.
func (b *Builder) CanDeleteOutputPath(p string) bool {
	p = b.abs(p)

	dir := b.abs(b.root)
	for {
		if p == dir {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return true
		}
		dir = parent
	}
}

// Cleanup removes the temporary build directory. It is safe to call more
// than once; builds fail after it.
func (b *Builder) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cleaned {
		return nil
	}
	b.cleaned = true

	if b.tmpDir == "" {
		return nil
	}
	dir := b.tmpDir
	b.tmpDir = ""
	return os.RemoveAll(dir)
}

func removeDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	files, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := os.RemoveAll(filepath.Join(path, f.Name())); err != nil {
			return err
		}
	}

	return nil
}
