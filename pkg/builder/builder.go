package builder

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/tomster/embuild/internal/addon"
	"github.com/tomster/embuild/internal/app"
	ibuilder "github.com/tomster/embuild/internal/builder"
	"github.com/tomster/embuild/internal/config"
	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/watch"
)

type (
	// Config is the parsed project configuration.
	Config = config.Root

	// Addon is implemented by every addon. The optional hooks an addon may
	// implement are listed below.
	Addon = addon.Addon

	Host              = addon.Host
	Includer          = addon.Includer
	TreeProvider      = addon.TreeProvider
	Preprocessor      = addon.Preprocessor
	Postprocessor     = addon.Postprocessor
	PreBuilder        = addon.PreBuilder
	PostBuilder       = addon.PostBuilder
	OutputReadier     = addon.OutputReadier
	BuildErrorHandler = addon.BuildErrorHandler

	// BuildResult is returned by Build and passed to the addon hooks.
	BuildResult = addon.BuildResult

	// Error is returned for failed builds.
	Error = ibuilder.Error

	Logger = logging.Logger
)

// LoadConfig parses and deep-merges the configuration files, in order.
// Relative project roots are resolved against the directory of the first
// file.
func LoadConfig(files ...string) (*Config, error) {
	switch len(files) {
	case 0:
		return nil, errors.New("no configuration files")
	case 1:
		return config.ParseFile(files[0])
	}

	bs, err := config.Merge(files, false)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Parse(bs)
	if err != nil {
		return nil, err
	}
	cfg.ResolveRoot(filepath.Dir(files[0]))
	return cfg, nil
}

// Options configure Load.
type Options struct {
	Config *Config

	// Environment overrides the environment of the configuration.
	Environment string

	// TestCommand turns tests and hinting on regardless of the environment.
	TestCommand bool

	// OutputPath is where builds are placed, relative to the project root.
	// Defaults to dist.
	OutputPath string

	// Addons take part in the build before the addons of the configuration.
	Addons []Addon

	// Progress shows a progress bar on the writer while files are written.
	Progress io.Writer

	Logger *Logger
}

// Project is a loaded project. It is not safe for concurrent use.
type Project struct {
	opts    Options
	current *app.App
	fresh   bool
	builder *ibuilder.Builder
}

// Load configures the project. Configuration errors, such as unknown
// addons or invalid imports, are reported here.
func Load(opts Options) (*Project, error) {
	if opts.Config == nil {
		return nil, errors.New("missing configuration")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	p := &Project{opts: opts}
	if err := p.reload(); err != nil {
		return nil, err
	}
	p.fresh = true

	b := ibuilder.New(p).
		WithRoot(opts.Config.Root).
		WithLogger(opts.Logger)
	if opts.OutputPath != "" {
		b = b.WithOutputPath(opts.OutputPath)
	}
	if opts.Progress != nil {
		b = b.WithProgress(opts.Progress)
	}
	p.builder = b

	return p, nil
}

func (p *Project) reload() error {
	a, err := app.New(app.Options{
		Config:      p.opts.Config,
		Environment: p.opts.Environment,
		TestCommand: p.opts.TestCommand,
		Addons:      p.opts.Addons,
		Logger:      p.opts.Logger,
	})
	if err != nil {
		return err
	}
	p.current = a
	return nil
}

// Name is the application name.
func (p *Project) Name() string { return p.current.Name() }

// Environment is the build environment.
func (p *Project) Environment() string { return p.current.Environment() }

// OutputPath is the absolute output path.
func (p *Project) OutputPath() string { return p.builder.OutputPath() }

// Addons is part of the interface the internal builder builds.
func (p *Project) Addons() []Addon { return p.current.Addons() }

// ToTree is part of the interface the internal builder builds.
func (p *Project) ToTree(additional ...fs.FS) (fs.FS, error) {
	return p.current.ToTree(additional...)
}

// Tree returns the packaged output without writing it.
func (p *Project) Tree() (fs.FS, error) {
	if err := p.refresh(); err != nil {
		return nil, err
	}
	return p.current.ToTree()
}

// Build builds the project into the output path. Every build after the
// first reads the input trees again.
func (p *Project) Build(ctx context.Context) (BuildResult, error) {
	if err := p.refresh(); err != nil {
		return BuildResult{}, err
	}
	return p.builder.Build(ctx)
}

func (p *Project) refresh() error {
	if p.fresh {
		p.fresh = false
		return nil
	}
	return p.reload()
}

// Watch builds the project, then rebuilds it whenever one of its input
// directories changes, until ctx is cancelled. Failed builds are logged.
// The finished callback, if not nil, is called after every successful
// build.
func (p *Project) Watch(ctx context.Context, finished func(BuildResult)) error {
	w, err := watch.New(watch.Options{
		Dirs:   p.current.WatchedDirs(),
		Logger: p.opts.Logger,
		Build: func(ctx context.Context) error {
			result, err := p.Build(ctx)
			if err == nil && finished != nil {
				finished(result)
			}
			return err
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Cleanup removes temporary build output. The project cannot build
// afterwards.
func (p *Project) Cleanup() error {
	return p.builder.Cleanup()
}
