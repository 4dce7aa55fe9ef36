// Package app is the build context of an application: it owns the asset,
// transform and preprocessor registries, includes the addons, and turns
// everything into the packaged output tree.
package app

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/tomster/embuild/internal/addon"
	"github.com/tomster/embuild/internal/assets"
	"github.com/tomster/embuild/internal/config"
	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/memo"
	"github.com/tomster/embuild/internal/registry"
	"github.com/tomster/embuild/internal/transforms"
	"github.com/tomster/embuild/internal/tree"
)

// Trees are the application's input trees. A nil tree is absent.
type Trees struct {
	App       fs.FS
	Tests     fs.FS
	Styles    fs.FS
	Templates fs.FS
	Vendor    fs.FS
	Public    fs.FS
}

// Options configure New.
type Options struct {
	Config *config.Root
	// Environment overrides the environment of the configuration.
	Environment string
	// TestCommand is set when the build runs for a test command; it turns
	// tests and hinting on in production.
	TestCommand bool
	// Addons are the addons discovered for the project, in order. The
	// addons listed in the configuration are appended to them.
	Addons []addon.Addon
	// Trees replaces the input trees read from the project directory.
	Trees *Trees

	Registry *registry.Registry
	Logger   *logging.Logger
}

// App is the build context. Configuration (New, Import) is single threaded.
type App struct {
	cfg     *config.Root
	name    string
	env     string
	tests   bool
	hinting bool
	trees   Trees
	dirs    []string

	types      *registry.Registry
	assets     *assets.Registry
	transforms *transforms.Registry
	importer   *assets.Importer
	composer   *addon.Composer

	cache memo.Table[fs.FS]
	log   *logging.Logger
}

// New configures an application: it imports the vendor files, includes the
// addons and performs the configured imports, in that order.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("missing configuration")
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	env := cfg.EnvironmentOr(opts.Environment)

	types := opts.Registry
	if types == nil {
		types = registry.Default()
	}

	a := &App{
		cfg:     cfg,
		name:    cfg.Name,
		env:     env,
		tests:   cfg.TestsEnabled(env, opts.TestCommand),
		hinting: cfg.HintingEnabled(env, opts.TestCommand),
		types:   types,
		log:     log,
	}

	if opts.Trees != nil {
		a.trees = *opts.Trees
	} else {
		a.loadTrees()
	}

	a.assets = assets.NewRegistry(log)
	a.transforms = transforms.NewRegistry(log)
	if err := a.transforms.Register(transforms.BuiltinOwner, "amd", transforms.AMD); err != nil {
		return nil, err
	}
	a.importer = assets.NewImporter(a.assets, a.types, a.transforms, assets.NewResolver(cfg.Root), env, log)

	for _, imp := range cfg.VendorImports() {
		if err := a.importConfigured(imp); err != nil {
			return nil, fmt.Errorf("vendor_files: %w", err)
		}
	}

	all, err := a.loadAddons(opts.Addons)
	if err != nil {
		return nil, err
	}

	addons, err := addon.Filter(all, cfg.Addons.Include, cfg.Addons.Exclude)
	if err != nil {
		return nil, err
	}
	a.composer = addon.NewComposer(addons)

	for _, ad := range addons {
		if s, ok := ad.(addon.RegistrySetup); ok {
			s.SetupRegistry(a.types)
		}
	}

	for _, ad := range addons {
		if p, ok := ad.(addon.TransformProvider); ok {
			if err := a.transforms.RegisterAll(ad.Name(), p.ImportTransforms()); err != nil {
				return nil, err
			}
		}
	}

	for _, ad := range addons {
		if i, ok := ad.(addon.Includer); ok {
			if err := i.Included(a); err != nil {
				return nil, fmt.Errorf("addon %q: included: %w", ad.Name(), err)
			}
		}
	}

	for _, imp := range cfg.Imports {
		if err := a.importConfigured(imp); err != nil {
			return nil, fmt.Errorf("imports: %w", err)
		}
	}

	return a, nil
}

func (a *App) loadTrees() {
	paths := a.cfg.TreePaths()
	load := func(p string) fs.FS {
		full := filepath.Join(a.cfg.Root, filepath.FromSlash(p))
		t := tree.Dir(full)
		if t != nil {
			a.dirs = append(a.dirs, full)
		}
		return t
	}

	a.trees = Trees{
		App:       load(paths.App),
		Tests:     load(paths.Tests),
		Styles:    load(paths.Styles),
		Templates: load(paths.Templates),
		Vendor:    load(paths.Vendor),
		Public:    load(paths.Public),
	}
}

func (a *App) loadAddons(discovered []addon.Addon) ([]addon.Addon, error) {
	all := append([]addon.Addon{}, discovered...)

	for _, p := range a.cfg.Addons.Paths {
		var imports []addon.Import
		for _, imp := range p.Imports {
			opts, err := imp.Options()
			if err != nil {
				return nil, fmt.Errorf("addon %s: %w", p.Path, err)
			}
			imports = append(imports, addon.Import{Spec: imp.Spec(), Options: opts})
		}

		root := p.Path
		if !filepath.IsAbs(root) {
			root = filepath.Join(a.cfg.Root, filepath.FromSlash(root))
		}

		d, err := addon.NewDir(root, addon.DirOptions{Name: p.Name, Enabled: p.Enabled, Imports: imports})
		if err != nil {
			return nil, err
		}
		all = append(all, d)
		a.dirs = append(a.dirs, root)
	}

	return all, nil
}

func (a *App) importConfigured(imp config.Import) error {
	opts, err := imp.Options()
	if err != nil {
		return err
	}
	return a.Import(imp.Spec(), opts)
}

func (a *App) Name() string        { return a.name }
func (a *App) Environment() string { return a.env }

func (a *App) IsProduction() bool {
	return config.IsProduction(a.env)
}

// TestsEnabled reports whether tests are packaged.
func (a *App) TestsEnabled() bool { return a.tests }

// HintingEnabled reports whether lint tests are generated.
func (a *App) HintingEnabled() bool { return a.hinting }

// Addons returns the addons taking part in the build, in order.
func (a *App) Addons() []addon.Addon {
	return a.composer.Addons()
}

// WatchedDirs returns the project directories the input trees are read
// from, including the roots of the configured addons.
func (a *App) WatchedDirs() []string {
	return append([]string{}, a.dirs...)
}

// Assets returns a snapshot of the imports recorded so far.
func (a *App) Assets() assets.View {
	return a.assets.Snapshot()
}

// Transforms returns a snapshot of the registered import transforms.
func (a *App) Transforms() []transforms.Entry {
	return a.transforms.Snapshot()
}

// Import imports a file into the application, see assets.Importer.
func (a *App) Import(spec assets.Spec, opts assets.ImportOptions) error {
	return a.importer.Import(spec, opts)
}
