package app

import (
	"fmt"
	"io/fs"

	"github.com/tomster/embuild/internal/addon"
	"github.com/tomster/embuild/internal/packager"
	"github.com/tomster/embuild/internal/registry"
	"github.com/tomster/embuild/internal/tree"
)

// ToTree runs the packaging pipeline and returns the output tree. The
// additional trees are merged over the packaged application before the
// addons post-process the whole output.
func (a *App) ToTree(additional ...fs.FS) (fs.FS, error) {
	stages := []struct {
		name string
		fn   func() (fs.FS, error)
	}{
		{"templates", a.templates},
		{"styles", a.styles},
		{"tests", a.testsTree},
		{"external", a.external},
		{"public", a.public},
		{"app", a.appJavascript},
	}

	trees := make([]fs.FS, 0, len(stages))
	for _, s := range stages {
		t, err := s.fn()
		if err != nil {
			return nil, fmt.Errorf("build stage %s: %w", s.name, err)
		}
		trees = append(trees, t)
	}

	full, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "Full Application"})
	if err != nil {
		return nil, fmt.Errorf("build stage full application: %w", err)
	}

	p, err := a.Packager()
	if err != nil {
		return nil, fmt.Errorf("build stage package: %w", err)
	}

	packaged, err := p.Package(full)
	if err != nil {
		return nil, fmt.Errorf("build stage package: %w", err)
	}

	out, err := tree.Merge(append([]fs.FS{packaged}, additional...), tree.MergeOptions{Overwrite: true, Annotation: "Packaged Application"})
	if err != nil {
		return nil, fmt.Errorf("build stage additional trees: %w", err)
	}

	if out, err = a.composer.Postprocess("all", out); err != nil {
		return nil, fmt.Errorf("build stage postprocess: %w", err)
	}

	return out, nil
}

// Packager returns a packager over a snapshot of the current imports.
func (a *App) Packager() (*packager.Packager, error) {
	appConfig, err := a.cfg.AppConfigFor(a.env)
	if err != nil {
		return nil, err
	}

	return packager.New(packager.Options{
		Name:              a.name,
		AutoRun:           a.cfg.AutoRunEnabled(),
		StoreConfigInMeta: a.cfg.StoreConfigInMetaEnabled(),
		AppConfig:         appConfig,
		MinifyCSS:         a.cfg.MinifyCSSEnabled(a.env),
		MinifyCSSOptions:  a.cfg.MinifyCSS.Options,
		SourceMaps: tree.SourceMapConfig{
			Enabled:    a.cfg.SourcemapsEnabled(a.env),
			Extensions: a.cfg.SourcemapExtensions(),
		},
		Tests:      a.tests && a.trees.Tests != nil,
		Assets:     a.assets.Snapshot(),
		Transforms: a.transforms.Snapshot(),
		Hooks:      a.composer,
		Logger:     a.log,
	}), nil
}

// templates merges the addon templates with the application templates,
// including pod templates found in the app tree.
func (a *App) templates() (fs.FS, error) {
	addonTemplates, err := a.composer.Compose(addon.Templates, a.name+"/templates")
	if err != nil {
		return nil, err
	}

	appTemplates, err := a.templatesTree()
	if err != nil {
		return nil, err
	}

	return tree.Merge([]fs.FS{addonTemplates, appTemplates}, tree.MergeOptions{
		Overwrite:  true,
		Annotation: "TreeMerger (templates)",
	})
}

func (a *App) templatesTree() (fs.FS, error) {
	return a.cache.Get("templates", func() (fs.FS, error) {
		var trees []fs.FS

		if a.trees.Templates != nil {
			t, err := tree.Funnel(a.trees.Templates, tree.FunnelOptions{
				DestDir:    a.name + "/templates",
				Annotation: "Funnel: Templates",
			})
			if err != nil {
				return nil, err
			}
			trees = append(trees, t)
		}

		if a.trees.App != nil {
			t, err := a.podTemplates()
			if err != nil {
				return nil, err
			}
			trees = append(trees, t)
		}

		return tree.Merge(trees, tree.MergeOptions{Annotation: "TreeMerge (templates)"})
	})
}

func (a *App) podTemplates() (fs.FS, error) {
	var patterns []string
	for _, ext := range a.types.ExtensionsForType(registry.Template) {
		patterns = append(patterns, "**/*/template."+ext)
	}
	if len(patterns) == 0 {
		return tree.Empty(), nil
	}

	return tree.Funnel(a.trees.App, tree.FunnelOptions{
		Include:    patterns,
		Exclude:    []string{"templates/**/*"},
		DestDir:    a.name,
		Annotation: "Funnel: Pod Templates",
	})
}

func (a *App) styles() (fs.FS, error) {
	trees, err := a.composer.Trees(addon.Styles)
	if err != nil {
		return nil, err
	}

	if a.trees.Styles != nil {
		t, err := tree.Funnel(a.trees.Styles, tree.FunnelOptions{DestDir: "app/styles", Annotation: "Funnel (styles)"})
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}

	return tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "Styles"})
}

func (a *App) testsTree() (fs.FS, error) {
	trees, err := a.composer.Trees(addon.TestSupport)
	if err != nil {
		return nil, err
	}

	if a.hinting {
		lint, err := a.lintTests()
		if err != nil {
			return nil, err
		}
		trees = append(trees, lint)
	}

	trees = append(trees, a.trees.Tests)

	support, err := a.addonTestSupportTree()
	if err != nil {
		return nil, err
	}
	trees = append(trees, support)

	all, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (tests)"})
	if err != nil {
		return nil, err
	}

	return tree.Funnel(all, tree.FunnelOptions{DestDir: "tests"})
}

// lintTests runs the app, tests and templates trees through the linters
// and places their output under lint/.
func (a *App) lintTests() (fs.FS, error) {
	templates, err := a.templatesTree()
	if err != nil {
		return nil, err
	}

	inputs := []struct {
		typ string
		t   fs.FS
	}{
		{"tests", a.trees.Tests},
		{"templates", templates},
	}
	if a.trees.App != nil {
		inputs = append(inputs, struct {
			typ string
			t   fs.FS
		}{"app", a.trees.App})
	}

	var trees []fs.FS
	for _, in := range inputs {
		if in.t == nil {
			continue
		}
		linted, err := a.composer.Lint(in.typ, in.t)
		if err != nil {
			return nil, err
		}
		t, err := tree.Funnel(linted, tree.FunnelOptions{
			DestDir:    "lint",
			Annotation: fmt.Sprintf("Funnel (lint %s)", in.typ),
		})
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}

	return tree.Merge(trees, tree.MergeOptions{Overwrite: true})
}

func (a *App) addonTestSupportTree() (fs.FS, error) {
	return a.cache.Get("addon-test-support", func() (fs.FS, error) {
		return a.composer.Compose(addon.AddonTestSupport, "addon-test-support")
	})
}

func (a *App) addonTree() (fs.FS, error) {
	return a.cache.Get("addon-tree", func() (fs.FS, error) {
		return a.composer.Compose(addon.AddonTree, "addon-tree-output")
	})
}

// nodeModules places each imported package under node_modules/<name>/.
func (a *App) nodeModules() (fs.FS, error) {
	return a.cache.Get("node-modules", func() (fs.FS, error) {
		var trees []fs.FS
		for _, m := range a.assets.Snapshot().NodeModules {
			t, err := tree.Funnel(tree.Dir(m.Path), tree.FunnelOptions{
				DestDir:    "node_modules/" + m.Name,
				Annotation: fmt.Sprintf("Funnel (node_modules/%s)", m.Name),
			})
			if err != nil {
				return nil, err
			}
			trees = append(trees, t)
		}
		return tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (node_modules)"})
	})
}

// external gathers what does not belong to the application itself: vendor
// files of the app and the addons, the addon tree and imported packages.
func (a *App) external() (fs.FS, error) {
	return a.cache.Get("external", func() (fs.FS, error) {
		vendorTrees, err := a.composer.Trees(addon.Vendor)
		if err != nil {
			return nil, err
		}
		vendorTrees = append(vendorTrees, a.trees.Vendor)

		merged, err := tree.Merge(vendorTrees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (vendor)"})
		if err != nil {
			return nil, err
		}

		p, err := a.Packager()
		if err != nil {
			return nil, err
		}
		vendor, err := p.PackageVendor(merged)
		if err != nil {
			return nil, err
		}

		addons, err := a.addonTree()
		if err != nil {
			return nil, err
		}

		modules, err := a.nodeModules()
		if err != nil {
			return nil, err
		}

		return tree.Merge([]fs.FS{modules, vendor, addons}, tree.MergeOptions{
			Overwrite:  true,
			Annotation: "TreeMerger (ExternalTree)",
		})
	})
}

func (a *App) public() (fs.FS, error) {
	trees, err := a.composer.Trees(addon.Public)
	if err != nil {
		return nil, err
	}
	trees = append(trees, a.trees.Public)

	merged, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "Public"})
	if err != nil {
		return nil, err
	}

	return tree.Funnel(merged, tree.FunnelOptions{DestDir: "public"})
}

// appJavascript merges the addon app trees and the app tree under <name>/.
func (a *App) appJavascript() (fs.FS, error) {
	trees, err := a.composer.Trees(addon.App)
	if err != nil {
		return nil, err
	}
	trees = append(trees, a.trees.App)

	merged, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (app)"})
	if err != nil {
		return nil, err
	}

	return tree.Funnel(merged, tree.FunnelOptions{DestDir: a.name, Annotation: "ProcessedAppTree"})
}
