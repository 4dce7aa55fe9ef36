// Package packager turns the merged application tree into the files that
// are written to the output directory: concatenated scripts and styles, the
// processed index pages, public files and imported assets.
package packager

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/tomster/embuild/internal/assets"
	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/transforms"
	"github.com/tomster/embuild/internal/tree"
)

// Processor runs the addon pre and post processing hooks.
type Processor interface {
	Preprocess(typ string, t fs.FS) (fs.FS, error)
	Postprocess(typ string, t fs.FS) (fs.FS, error)
}

// Options configure a Packager.
type Options struct {
	Name              string
	AutoRun           bool
	StoreConfigInMeta bool
	// AppConfig is the runtime configuration of the application.
	AppConfig  map[string]any
	MinifyCSS  bool
	// MinifyCSSOptions are decoded with DecodeCSSOptions.
	MinifyCSSOptions map[string]any
	SourceMaps       tree.SourceMapConfig
	// Tests enables PackageTests in Package.
	Tests bool

	Assets     assets.View
	Transforms []transforms.Entry
	Hooks      Processor
	Logger     *logging.Logger
}

// Packager packages a merged application tree. It holds no mutable state.
type Packager struct {
	opts Options
	log  *logging.Logger
}

func New(opts Options) *Packager {
	if opts.Hooks == nil {
		opts.Hooks = nopProcessor{}
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Packager{opts: opts, log: log}
}

// AppJSFile is the output file of the application scripts.
func (p *Packager) AppJSFile() string {
	return "/assets/" + p.opts.Name + ".js"
}

// AppCSSFile is the output file of app/styles/app.css.
func (p *Packager) AppCSSFile() string {
	return "/assets/" + p.opts.Name + ".css"
}

// Package runs every packaging step over full and merges the results.
func (p *Packager) Package(full fs.FS) (fs.FS, error) {
	steps := []struct {
		name string
		fn   func(fs.FS) (fs.FS, error)
	}{
		{"index", p.ProcessIndex},
		{"javascript", p.PackageJavascript},
		{"styles", p.PackageStyles},
		{"additional assets", p.ImportAdditionalAssets},
		{"public", p.PackagePublic},
	}
	if p.opts.Tests {
		steps = append(steps, struct {
			name string
			fn   func(fs.FS) (fs.FS, error)
		}{"tests", p.PackageTests})
	}

	trees := make([]fs.FS, 0, len(steps))
	for _, step := range steps {
		p.log.Debugf("packaging %s", step.name)
		t, err := step.fn(full)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", step.name, err)
		}
		trees = append(trees, t)
	}

	return tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "Application Dist"})
}

// PackageVendor places the merged vendor trees under vendor/.
func (p *Packager) PackageVendor(t fs.FS) (fs.FS, error) {
	return tree.Funnel(t, tree.FunnelOptions{DestDir: "vendor", Annotation: "Funnel (vendor)"})
}

// PackagePublic copies public/ to the root of the output.
func (p *Packager) PackagePublic(full fs.FS) (fs.FS, error) {
	return tree.Funnel(full, tree.FunnelOptions{SrcDir: "public", Annotation: "Funnel (public)"})
}

// ImportAdditionalAssets copies every imported file that is neither a
// script nor a style to its destination directory.
func (p *Packager) ImportAdditionalAssets(full fs.FS) (fs.FS, error) {
	var trees []fs.FS
	for _, a := range p.opts.Assets.OtherAssets {
		t, err := tree.Funnel(full, tree.FunnelOptions{
			SrcDir:     a.Src,
			Include:    []string{a.File},
			DestDir:    a.Dest,
			Annotation: fmt.Sprintf("Funnel (%s/%s)", a.Src, a.File),
		})
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}

	return tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (additional assets)"})
}

// PackageJavascript applies the import transforms and the addon js hooks,
// then concatenates the application scripts and every script bundle.
func (p *Packager) PackageJavascript(full fs.FS) (fs.FS, error) {
	full, err := p.applyTransforms(full)
	if err != nil {
		return nil, err
	}

	if full, err = p.opts.Hooks.Preprocess("js", full); err != nil {
		return nil, err
	}

	footer, err := p.appFooter()
	if err != nil {
		return nil, err
	}

	trees := []fs.FS{p.concat(full, tree.ConcatOptions{
		OutputFile: p.AppJSFile(),
		InputFiles: []string{p.opts.Name + "/**/*.js"},
		Footer:     footer,
		Annotation: "Concat: App",
	})}

	for _, b := range p.opts.Assets.Scripts {
		trees = append(trees, p.concat(full, tree.ConcatOptions{
			OutputFile: b.OutputFile,
			InputFiles: b.Files,
			Annotation: "Concat: Vendor " + b.OutputFile,
		}))
	}

	merged, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (js)"})
	if err != nil {
		return nil, err
	}

	return p.opts.Hooks.Postprocess("js", merged)
}

// applyTransforms runs each transform over exactly the files routed to it
// and lays the result over full.
func (p *Packager) applyTransforms(full fs.FS) (fs.FS, error) {
	trees := []fs.FS{full}
	for _, e := range p.opts.Transforms {
		if len(e.Files) == 0 {
			continue
		}

		input, err := tree.Funnel(full, tree.FunnelOptions{
			Include:    e.Files,
			Annotation: fmt.Sprintf("Funnel (transform %s)", e.Name),
		})
		if err != nil {
			return nil, err
		}

		out, err := e.Callback(input, e.Options)
		if err != nil {
			return nil, fmt.Errorf("transform %q from addon %q: %w", e.Name, e.Addon, err)
		}
		trees = append(trees, out)
	}

	if len(trees) == 1 {
		return full, nil
	}
	return tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (custom transforms)"})
}

func (p *Packager) appFooter() (string, error) {
	var footer string

	if !p.opts.StoreConfigInMeta {
		bs, err := json.Marshal(p.appConfig())
		if err != nil {
			return "", err
		}
		footer += fmt.Sprintf("\ndefine(%q, [], function () {\n  return %s;\n});\n", p.opts.Name+"/config/environment", bs)
	}

	if p.opts.AutoRun {
		app, ok := p.appConfig()["APP"]
		if !ok {
			app = map[string]any{}
		}
		bs, err := json.Marshal(app)
		if err != nil {
			return "", err
		}
		footer += fmt.Sprintf("\nif (!runningTests) {\n  require(%q)[\"default\"].create(%s);\n}\n", p.opts.Name+"/app", bs)
	}

	return footer, nil
}

func (p *Packager) appConfig() map[string]any {
	if p.opts.AppConfig == nil {
		return map[string]any{}
	}
	return p.opts.AppConfig
}

// PackageStyles emits the application stylesheets and every style bundle.
// app/styles/app.css becomes the application stylesheet; other top level
// stylesheets keep their names under assets/.
func (p *Packager) PackageStyles(full fs.FS) (fs.FS, error) {
	styles, err := tree.Funnel(full, tree.FunnelOptions{SrcDir: "app/styles", Annotation: "Funnel (styles)"})
	if err != nil {
		return nil, err
	}
	if styles, err = p.opts.Hooks.Preprocess("css", styles); err != nil {
		return nil, err
	}

	var trees []fs.FS

	if _, err := fs.Stat(styles, "app.css"); err == nil {
		trees = append(trees, p.concat(styles, tree.ConcatOptions{
			OutputFile: p.AppCSSFile(),
			InputFiles: []string{"app.css"},
			Annotation: "Concat: App Styles",
		}))
	}

	others, err := tree.Funnel(styles, tree.FunnelOptions{
		Include:    []string{"*.css"},
		Exclude:    []string{"app.css"},
		DestDir:    "assets",
		Annotation: "Funnel (other styles)",
	})
	if err != nil {
		return nil, err
	}
	trees = append(trees, others)

	for _, b := range p.opts.Assets.Styles {
		trees = append(trees, p.concat(full, tree.ConcatOptions{
			OutputFile: b.OutputFile,
			InputFiles: b.Files,
			Annotation: "Concat: Vendor Styles " + b.OutputFile,
		}))
	}

	merged, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (styles)"})
	if err != nil {
		return nil, err
	}

	if p.opts.MinifyCSS {
		if merged, err = MinifyCSS(merged, p.opts.MinifyCSSOptions); err != nil {
			return nil, err
		}
	}

	return p.opts.Hooks.Postprocess("css", merged)
}

// PackageTests concatenates the tests, the test support scripts and styles,
// and processes tests/index.html.
func (p *Packager) PackageTests(full fs.FS) (fs.FS, error) {
	trees := []fs.FS{
		p.concat(full, tree.ConcatOptions{
			OutputFile: assets.TestsJS,
			InputFiles: []string{"tests/**/*.js"},
			Annotation: "Concat: App Tests",
		}),
		p.concat(full, tree.ConcatOptions{
			OutputFile: assets.TestSupportJS,
			InputFiles: p.opts.Assets.LegacyTestFiles,
			Annotation: "Concat: Test Support JS",
		}),
		p.concat(full, tree.ConcatOptions{
			OutputFile: assets.TestSupportCSS,
			InputFiles: p.opts.Assets.VendorTestStyles,
			Annotation: "Concat: Test Support CSS",
		}),
	}

	index, err := p.processHTML(full, "tests/index.html", "tests/index.html")
	if err != nil {
		return nil, err
	}
	trees = append(trees, index)

	merged, err := tree.Merge(trees, tree.MergeOptions{Overwrite: true, Annotation: "TreeMerger (tests)"})
	if err != nil {
		return nil, err
	}

	return p.opts.Hooks.Postprocess("test", merged)
}

func (p *Packager) concat(fsys fs.FS, opts tree.ConcatOptions) fs.FS {
	opts.SourceMapConfig = p.opts.SourceMaps
	return tree.Concat(fsys, opts)
}

// ProcessIndex writes <name>/index.html to index.html.
func (p *Packager) ProcessIndex(full fs.FS) (fs.FS, error) {
	return p.processHTML(full, path.Join(p.opts.Name, "index.html"), "index.html")
}

type nopProcessor struct{}

func (nopProcessor) Preprocess(_ string, t fs.FS) (fs.FS, error)  { return t, nil }
func (nopProcessor) Postprocess(_ string, t fs.FS) (fs.FS, error) { return t, nil }
