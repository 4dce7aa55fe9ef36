// Package builder builds ember-style applications: it collects the
// application's trees and the trees of its addons, packages scripts,
// styles and tests into concatenated assets, and writes the result to the
// output path.
//
// # Basic Usage
//
// Load a configuration and build the project:
//
//	import "github.com/tomster/embuild/pkg/builder"
//
//	cfg, err := builder.LoadConfig("embuild.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := builder.Load(builder.Options{
//	    Config:      cfg,
//	    Environment: "production",
//	    OutputPath:  "dist",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Cleanup()
//
//	result, err := p.Build(ctx)
//
// # Configuration
//
// A minimal configuration names the application. Input trees default to
// app/, tests/, app/styles/, app/templates/, vendor/ and public/ below the
// project root, which defaults to the directory of the configuration file:
//
//	name: my-app
//	vendor_files:
//	  vendor/shim.js: {}
//	imports:
//	  - path: node_modules/moment/moment.js
//	  - path: vendor/qunit.css
//	    type: test
//
// Several files passed to LoadConfig are deep-merged; later files win.
//
// # Addons
//
// Addons are listed under addons.paths in the configuration, or passed in
// Options.Addons. An Addon only has a name and a root; everything else is
// optional and detected through the interfaces it implements:
//
//	type stamp struct{}
//
//	func (stamp) Name() string { return "stamp" }
//	func (stamp) Root() string { return "" }
//
//	// PostprocessTree sees the packaged output of every stage.
//	func (stamp) PostprocessTree(typ string, t fs.FS) (fs.FS, error) {
//	    ...
//	}
//
// The lifecycle hooks PreBuild, PostBuild and OutputReady run in that order
// around every build. When a build fails, BuildError is called instead of
// the remaining hooks and Build returns an *Error naming the failed stage.
//
// # Duplicate Imports
//
// Importing the same file twice into one bundle keeps a single copy. For
// scripts the first import wins unless the later one is prepended; for
// styles the last import wins unless the later one is prepended. Every
// duplicate is logged as a warning.
//
// # Watching
//
// Watch builds once and rebuilds after every burst of changes in the input
// directories:
//
//	err := p.Watch(ctx, func(r builder.BuildResult) {
//	    fmt.Println("built", r.Directory)
//	})
//
// # Thread Safety
//
// A Project is NOT thread-safe. Watch runs builds on its own goroutine and
// must not be combined with concurrent calls to Build.
package builder
