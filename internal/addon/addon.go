// Package addon defines what an addon is to the build: a name, a root
// directory and any subset of optional capabilities, each its own
// interface. Callers check for a capability with a type assertion.
package addon

import (
	"context"
	"fmt"
	"io/fs"
	"slices"

	"github.com/tomster/embuild/internal/assets"
	"github.com/tomster/embuild/internal/registry"
)

// Tree categories an addon may contribute to.
const (
	App              = "app"
	Styles           = "styles"
	Templates        = "templates"
	Vendor           = "vendor"
	TestSupport      = "test-support"
	AddonTree        = "addon"
	AddonTestSupport = "addon-test-support"
	Public           = "public"
)

// Categories lists every tree category in pipeline order.
var Categories = []string{Templates, Styles, TestSupport, AddonTestSupport, Vendor, AddonTree, Public, App}

// Addon is the part every addon has.
type Addon interface {
	Name() string
	Root() string
}

// Host is the application an addon is included into.
type Host interface {
	Name() string
	Environment() string
	Import(spec assets.Spec, opts assets.ImportOptions) error
}

// EnabledChecker lets an addon opt out of a build. Addons without it are
// enabled.
type EnabledChecker interface {
	IsEnabled() bool
}

// Includer is notified once the addon list is final.
type Includer interface {
	Included(host Host) error
}

// TreeProvider contributes trees. A nil tree contributes nothing.
type TreeProvider interface {
	TreeFor(category string) (fs.FS, error)
}

// Preprocessor transforms a tree before it is packaged.
type Preprocessor interface {
	PreprocessTree(typ string, tree fs.FS) (fs.FS, error)
}

// Postprocessor transforms a tree after it is packaged. The type "all"
// receives the final output.
type Postprocessor interface {
	PostprocessTree(typ string, tree fs.FS) (fs.FS, error)
}

// TransformProvider contributes import transforms by name, see
// transforms.Registry.Register for the accepted values.
type TransformProvider interface {
	ImportTransforms() map[string]any
}

// Linter produces lint test files for a tree of type app, tests or
// templates.
type Linter interface {
	LintTree(typ string, tree fs.FS) (fs.FS, error)
}

// RegistrySetup may register additional file extensions.
type RegistrySetup interface {
	SetupRegistry(r *registry.Registry)
}

// BuildResult describes a finished build.
type BuildResult struct {
	Directory     string
	OutputChanges []string
}

type PreBuilder interface {
	PreBuild(ctx context.Context) error
}

type PostBuilder interface {
	PostBuild(ctx context.Context, result BuildResult) error
}

type OutputReadier interface {
	OutputReady(ctx context.Context, result BuildResult) error
}

type BuildErrorHandler interface {
	BuildError(err error)
}

// ConfigurationError reports an addon configuration that cannot be built.
type ConfigurationError struct {
	Addon string
	Msg   string
}

func (err *ConfigurationError) Error() string {
	if err.Addon == "" {
		return err.Msg
	}
	return fmt.Sprintf("addon %q %s", err.Addon, err.Msg)
}

// Filter returns the addons that take part in the build, keeping their
// order. Names in include and exclude must belong to known addons. An
// addon is kept when it is enabled, not excluded and, if include is not
// empty, included.
func Filter(addons []Addon, include, exclude []string) ([]Addon, error) {
	known := make(map[string]struct{}, len(addons))
	for _, a := range addons {
		known[a.Name()] = struct{}{}
	}

	for _, list := range []struct {
		name  string
		names []string
	}{{"exclude", exclude}, {"include", include}} {
		for _, n := range list.names {
			if _, ok := known[n]; !ok {
				return nil, &ConfigurationError{Addon: n, Msg: fmt.Sprintf("defined in %q is not found", list.name)}
			}
		}
	}

	var out []Addon
	for _, a := range addons {
		if c, ok := a.(EnabledChecker); ok && !c.IsEnabled() {
			continue
		}
		if slices.Contains(exclude, a.Name()) {
			continue
		}
		if len(include) > 0 && !slices.Contains(include, a.Name()) {
			continue
		}
		out = append(out, a)
	}

	return out, nil
}
