package assets

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/registry"
	"github.com/tomster/embuild/internal/transforms"
)

// TypeChecker tells whether a path is of an asset type, see registry.Registry.
type TypeChecker interface {
	IsType(path, typ string) bool
}

// TransformRegistry is where scripts imported with `using` are routed to,
// see transforms.Registry.
type TransformRegistry interface {
	Has(name string) bool
	Names() []string
	Apply(path string, refs []transforms.Ref) error
}

// Importer validates imports and records them in a Registry.
type Importer struct {
	registry   *Registry
	types      TypeChecker
	transforms TransformRegistry
	resolver   *Resolver
	env        string
	log        *logging.Logger
}

func NewImporter(reg *Registry, types TypeChecker, ts TransformRegistry, resolver *Resolver, env string, log *logging.Logger) *Importer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Importer{
		registry:   reg,
		types:      types,
		transforms: ts,
		resolver:   resolver,
		env:        cmp.Or(env, DevelopmentEnv),
		log:        log,
	}
}

// Import records a single file. A spec that resolves to nothing for the
// current environment is ignored. A rejected import returns a *UsageError
// (or a resolution error) and leaves every registry unchanged.
func (im *Importer) Import(spec Spec, opts ImportOptions) error {
	p := spec.Resolve(im.env)
	if p == "" {
		return nil
	}

	asset := ParseAsset(p)
	p = asset.Path

	if !strings.Contains(strings.TrimPrefix(p, vendorPrefix), "/") {
		im.log.Warnf("Using import with a file in the root of vendor/ causes a significant performance penalty. Please move %s into a subdirectory.", p)
	}

	if strings.ContainsAny(p, "*,") {
		return &UsageError{Path: p, Msg: "you must pass a file path (without glob pattern) to import"}
	}

	typ := cmp.Or(opts.Type, TypeVendor)

	if asset.Extension == "" {
		return &UsageError{Path: p, Msg: "you must pass a file to import; specify directories under the trees option"}
	}

	var (
		record    func()
		transform bool
	)

	switch {
	case im.types.IsType(p, registry.JS):
		for _, ref := range opts.Using {
			if ref.Transformation == "" {
				return &UsageError{Path: p, Msg: "each entry in the `using` list must have a `transformation` name"}
			}
			if im.transforms == nil || !im.transforms.Has(ref.Transformation) {
				var names []string
				if im.transforms != nil {
					names = im.transforms.Names()
				}
				return &UsageError{Path: p, Msg: fmt.Sprintf("found an unknown transformation name %s. Available transformation names are: %s",
					ref.Transformation, strings.Join(names, ","))}
			}
			transform = true
		}

		switch typ {
		case TypeVendor:
			out := cmp.Or(opts.OutputFile, VendorJS)
			record = func() { im.registry.AddScript(out, p, opts.Prepend) }
		case TypeTest:
			record = func() { im.registry.AddTestScript(p, opts.Prepend) }
		default:
			return &UsageError{Path: p, Msg: fmt.Sprintf("you must pass either `vendor` or `test` as the import type for file: %s", asset.Basename)}
		}

	case asset.Extension == ".css":
		if typ == TypeVendor {
			out := cmp.Or(opts.OutputFile, VendorCSS)
			record = func() { im.registry.AddStyle(out, p, opts.Prepend) }
		} else {
			record = func() { im.registry.AddTestStyle(p, opts.Prepend) }
		}

	default:
		dest := asset.Subdirectory
		if opts.DestDir != nil {
			dest = cmp.Or(*opts.DestDir, "/")
		}
		other := OtherAsset{Src: asset.Directory, File: asset.Basename, Dest: dest}
		record = func() { im.registry.AddOtherAsset(other) }
	}

	var module *NodeModule
	if name, ok := NodeModuleName(p); ok {
		dir, err := im.resolver.Resolve(name, opts.ResolveFrom)
		if err != nil {
			return fmt.Errorf("import %s: %w", p, err)
		}
		module = &NodeModule{Name: name, Path: dir}
	}

	if transform {
		if err := im.transforms.Apply(p, opts.Using); err != nil {
			return &UsageError{Path: p, Msg: err.Error()}
		}
	}

	if module != nil {
		im.registry.AddNodeModule(*module)
	}
	record()

	im.log.Debugf("imported %s (%s)", p, typ)
	return nil
}
