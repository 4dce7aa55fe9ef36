// Package transforms holds the named import transforms contributed by addons.
// Scripts imported with a `using` list are routed through the named
// transforms before they are concatenated into their bundle.
package transforms

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/metrics"
)

// Func transforms a tree holding exactly the files routed to a transform,
// given the options accumulated for it. The result is merged over the full
// application tree, so it should keep the file paths.
type Func func(fsys fs.FS, options map[string]any) (fs.FS, error)

// ProcessOptionsFunc folds the arguments of one import into the options
// accumulated so far and returns the new options.
type ProcessOptionsFunc func(path string, args map[string]any, current map[string]any) (map[string]any, error)

// Definition is the long form of a transform contributed by an addon.
type Definition struct {
	Transform      Func
	ProcessOptions ProcessOptionsFunc
}

// Ref names a transform in an import's `using` list, with the free form
// arguments of that import.
type Ref struct {
	Transformation string
	Args           map[string]any
}

// Entry is a registered transform and everything routed to it.
type Entry struct {
	Name           string
	Addon          string
	Callback       Func
	ProcessOptions ProcessOptionsFunc
	Options        map[string]any
	Files          []string
}

// ConfigurationError reports a malformed transform contributed by an addon.
type ConfigurationError struct {
	Addon     string
	Transform string
	Msg       string
}

func (err *ConfigurationError) Error() string {
	if err.Transform == "" {
		return fmt.Sprintf("addon %q: %s", err.Addon, err.Msg)
	}
	return fmt.Sprintf("addon %q: transform %q: %s", err.Addon, err.Transform, err.Msg)
}

// Registry holds the transforms by name, in registration order.
type Registry struct {
	entries map[string]*Entry
	order   []string
	log     *logging.Logger
}

func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{entries: make(map[string]*Entry), log: log}
}

// RegisterAll registers every transform an addon returned. A nil map means
// the addon did not return a transform map at all.
func (r *Registry) RegisterAll(addon string, defs map[string]any) error {
	if defs == nil {
		return &ConfigurationError{Addon: addon, Msg: "did not return a transform map from ImportTransforms"}
	}

	for _, name := range slices.Sorted(maps.Keys(defs)) {
		if err := r.Register(addon, name, defs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a transform. def is a Func, a plain function with the same
// signature, or a Definition. A name registered before is replaced with a
// warning.
func (r *Registry) Register(addon, name string, def any) error {
	e := &Entry{Name: name, Addon: addon, Options: map[string]any{}}

	switch d := def.(type) {
	case Func:
		e.Callback = d
	case func(fs.FS, map[string]any) (fs.FS, error):
		e.Callback = d
	case Definition:
		e.Callback, e.ProcessOptions = d.Transform, d.ProcessOptions
	case *Definition:
		if d != nil {
			e.Callback, e.ProcessOptions = d.Transform, d.ProcessOptions
		}
	}

	if e.Callback == nil {
		return &ConfigurationError{Addon: addon, Transform: name, Msg: "did not return a callback function correctly"}
	}
	if e.ProcessOptions == nil {
		e.ProcessOptions = keepOptions
	}

	if prev, ok := r.entries[name]; ok {
		r.log.Warnf("Addon %q is defining a transform name: %s that is already defined by addon %q. Using transform from addon: %q.",
			addon, name, prev.Addon, addon)
		metrics.TransformOverrides.Inc()
	} else {
		r.order = append(r.order, name)
	}
	r.entries[name] = e

	return nil
}

func keepOptions(_ string, _ map[string]any, current map[string]any) (map[string]any, error) {
	return current, nil
}

// Has reports whether a transform is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Apply routes path through every referenced transform. All references are
// checked and all options computed before anything is recorded, so a failing
// call leaves the registry unchanged.
func (r *Registry) Apply(path string, refs []Ref) error {
	pending := make(map[string]map[string]any)
	files := make(map[string]int)

	for _, ref := range refs {
		e, ok := r.entries[ref.Transformation]
		if !ok {
			return fmt.Errorf("unknown transformation %q", ref.Transformation)
		}

		current, ok := pending[e.Name]
		if !ok {
			current = maps.Clone(e.Options)
		}

		next, err := e.ProcessOptions(path, ref.Args, current)
		if err != nil {
			return fmt.Errorf("transformation %q: %w", e.Name, err)
		}
		if next == nil {
			next = map[string]any{}
		}
		pending[e.Name] = next
		files[e.Name]++
	}

	for name, opts := range pending {
		e := r.entries[name]
		e.Options = opts
		for range files[name] {
			e.Files = append(e.Files, path)
		}
	}

	return nil
}

// Snapshot returns copies of all entries, in registration order.
func (r *Registry) Snapshot() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		e := *r.entries[name]
		e.Options = maps.Clone(e.Options)
		e.Files = slices.Clone(e.Files)
		out = append(out, e)
	}
	return out
}
