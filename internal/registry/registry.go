// Package registry maps asset types (js, css, template) to the file
// extensions that belong to them.
package registry

import (
	"path"
	"slices"
	"strings"
)

// Types known to the default registry.
const (
	JS       = "js"
	CSS      = "css"
	Template = "template"
)

// Registry holds the extensions per type. The zero value is empty; use
// Default for the standard set.
type Registry struct {
	extensions map[string][]string
}

// Default returns a registry that knows js, css and hbs templates.
func Default() *Registry {
	r := &Registry{}
	r.Add(JS, "js")
	r.Add(CSS, "css")
	r.Add(Template, "hbs")
	return r
}

// Add registers extensions (without leading dot) for a type.
func (r *Registry) Add(typ string, extensions ...string) {
	if r.extensions == nil {
		r.extensions = make(map[string][]string)
	}
	for _, ext := range extensions {
		ext = strings.TrimPrefix(ext, ".")
		if !slices.Contains(r.extensions[typ], ext) {
			r.extensions[typ] = append(r.extensions[typ], ext)
		}
	}
}

// ExtensionsForType returns the extensions registered for typ, in
// registration order.
func (r *Registry) ExtensionsForType(typ string) []string {
	return slices.Clone(r.extensions[typ])
}

// IsType reports whether the extension of p is registered for typ.
func (r *Registry) IsType(p, typ string) bool {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return false
	}
	return slices.Contains(r.extensions[typ], ext)
}
