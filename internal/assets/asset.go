// Package assets decides where imported files end up: which script or style
// bundle, which flat test list, or which plain copy instruction. It enforces
// that no bundle ever lists the same file twice.
package assets

import (
	"fmt"
	"path"
	"strings"

	"github.com/tomster/embuild/internal/transforms"
)

// Import types.
const (
	TypeVendor = "vendor"
	TypeTest   = "test"
)

// Default bundle output files.
const (
	VendorJS         = "/assets/vendor.js"
	VendorCSS        = "/assets/vendor.css"
	TestSupportJS    = "/assets/test-support.js"
	TestSupportCSS   = "/assets/test-support.css"
	TestsJS          = "/assets/tests.js"
	DevelopmentEnv   = "development"
	ProductionEnv    = "production"
	vendorPrefix     = "vendor/"
	nodeModulesDir   = "node_modules"
	nodeModulePrefix = nodeModulesDir + "/"
)

// Asset is a normalized import path and its parts.
type Asset struct {
	Path         string
	Extension    string
	Directory    string
	Subdirectory string
	Basename     string
}

// ParseAsset splits a slash separated path. Subdirectory is Directory
// without a leading vendor/ or node_modules/.
func ParseAsset(p string) Asset {
	p = strings.ReplaceAll(p, `\`, "/")
	dir := path.Dir(p)

	sub := dir
	if s, ok := strings.CutPrefix(dir, vendorPrefix); ok {
		sub = s
	} else if s, ok := strings.CutPrefix(dir, nodeModulePrefix); ok {
		sub = s
	}

	return Asset{
		Path:         p,
		Extension:    path.Ext(p),
		Directory:    dir,
		Subdirectory: sub,
		Basename:     path.Base(p),
	}
}

// Spec is what an import names: a single path, or a path per environment.
type Spec struct {
	path string
	envs map[string]string
}

// Path is a Spec naming the same file in every environment.
func Path(p string) Spec {
	return Spec{path: p}
}

// PerEnvironment is a Spec choosing the file by environment name, falling
// back to the development entry.
func PerEnvironment(m map[string]string) Spec {
	return Spec{envs: m}
}

// Resolve returns the path for env, or "" when there is none.
func (s Spec) Resolve(env string) string {
	if s.envs == nil {
		return s.path
	}
	if p, ok := s.envs[env]; ok {
		return p
	}
	return s.envs[DevelopmentEnv]
}

func (s Spec) String() string {
	if s.envs == nil {
		return s.path
	}
	return fmt.Sprint(s.envs)
}

// TransformRef names an import transform and its arguments.
type TransformRef = transforms.Ref

// ImportOptions control a single import. The zero value imports into the
// vendor bundles, appending.
type ImportOptions struct {
	Type    string
	Prepend bool

	// DestDir is where a file that is neither a script nor a style is copied
	// to. nil means the file's subdirectory; "" means the output root.
	DestDir *string

	// OutputFile selects the bundle; defaults to the vendor bundle for the
	// file type.
	OutputFile string

	Using []TransformRef

	// ResolveFrom is the directory node_modules/ imports resolve from;
	// defaults to the project root.
	ResolveFrom string
}

// UsageError reports a malformed import.
type UsageError struct {
	Path string
	Msg  string
}

func (err *UsageError) Error() string {
	if err.Path == "" {
		return "import: " + err.Msg
	}
	return fmt.Sprintf("import %s: %s", err.Path, err.Msg)
}

// OtherAsset is a copy instruction for an imported file that is neither a
// script nor a style.
type OtherAsset struct {
	Src  string
	File string
	Dest string
}

// NodeModule is a package directory copied to node_modules/<Name>/.
type NodeModule struct {
	Name string
	Path string
}
