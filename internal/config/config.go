package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/swaggest/jsonschema-go"

	"github.com/tomster/embuild/internal/assets"
)

// Configuration data structures for an embuild project.

// Root is the top-level project configuration.
type Root struct {
	Name string `json:"name" required:"true" minLength:"1"`
	// Root is the project directory. Relative paths are resolved against the
	// directory of the configuration file.
	Root              string                    `json:"root,omitempty"`
	Environment       string                    `json:"environment,omitempty"`
	StoreConfigInMeta *bool                     `json:"store_config_in_meta,omitempty"`
	AutoRun           *bool                     `json:"auto_run,omitempty"`
	MinifyCSS         MinifyCSS                 `json:"minify_css,omitzero"`
	Sourcemaps        Sourcemaps                `json:"sourcemaps,omitzero"`
	Trees             Trees                     `json:"trees,omitzero"`
	Addons            Addons                    `json:"addons,omitzero"`
	VendorFiles       map[string]*Import        `json:"vendor_files,omitempty"`
	Tests             *bool                     `json:"tests,omitempty"`
	Hinting           *bool                     `json:"hinting,omitempty"`
	Imports           []Import                  `json:"imports,omitempty"`
	AppConfig         map[string]any            `json:"app_config,omitempty"`
	Environments      map[string]map[string]any `json:"environments,omitempty"`

	// VendorOrder holds the vendor_files keys in the order they were
	// declared. It is filled in by parsing.
	VendorOrder []string `json:"-"`

	_ struct{} `additionalProperties:"false"`
}

type MinifyCSS struct {
	Enabled *bool          `json:"enabled,omitempty"`
	Options map[string]any `json:"options,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type Sourcemaps struct {
	Enabled    *bool    `json:"enabled,omitempty"`
	Extensions []string `json:"extensions,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Trees are the application input directories, relative to the project root.
type Trees struct {
	App       string `json:"app,omitempty"`
	Tests     string `json:"tests,omitempty"`
	Styles    string `json:"styles,omitempty"`
	Templates string `json:"templates,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Public    string `json:"public,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type Addons struct {
	Include []string    `json:"include,omitempty"`
	Exclude []string    `json:"exclude,omitempty"`
	Paths   []AddonPath `json:"paths,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// AddonPath points at an addon directory, relative to the project root.
type AddonPath struct {
	Path    string   `json:"path" required:"true" minLength:"1"`
	Name    string   `json:"name,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Imports []Import `json:"imports,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Import is one app.import call. Either Path or Paths (keyed by environment)
// names the file.
type Import struct {
	Path        string            `json:"path,omitempty"`
	Paths       map[string]string `json:"paths,omitempty"`
	Type        string            `json:"type,omitempty" enum:"vendor,test"`
	Prepend     bool              `json:"prepend,omitempty"`
	DestDir     *string           `json:"dest_dir,omitempty"`
	OutputFile  string            `json:"output_file,omitempty"`
	Using       []map[string]any  `json:"using,omitempty"`
	ResolveFrom string            `json:"resolve_from,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// A null import is accepted so that a vendor file can be switched off:
//
//	vendor_files:
//	  vendor/legacy.js:
func (*Import) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.AddType(jsonschema.Null)
	return nil
}

// Spec returns the file the import names.
func (i *Import) Spec() assets.Spec {
	if len(i.Paths) > 0 {
		return assets.PerEnvironment(i.Paths)
	}
	return assets.Path(i.Path)
}

// Options converts the import into the options app.import takes.
func (i *Import) Options() (assets.ImportOptions, error) {
	opts := assets.ImportOptions{
		Type:        i.Type,
		Prepend:     i.Prepend,
		DestDir:     i.DestDir,
		OutputFile:  i.OutputFile,
		ResolveFrom: i.ResolveFrom,
	}

	for n, using := range i.Using {
		var ref struct {
			Transformation string `mapstructure:"transformation"`
		}
		if err := mapstructure.Decode(using, &ref); err != nil {
			return opts, fmt.Errorf("import %s: using[%d]: %w", i.Spec(), n, err)
		}
		opts.Using = append(opts.Using, assets.TransformRef{
			Transformation: ref.Transformation,
			Args:           maps.Clone(using),
		})
	}

	return opts, nil
}

func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	order, err := vendorOrder(bs)
	if err != nil {
		return err
	}

	*r = Root(raw)
	r.VendorOrder = order
	return nil
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	order, err := vendorOrder(bs) // JSON is YAML
	if err != nil {
		return err
	}

	*r = Root(raw)
	r.VendorOrder = order
	return nil
}

// vendorOrder returns the vendor_files keys of a configuration document in
// declaration order. The order decides the position of each file in
// vendor.js.
func vendorOrder(bs []byte) ([]string, error) {
	var doc struct {
		VendorFiles yaml.MapSlice `json:"vendor_files"`
	}
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode vendor_files: %w", err)
	}

	keys := make([]string, 0, len(doc.VendorFiles))
	for _, item := range doc.VendorFiles {
		keys = append(keys, fmt.Sprint(item.Key))
	}
	return keys, nil
}

// IsProduction reports whether env is the production environment.
func IsProduction(env string) bool {
	return env == assets.ProductionEnv
}

// EnvironmentOr returns the configured environment, or env if the
// configuration does not name one.
func (r *Root) EnvironmentOr(env string) string {
	return cmp.Or(env, r.Environment, assets.DevelopmentEnv)
}

// TreePaths returns the input directories with the defaults filled in.
func (r *Root) TreePaths() Trees {
	return Trees{
		App:       cmp.Or(r.Trees.App, "app"),
		Tests:     cmp.Or(r.Trees.Tests, "tests"),
		Styles:    cmp.Or(r.Trees.Styles, "app/styles"),
		Templates: cmp.Or(r.Trees.Templates, "app/templates"),
		Vendor:    cmp.Or(r.Trees.Vendor, "vendor"),
		Public:    cmp.Or(r.Trees.Public, "public"),
	}
}

func (r *Root) AutoRunEnabled() bool {
	return boolOr(r.AutoRun, true)
}

func (r *Root) StoreConfigInMetaEnabled() bool {
	return boolOr(r.StoreConfigInMeta, true)
}

// MinifyCSSEnabled defaults to on in production.
func (r *Root) MinifyCSSEnabled(env string) bool {
	return boolOr(r.MinifyCSS.Enabled, IsProduction(env))
}

// SourcemapsEnabled defaults to off in production.
func (r *Root) SourcemapsEnabled(env string) bool {
	return boolOr(r.Sourcemaps.Enabled, !IsProduction(env))
}

func (r *Root) SourcemapExtensions() []string {
	if len(r.Sourcemaps.Extensions) == 0 {
		return []string{"js"}
	}
	return r.Sourcemaps.Extensions
}

// TestsEnabled defaults to on outside production, or when a test command
// runs the build.
func (r *Root) TestsEnabled(env string, testCommand bool) bool {
	return boolOr(r.Tests, testCommand || !IsProduction(env))
}

// HintingEnabled follows the same default as TestsEnabled.
func (r *Root) HintingEnabled(env string, testCommand bool) bool {
	return boolOr(r.Hinting, testCommand || !IsProduction(env))
}

// VendorImports returns the vendor_files entries as imports, in declaration
// order. Entries missing from VendorOrder follow, ordered by path. Entries
// set to null are skipped.
func (r *Root) VendorImports() []Import {
	keys := make([]string, 0, len(r.VendorFiles))
	for _, p := range r.VendorOrder {
		if _, ok := r.VendorFiles[p]; ok && !slices.Contains(keys, p) {
			keys = append(keys, p)
		}
	}
	for _, p := range slices.Sorted(maps.Keys(r.VendorFiles)) {
		if !slices.Contains(keys, p) {
			keys = append(keys, p)
		}
	}

	var out []Import
	for _, p := range keys {
		imp := r.VendorFiles[p]
		if imp == nil {
			continue
		}
		i := *imp
		if i.Path == "" && len(i.Paths) == 0 {
			i.Path = p
		}
		out = append(out, i)
	}
	return out
}

// AppConfigFor returns the runtime configuration of the application in env:
// app_config with modulePrefix, environment and rootURL defaulted, patched
// with environments.<env> as a JSON merge patch.
func (r *Root) AppConfigFor(env string) (map[string]any, error) {
	base := maps.Clone(r.AppConfig)
	if base == nil {
		base = map[string]any{}
	}
	if _, ok := base["modulePrefix"]; !ok {
		base["modulePrefix"] = r.Name
	}
	if _, ok := base["rootURL"]; !ok {
		base["rootURL"] = "/"
	}
	base["environment"] = env

	doc, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("app_config: %w", err)
	}

	if patch, ok := r.Environments[env]; ok {
		p, err := json.Marshal(patch)
		if err != nil {
			return nil, fmt.Errorf("environments.%s: %w", env, err)
		}
		if doc, err = jsonpatch.MergePatch(doc, p); err != nil {
			return nil, fmt.Errorf("environments.%s: %w", env, err)
		}
	}

	var out map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

// ParseFile parses filename and resolves the project root against the
// directory holding it.
func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	root, err = Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}

	root.ResolveRoot(filepath.Dir(filename))
	return root, nil
}

// ResolveRoot makes the project root absolute, relative to dir.
func (r *Root) ResolveRoot(dir string) {
	if !filepath.IsAbs(r.Root) {
		r.Root = filepath.Join(dir, r.Root)
	}
	if abs, err := filepath.Abs(r.Root); err == nil {
		r.Root = abs
	}
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}
