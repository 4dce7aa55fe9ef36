package addon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomster/embuild/internal/assets"
	"github.com/tomster/embuild/internal/tree"
)

// Import is an import an addon performs when it is included.
type Import struct {
	Spec    assets.Spec
	Options assets.ImportOptions
}

// DirOptions configure a Dir addon.
type DirOptions struct {
	// Name overrides the name read from package.json.
	Name    string
	Enabled *bool
	Imports []Import
}

// Dir is an addon laid out on disk the conventional way:
//
//	app/             merged into the application
//	app/styles/      styles
//	app/templates/   templates
//	addon/           addon-tree-output/<name>/
//	addon-test-support/
//	test-support/
//	vendor/
//	public/          public/<name>/
type Dir struct {
	name    string
	root    string
	enabled *bool
	imports []Import
	fsys    fs.FS
}

// NewDir loads the addon at root.
func NewDir(root string, opts DirOptions) (*Dir, error) {
	fsys := tree.Dir(root)
	if fsys == nil {
		return nil, fmt.Errorf("addon directory %s does not exist", root)
	}

	name := opts.Name
	if name == "" {
		var err error
		if name, err = packageName(fsys); err != nil {
			return nil, fmt.Errorf("addon %s: %w", root, err)
		}
	}

	return &Dir{name: name, root: root, enabled: opts.Enabled, imports: opts.Imports, fsys: fsys}, nil
}

func packageName(fsys fs.FS) (string, error) {
	bs, err := fs.ReadFile(fsys, "package.json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errors.New("no name configured and no package.json found")
		}
		return "", err
	}

	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(bs, &pkg); err != nil {
		return "", fmt.Errorf("package.json: %w", err)
	}
	if pkg.Name == "" {
		return "", errors.New("package.json has no name")
	}
	return pkg.Name, nil
}

func (d *Dir) Name() string { return d.name }
func (d *Dir) Root() string { return d.root }

func (d *Dir) IsEnabled() bool {
	return d.enabled == nil || *d.enabled
}

// Included performs the configured imports.
func (d *Dir) Included(host Host) error {
	for _, imp := range d.imports {
		if err := host.Import(imp.Spec, imp.Options); err != nil {
			return err
		}
	}
	return nil
}

// TreeFor returns the addon's contribution to category, or nil.
func (d *Dir) TreeFor(category string) (fs.FS, error) {
	opts := tree.FunnelOptions{Annotation: fmt.Sprintf("Funnel (%s %s)", d.name, category)}

	switch category {
	case App:
		opts.SrcDir, opts.Exclude = "app", []string{"styles/**", "templates/**"}
	case Styles:
		opts.SrcDir, opts.DestDir = "app/styles", "app/styles"
	case Templates:
		opts.SrcDir = "app/templates"
	case AddonTree:
		opts.SrcDir, opts.DestDir = "addon", d.name
	case AddonTestSupport:
		opts.SrcDir, opts.DestDir = "addon-test-support", d.name
	case TestSupport:
		opts.SrcDir = "test-support"
	case Vendor:
		opts.SrcDir = "vendor"
	case Public:
		opts.SrcDir, opts.DestDir = "public", d.name
	default:
		return nil, nil
	}

	if _, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(opts.SrcDir))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	return tree.Funnel(d.fsys, opts)
}
