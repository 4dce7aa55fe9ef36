package assets

import (
	"slices"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/internal/metrics"
)

// Bundle is an output file and the ordered files concatenated into it.
type Bundle struct {
	OutputFile string
	Files      []string
}

// bundles is an insertion ordered map of output file to file list.
type bundles struct {
	order []string
	files map[string][]string
}

func (b *bundles) ensure(outputFile string) {
	if b.files == nil {
		b.files = make(map[string][]string)
	}
	if _, ok := b.files[outputFile]; !ok {
		b.order = append(b.order, outputFile)
		b.files[outputFile] = []string{}
	}
}

func (b *bundles) snapshot() []Bundle {
	out := make([]Bundle, 0, len(b.order))
	for _, f := range b.order {
		out = append(out, Bundle{OutputFile: f, Files: slices.Clone(b.files[f])})
	}
	return out
}

// Registry records every accepted import. It is owned by a single build and
// not safe for concurrent use.
type Registry struct {
	scripts          bundles
	styles           bundles
	legacyTestFiles  []string
	vendorTestStyles []string
	otherAssets      []OtherAsset
	nodeModules      map[string]NodeModule
	nodeModuleOrder  []string
	log              *logging.Logger
}

// NewRegistry returns a registry holding the (empty) vendor style bundle.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	r := &Registry{nodeModules: make(map[string]NodeModule), log: log}
	r.styles.ensure(VendorCSS)
	return r
}

// AddScript adds p to a script bundle, first one wins.
func (r *Registry) AddScript(outputFile, p string, prepend bool) {
	r.scripts.ensure(outputFile)
	r.scripts.files[outputFile] = r.place(FirstOneWins, r.scripts.files[outputFile], p, prepend)
	metrics.AssetImports.WithLabelValues("script").Inc()
}

// AddStyle adds p to a style bundle, last one wins.
func (r *Registry) AddStyle(outputFile, p string, prepend bool) {
	r.styles.ensure(outputFile)
	r.styles.files[outputFile] = r.place(LastOneWins, r.styles.files[outputFile], p, prepend)
	metrics.AssetImports.WithLabelValues("style").Inc()
}

// AddTestScript adds p to the test support scripts, first one wins.
func (r *Registry) AddTestScript(p string, prepend bool) {
	r.legacyTestFiles = r.place(FirstOneWins, r.legacyTestFiles, p, prepend)
	metrics.AssetImports.WithLabelValues("test-script").Inc()
}

// AddTestStyle adds p to the test support styles, last one wins.
func (r *Registry) AddTestStyle(p string, prepend bool) {
	r.vendorTestStyles = r.place(LastOneWins, r.vendorTestStyles, p, prepend)
	metrics.AssetImports.WithLabelValues("test-style").Inc()
}

// AddOtherAsset records a copy instruction. These are not deduplicated.
func (r *Registry) AddOtherAsset(a OtherAsset) {
	r.otherAssets = append(r.otherAssets, a)
	metrics.AssetImports.WithLabelValues("other").Inc()
}

// AddNodeModule records a package directory, once per directory.
func (r *Registry) AddNodeModule(m NodeModule) {
	if _, ok := r.nodeModules[m.Path]; !ok {
		r.nodeModuleOrder = append(r.nodeModuleOrder, m.Path)
	}
	r.nodeModules[m.Path] = m
}

func (r *Registry) place(s Strategy, list []string, p string, prepend bool) []string {
	list, dup := s.place(list, p, prepend)
	if dup {
		r.log.Warnf("Highlander Rule: duplicate import of %s. Only including the %s by order.", p, s)
		metrics.DuplicateImports.WithLabelValues(s.String()).Inc()
	}
	return list
}

// View is a read only copy of a Registry, handed to the packager.
type View struct {
	Scripts          []Bundle
	Styles           []Bundle
	LegacyTestFiles  []string
	VendorTestStyles []string
	OtherAssets      []OtherAsset
	NodeModules      []NodeModule
}

// Snapshot copies the registry's current state.
func (r *Registry) Snapshot() View {
	v := View{
		Scripts:          r.scripts.snapshot(),
		Styles:           r.styles.snapshot(),
		LegacyTestFiles:  slices.Clone(r.legacyTestFiles),
		VendorTestStyles: slices.Clone(r.vendorTestStyles),
		OtherAssets:      slices.Clone(r.otherAssets),
	}
	for _, p := range r.nodeModuleOrder {
		v.NodeModules = append(v.NodeModules, r.nodeModules[p])
	}
	return v
}

// Bundle returns the files of the named bundle in v, scripts first.
func (v View) Bundle(outputFile string) ([]string, bool) {
	for _, b := range slices.Concat(v.Scripts, v.Styles) {
		if b.OutputFile == outputFile {
			return b.Files, true
		}
	}
	return nil, false
}
