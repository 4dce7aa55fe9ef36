package packager

import (
	"fmt"
	"io/fs"
	"path"
	"testing/fstest"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/tomster/embuild/internal/tree"
)

// CSSOptions are the minify_css options.
type CSSOptions struct {
	// Precision is the number of significant digits kept in numbers; 0
	// keeps them all.
	Precision int `mapstructure:"precision"`

	// KeepCSS2 avoids CSS3 shorthands for older browsers.
	KeepCSS2 bool `mapstructure:"keep_css2"`

	// Inline minifies a style attribute rather than a stylesheet.
	Inline bool `mapstructure:"inline"`
}

// DecodeCSSOptions decodes free form minify_css options. Unknown options are
// an error.
func DecodeCSSOptions(options map[string]any) (CSSOptions, error) {
	var opts CSSOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(options); err != nil {
		return opts, fmt.Errorf("minify_css options: %w", err)
	}
	return opts, nil
}

// MinifyCSS returns t with every .css file minified according to options.
// Other files are kept as they are.
func MinifyCSS(t fs.FS, options map[string]any) (fs.FS, error) {
	opts, err := DecodeCSSOptions(options)
	if err != nil {
		return nil, err
	}

	return tree.Lazy(func() (fs.FS, error) {
		m := minify.New()
		m.Add("text/css", &css.Minifier{
			Precision: opts.Precision,
			KeepCSS2:  opts.KeepCSS2,
			Inline:    opts.Inline,
		})

		files, err := tree.Paths(t)
		if err != nil {
			return nil, err
		}

		out := make(fstest.MapFS, len(files))
		for _, f := range files {
			bs, err := fs.ReadFile(t, f)
			if err != nil {
				return nil, err
			}
			if path.Ext(f) == ".css" {
				if bs, err = m.Bytes("text/css", bs); err != nil {
					return nil, fmt.Errorf("minify %s: %w", f, err)
				}
			}
			out[f] = &fstest.MapFile{Data: bs, Mode: 0o644}
		}
		return out, nil
	}), nil
}
