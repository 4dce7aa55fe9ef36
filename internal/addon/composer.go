package addon

import (
	"fmt"
	"io/fs"

	"github.com/tomster/embuild/internal/memo"
	"github.com/tomster/embuild/internal/tree"
)

// Bundle is an addon's non-empty contribution to a tree category.
type Bundle struct {
	Name string
	Tree fs.FS
	Root string
}

// Composer gathers and merges the trees of a fixed, ordered addon list.
// Results are computed once per category and kept for the composer's
// lifetime; callers must not modify returned trees.
type Composer struct {
	addons   []Addon
	bundles  memo.Table[[]Bundle]
	composed memo.Table[fs.FS]
}

func NewComposer(addons []Addon) *Composer {
	return &Composer{addons: addons}
}

// Addons returns the addon list the composer works on.
func (c *Composer) Addons() []Addon {
	return c.addons
}

// TreesFor returns the non-empty trees the addons contribute to category,
// in addon order.
func (c *Composer) TreesFor(category string) ([]Bundle, error) {
	return c.bundles.Get(category, func() ([]Bundle, error) {
		var out []Bundle
		for _, a := range c.addons {
			p, ok := a.(TreeProvider)
			if !ok {
				continue
			}

			t, err := p.TreeFor(category)
			if err != nil {
				return nil, fmt.Errorf("addon %q: tree for %s: %w", a.Name(), category, err)
			}

			empty, err := tree.IsEmpty(t)
			if err != nil {
				return nil, fmt.Errorf("addon %q: tree for %s: %w", a.Name(), category, err)
			}
			if empty {
				continue
			}

			out = append(out, Bundle{Name: a.Name(), Tree: t, Root: a.Root()})
		}
		return out, nil
	})
}

// Trees is TreesFor without the addon names.
func (c *Composer) Trees(category string) ([]fs.FS, error) {
	bundles, err := c.TreesFor(category)
	if err != nil {
		return nil, err
	}
	out := make([]fs.FS, len(bundles))
	for i, b := range bundles {
		out[i] = b.Tree
	}
	return out, nil
}

// Compose merges the addon trees for category, later addons overwriting
// earlier ones, and places the result under destDir.
func (c *Composer) Compose(category, destDir string) (fs.FS, error) {
	return c.composed.Get(category+"\x00"+destDir, func() (fs.FS, error) {
		trees, err := c.Trees(category)
		if err != nil {
			return nil, err
		}

		merged, err := tree.Merge(trees, tree.MergeOptions{
			Overwrite:  true,
			Annotation: fmt.Sprintf("TreeMerger (%s)", category),
		})
		if err != nil {
			return nil, err
		}

		return tree.Funnel(merged, tree.FunnelOptions{
			DestDir:    destDir,
			Annotation: fmt.Sprintf("Funnel: %s %s", destDir, category),
		})
	})
}

// Preprocess runs the PreprocessTree hooks in addon order.
func (c *Composer) Preprocess(typ string, t fs.FS) (fs.FS, error) {
	for _, a := range c.addons {
		p, ok := a.(Preprocessor)
		if !ok {
			continue
		}
		var err error
		if t, err = p.PreprocessTree(typ, t); err != nil {
			return nil, fmt.Errorf("addon %q: preprocess %s: %w", a.Name(), typ, err)
		}
	}
	return t, nil
}

// Postprocess runs the PostprocessTree hooks in addon order.
func (c *Composer) Postprocess(typ string, t fs.FS) (fs.FS, error) {
	for _, a := range c.addons {
		p, ok := a.(Postprocessor)
		if !ok {
			continue
		}
		var err error
		if t, err = p.PostprocessTree(typ, t); err != nil {
			return nil, fmt.Errorf("addon %q: postprocess %s: %w", a.Name(), typ, err)
		}
	}
	return t, nil
}

// Lint merges the output of every Linter for a tree of the given type.
func (c *Composer) Lint(typ string, t fs.FS) (fs.FS, error) {
	var out []fs.FS
	for _, a := range c.addons {
		l, ok := a.(Linter)
		if !ok {
			continue
		}
		lt, err := l.LintTree(typ, t)
		if err != nil {
			return nil, fmt.Errorf("addon %q: lint %s: %w", a.Name(), typ, err)
		}
		out = append(out, lt)
	}

	return tree.Merge(out, tree.MergeOptions{
		Overwrite:  true,
		Annotation: fmt.Sprintf("TreeMerger (lint %s)", typ),
	})
}
