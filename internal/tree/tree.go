// Package tree is the tree engine embuild builds on. A tree is an [fs.FS]
// describing a directory of files; trees are combined with Merge, Funnel and
// Concat and only read when they are materialized with Write.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"testing/fstest"

	"github.com/yalue/merged_fs"

	"github.com/tomster/embuild/internal/tree/mountfs"
)

// MergeOptions control Merge.
type MergeOptions struct {
	// Overwrite lets files of later trees replace files of earlier trees.
	// Without it, two trees providing the same file is a ConflictError.
	Overwrite bool

	// Annotation names the merge in errors and debug output.
	Annotation string
}

// FunnelOptions control Funnel. Patterns are globs relative to SrcDir,
// `**` crossing directory boundaries.
type FunnelOptions struct {
	Include    []string
	Exclude    []string
	SrcDir     string
	DestDir    string
	Annotation string
}

// ConflictError is returned by Merge when two trees provide the same file
// and overwriting was not requested.
type ConflictError struct {
	Annotation string
	Path       string
	Trees      []int // indexes of the conflicting trees
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("%s: merge error: file %q exists in trees %d and %d; pass overwrite to allow it",
		annotationOr(err.Annotation, "merge"), err.Path, err.Trees[0], err.Trees[1])
}

// Empty returns a tree without files.
func Empty() fs.FS {
	return fstest.MapFS{}
}

// MapFS returns an in-memory tree from a map of paths to contents.
func MapFS(m map[string]string) fs.FS {
	m0 := make(fstest.MapFS, len(m))
	for p, f := range m {
		m0[strings.TrimPrefix(p, "/")] = &fstest.MapFile{Data: []byte(f)}
	}
	return m0
}

// Dir returns the tree of an OS directory, or nil when it does not exist.
func Dir(p string) fs.FS {
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		return nil
	}
	return os.DirFS(p)
}

// Merge combines trees into one. nil trees are skipped. With Overwrite, the
// last tree providing a path wins.
func Merge(trees []fs.FS, opts MergeOptions) (fs.FS, error) {
	trees = slices.DeleteFunc(slices.Clone(trees), func(t fs.FS) bool { return t == nil })

	switch len(trees) {
	case 0:
		return Empty(), nil
	case 1:
		return trees[0], nil
	}

	if !opts.Overwrite {
		if err := checkConflicts(trees, opts.Annotation); err != nil {
			return nil, err
		}
	}

	// merged_fs gives priority to the earlier filesystem, we want the later one.
	slices.Reverse(trees)
	return merged_fs.MergeMultiple(trees...), nil
}

func checkConflicts(trees []fs.FS, annotation string) error {
	seen := make(map[string]int)
	for i, t := range trees {
		files, err := Paths(t)
		if err != nil {
			return fmt.Errorf("%s: %w", annotationOr(annotation, "merge"), err)
		}
		for _, f := range files {
			if j, ok := seen[f]; ok {
				return &ConflictError{Annotation: annotation, Path: f, Trees: []int{j, i}}
			}
			seen[f] = i
		}
	}
	return nil
}

// Funnel selects a subset of a tree (SrcDir, Include, Exclude) and relocates
// it (DestDir). A missing SrcDir yields an empty tree.
func Funnel(fsys fs.FS, opts FunnelOptions) (fs.FS, error) {
	if fsys == nil {
		return Empty(), nil
	}

	if src := cleanDir(opts.SrcDir); src != "." {
		if _, err := fs.Stat(fsys, src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Empty(), nil
			}
			return nil, fmt.Errorf("%s: %w", annotationOr(opts.Annotation, "funnel"), err)
		}
		sub, err := fs.Sub(fsys, src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", annotationOr(opts.Annotation, "funnel"), err)
		}
		fsys = sub
	}

	if len(opts.Include) > 0 || len(opts.Exclude) > 0 {
		f, err := NewFilterFS(fsys, opts.Include, opts.Exclude)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", annotationOr(opts.Annotation, "funnel"), err)
		}
		fsys = f
	}

	if dest := cleanDir(opts.DestDir); dest != "." {
		fsys = mountfs.At(dest, fsys)
	}

	return fsys, nil
}

// IsEmpty reports whether the tree holds no files. A nil tree is empty.
func IsEmpty(fsys fs.FS) (bool, error) {
	if fsys == nil {
		return true, nil
	}

	// errFound is a sentinel error used to stop the walk when a file is found.
	errFound := os.ErrExist

	err := fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return errFound
		}
		return nil
	})
	if err == errFound {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}

	return err == nil, err
}

// Paths returns the slash separated paths of all files in the tree, in
// lexical order.
func Paths(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

// cleanDir turns "", "/", "/a/b/" and "a/b" into "." or "a/b".
func cleanDir(d string) string {
	d = strings.Trim(path.Clean("/"+d), "/")
	if d == "" {
		return "."
	}
	return d
}

// CleanFile turns an output path like "/assets/vendor.js" into a tree path.
func CleanFile(p string) string {
	return cleanDir(p)
}

func annotationOr(a, def string) string {
	if a == "" {
		return def
	}
	return a
}
