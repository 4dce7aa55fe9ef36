package tree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/gobwas/glob"
)

// Globs is a compiled list of path patterns. A pattern starting with or
// containing "**/" also matches with that directory wildcard standing for
// no directory at all, so "**/*.js" matches "app.js".
type Globs []glob.Glob

// CompileGlobs compiles the given patterns with '/' as separator.
func CompileGlobs(patterns []string) (Globs, error) {
	var gs Globs
	for _, pattern := range patterns {
		for _, p := range expandDoubleStar(strings.TrimPrefix(pattern, "/")) {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
			}
			gs = append(gs, g)
		}
	}
	return gs, nil
}

// Match reports whether any glob matches p.
func (gs Globs) Match(p string) bool {
	for _, g := range gs {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func expandDoubleStar(p string) []string {
	i := strings.Index(p, "**/")
	if i < 0 {
		return []string{p}
	}
	head, tail := p[:i], p[i+3:]
	var out []string
	for _, rest := range expandDoubleStar(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}

// HasMeta reports whether p contains glob syntax.
func HasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// FilterFS hides the files of a tree that are not included, or are excluded.
// Directories are always visible, possibly empty.
type FilterFS struct {
	fsys     fs.FS
	included Globs
	excluded Globs
}

// NewFilterFS wraps fsys. An empty include list includes everything.
func NewFilterFS(fsys fs.FS, included, excluded []string) (fs.FS, error) {
	inc, err := CompileGlobs(included)
	if err != nil {
		return nil, err
	}
	exc, err := CompileGlobs(excluded)
	if err != nil {
		return nil, err
	}
	return &FilterFS{fsys: fsys, included: inc, excluded: exc}, nil
}

func (f *FilterFS) visible(name string) bool {
	if len(f.included) > 0 && !f.included.Match(name) {
		return false
	}
	return !f.excluded.Match(name)
}

func (f *FilterFS) Open(name string) (fs.File, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if fi.IsDir() {
		return &filterDir{File: file, fsys: f, path: name}, nil
	}

	if !f.visible(name) {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	return file, nil
}

type filterDir struct {
	fs.File
	fsys    *FilterFS
	path    string
	entries []fs.DirEntry
	read    bool
}

func (d *filterDir) ReadDir(count int) ([]fs.DirEntry, error) {
	if !d.read {
		rd, ok := d.File.(fs.ReadDirFile)
		if !ok {
			return nil, &fs.PathError{Op: "readdir", Path: d.path, Err: errors.New("not implemented")}
		}
		all, err := rd.ReadDir(-1)
		if err != nil {
			return nil, err
		}
		for _, e := range all {
			p := e.Name()
			if d.path != "." {
				p = d.path + "/" + p
			}
			if e.IsDir() || d.fsys.visible(p) {
				d.entries = append(d.entries, e)
			}
		}
		d.read = true
	}

	if count <= 0 {
		list := d.entries
		d.entries = nil
		return list, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	n := min(count, len(d.entries))
	list := d.entries[:n]
	d.entries = d.entries[n:]
	return list, nil
}
