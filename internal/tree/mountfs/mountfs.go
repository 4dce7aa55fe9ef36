// This is based on testing/fstest, go1.25.2:
// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Altered to take a map of destination directories to fs.FS instances,
// which is how funnels relocate a tree.

package mountfs

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// A MountFS presents existing [fs.FS] values under destination directories.
//
// The map need not include parent directories of the mount points; those
// are synthesized when needed. When mount points nest, the longest matching
// mount point serves the request.
//
// File system operations must not run concurrently with changes to the
// map. Opening a synthesized directory iterates over the entire map, so a
// MountFS should hold a handful of mounts, not thousands.
type MountFS map[string]fs.FS

// New returns a MountFS for the given mounts. Keys are slash separated
// paths without leading or trailing slashes.
func New(m map[string]fs.FS) MountFS {
	return m
}

// At mounts a single tree under dir.
func At(dir string, fsys fs.FS) MountFS {
	return MountFS{dir: fsys}
}

var _ fs.FS = MountFS(nil)

// Open opens the named file.
func (fsys MountFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	if mnt, ok := fsys[name]; ok && mnt != nil {
		return &mntDir{path: name, info: dirInfo{name: path.Base(name)}, fsys: mnt}, nil
	}

	if prefix, ok := fsys.longestPrefix(name); ok {
		return fsys[prefix].Open(name[len(prefix)+1:])
	}

	// Directory, possibly synthesized.
	synthesize := make(map[string]bool)
	if name == "." {
		for mnt := range fsys {
			if i := strings.Index(mnt, "/"); i < 0 {
				if mnt != "." {
					synthesize[mnt] = true
				}
			} else {
				synthesize[mnt[:i]] = true
			}
		}
	} else {
		prefix := name + "/"
		for mnt := range fsys {
			if rest, ok := strings.CutPrefix(mnt, prefix); ok {
				if i := strings.Index(rest, "/"); i < 0 {
					synthesize[rest] = true
				} else {
					synthesize[rest[:i]] = true
				}
			}
		}
		// Neither a mount point nor a parent of one.
		if len(synthesize) == 0 {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
	}

	list := make([]dirInfo, 0, len(synthesize))
	for elem := range synthesize {
		list = append(list, dirInfo{name: elem})
	}
	slices.SortFunc(list, func(a, b dirInfo) int {
		return strings.Compare(a.name, b.name)
	})

	elem := "."
	if name != "." {
		elem = path.Base(name)
	}
	return &synthDir{path: name, info: dirInfo{name: elem}, entry: list}, nil
}

func (fsys MountFS) longestPrefix(name string) (string, bool) {
	var best string
	for mnt := range fsys {
		if strings.HasPrefix(name, mnt+"/") && len(mnt) > len(best) {
			best = mnt
		}
	}
	return best, best != ""
}

// dirInfo implements fs.FileInfo and fs.DirEntry for synthesized directories.
type dirInfo struct {
	name string
}

func (i *dirInfo) Name() string               { return i.name }
func (*dirInfo) Size() int64                  { return 0 }
func (*dirInfo) Mode() fs.FileMode            { return fs.ModeDir | 0o555 }
func (*dirInfo) Type() fs.FileMode            { return fs.ModeDir }
func (*dirInfo) ModTime() time.Time           { return time.Time{} }
func (*dirInfo) IsDir() bool                  { return true }
func (*dirInfo) Sys() any                     { return nil }
func (i *dirInfo) Info() (fs.FileInfo, error) { return i, nil }

func (i *dirInfo) String() string {
	return fs.FormatFileInfo(i)
}

// synthDir is a directory that only exists because mount points live below it.
type synthDir struct {
	path   string
	info   dirInfo
	entry  []dirInfo
	offset int
}

func (d *synthDir) Stat() (fs.FileInfo, error) { return &d.info, nil }
func (*synthDir) Close() error                 { return nil }
func (d *synthDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *synthDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.entry) - d.offset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = &d.entry[d.offset+i]
	}
	d.offset += n
	return list, nil
}

// mntDir is the root directory of a mounted tree.
type mntDir struct {
	path    string
	info    dirInfo
	fsys    fs.FS
	entries []fs.DirEntry
	read    bool
}

func (*mntDir) Close() error                 { return nil }
func (d *mntDir) Stat() (fs.FileInfo, error) { return &d.info, nil }
func (d *mntDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *mntDir) ReadDir(count int) ([]fs.DirEntry, error) {
	if !d.read {
		entries, err := fs.ReadDir(d.fsys, ".")
		if err != nil {
			return nil, err
		}
		d.entries, d.read = entries, true
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
