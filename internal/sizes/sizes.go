// Package sizes reports the sizes of the scripts and styles of a build.
package sizes

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Asset is one file of the report. Name is relative to the working
// directory the report was collected from.
type Asset struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	GzipSize int64  `json:"gzipSize"`
}

type Report struct {
	Files []Asset `json:"files"`
}

// Collect reports every .js and .css file below dir, in path order. Test
// assets are left out.
func Collect(dir string) (*Report, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("no asset files found in %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fsys := os.DirFS(dir)
	r := &Report{Files: []Asset{}}

	if err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == "tests" {
				return fs.SkipDir
			}
			return nil
		}
		switch path.Ext(p) {
		case ".js", ".css":
		default:
			return nil
		}
		if strings.HasPrefix(path.Base(p), "test-support") || path.Base(p) == "tests.js" {
			return nil
		}

		bs, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		gz, err := gzipSize(bs)
		if err != nil {
			return err
		}

		r.Files = append(r.Files, Asset{
			Name:     filepath.Join(dir, filepath.FromSlash(p)),
			Size:     int64(len(bs)),
			GzipSize: gz,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if len(r.Files) == 0 {
		return nil, fmt.Errorf("no asset files found in %s", dir)
	}
	return r, nil
}

func gzipSize(bs []byte) (int64, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(bs); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// WriteTable prints the report as a table.
func (r *Report) WriteTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("File", "Size", "Gzip")
	for _, a := range r.Files {
		if err := table.Append([]string{
			a.Name,
			humanize.Bytes(uint64(a.Size)),
			humanize.Bytes(uint64(a.GzipSize)),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteJSON prints the report as JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
