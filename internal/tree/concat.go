package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"testing/fstest"
)

// SourceMapConfig controls whether Concat emits a source map next to its
// output file.
type SourceMapConfig struct {
	Enabled    bool     `json:"enabled"`
	Extensions []string `json:"extensions,omitempty"`
}

// ConcatOptions control Concat.
type ConcatOptions struct {
	// OutputFile is the path of the single file in the resulting tree.
	OutputFile string

	// InputFiles lists literal paths and glob patterns. Literal paths must
	// exist; patterns contribute their matches in path order. A file is
	// concatenated at most once.
	InputFiles []string

	HeaderFiles []string
	FooterFiles []string

	// Footer is literal text appended after all files.
	Footer string

	SourceMapConfig SourceMapConfig

	Annotation string
}

// Concat returns a tree holding OutputFile, the concatenation of the selected
// files of fsys. The input is read lazily, on first access of the result.
// Without inputs the output file exists and is empty.
func Concat(fsys fs.FS, opts ConcatOptions) fs.FS {
	if fsys == nil {
		fsys = Empty()
	}
	c := &concat{src: fsys, opts: opts}
	return Lazy(c.render)
}

type concat struct {
	src  fs.FS
	opts ConcatOptions
}

func (c *concat) render() (fs.FS, error) {
	output := CleanFile(c.opts.OutputFile)
	annotation := annotationOr(c.opts.Annotation, "concat "+output)

	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, p := range c.opts.HeaderFiles {
		add(CleanFile(p))
	}

	var (
		available []string
		listed    bool
	)
	for _, pattern := range c.opts.InputFiles {
		if !HasMeta(pattern) {
			add(CleanFile(pattern))
			continue
		}

		if !listed {
			files, err := Paths(c.src)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", annotation, err)
			}
			available, listed = files, true
		}

		gs, err := CompileGlobs([]string{pattern})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", annotation, err)
		}
		for _, p := range available {
			if gs.Match(p) {
				add(p)
			}
		}
	}

	for _, p := range c.opts.FooterFiles {
		add(CleanFile(p))
	}

	var (
		buf      bytes.Buffer
		mappings sourceMappings
	)
	for i, p := range all {
		bs, err := fs.ReadFile(c.src, p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: input file %q not found", annotation, p)
			}
			return nil, fmt.Errorf("%s: %w", annotation, err)
		}
		buf.Write(bs)
		if len(bs) > 0 && bs[len(bs)-1] != '\n' {
			buf.WriteByte('\n')
		}
		mappings.add(i, lineCount(bs))
	}
	buf.WriteString(c.opts.Footer)

	out := fstest.MapFS{}

	if ext := path.Ext(output); c.opts.SourceMapConfig.Enabled && ext != "" &&
		slices.Contains(c.opts.SourceMapConfig.Extensions, ext[1:]) {
		mapName := path.Base(output) + ".map"
		bs, err := json.Marshal(sourceMap{
			Version:  3,
			File:     path.Base(output),
			Sources:  append([]string{}, all...),
			Names:    []string{},
			Mappings: mappings.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", annotation, err)
		}
		if ext == ".css" {
			fmt.Fprintf(&buf, "/*# sourceMappingURL=%s */\n", mapName)
		} else {
			fmt.Fprintf(&buf, "//# sourceMappingURL=%s\n", mapName)
		}
		out[output+".map"] = &fstest.MapFile{Data: bs, Mode: 0o644}
	}

	out[output] = &fstest.MapFile{Data: buf.Bytes(), Mode: 0o644}
	return out, nil
}

type sourceMap struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// sourceMappings builds the mappings of a concatenation: every generated
// line maps to column 0 of the same line in its source.
type sourceMappings struct {
	buf        bytes.Buffer
	lines      int
	prevSource int
	prevLine   int
}

// add maps the next n generated lines to lines 0..n-1 of source.
func (m *sourceMappings) add(source, n int) {
	for line := range n {
		if m.lines > 0 {
			m.buf.WriteByte(';')
		}
		m.lines++

		// generated column, source, original line, original column
		encodeVLQ(&m.buf, 0)
		encodeVLQ(&m.buf, source-m.prevSource)
		encodeVLQ(&m.buf, line-m.prevLine)
		encodeVLQ(&m.buf, 0)
		m.prevSource, m.prevLine = source, line
	}
}

func (m *sourceMappings) String() string {
	return m.buf.String()
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// encodeVLQ writes v as a base64 VLQ: sign in the lowest bit, five bits per
// digit, continuation in the sixth.
func encodeVLQ(buf *bytes.Buffer, v int) {
	vlq := v << 1
	if v < 0 {
		vlq = (-v << 1) | 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq > 0 {
			digit |= 32
		}
		buf.WriteByte(base64Digits[digit])
		if vlq == 0 {
			return
		}
	}
}

// lineCount returns the number of lines bs occupies in the output, where a
// missing final newline is added.
func lineCount(bs []byte) int {
	if len(bs) == 0 {
		return 0
	}
	n := bytes.Count(bs, []byte{'\n'})
	if bs[len(bs)-1] != '\n' {
		n++
	}
	return n
}
