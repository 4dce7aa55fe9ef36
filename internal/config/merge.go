package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Merge reads every file named in configFiles, walking directories, and
// deep-merges them in order. Later files win unless conflictError is set, in
// which case differing values for the same key are an error naming both
// files.
//
// Keys keep the order of their first appearance, so vendor_files entries
// are imported in the order they are declared across files. A relative root
// is resolved against the directory of the file that sets it.
func Merge(configFiles []string, conflictError bool) ([]byte, error) {
	var paths []string
	for _, f := range configFiles {
		if err := filepath.Walk(f, func(path string, fi fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			paths = append(paths, path)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	m := merger{conflictError: conflictError, origin: map[string]string{}}
	var result *yaml.Node
	for _, f := range paths {
		doc, err := readDocument(f)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		if result == nil {
			result = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		if err := m.merge(result, doc, "", f); err != nil {
			return nil, err
		}
	}

	if result == nil {
		return nil, fmt.Errorf("no configuration in %v", configFiles)
	}

	bs, err := yaml.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %w", err)
	}

	return bs, nil
}

// readDocument returns the top-level mapping of file f, or nil when the file
// is empty.
func readDocument(f string) (*yaml.Node, error) {
	bs, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %v: %w", f, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration file %v: %w", f, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configuration file %v: expected a mapping at the top level", f)
	}

	if v := lookup(root, "root"); v != nil && v.Kind == yaml.ScalarNode && v.Value != "" && !filepath.IsAbs(v.Value) {
		dir, err := filepath.Abs(filepath.Dir(f))
		if err != nil {
			return nil, err
		}
		v.Value = filepath.Join(dir, v.Value)
	}

	return root, nil
}

type merger struct {
	conflictError bool
	origin        map[string]string // config path -> file that set it
}

// merge merges the mapping src, read from file, into dst.
func (m *merger) merge(dst, src *yaml.Node, path, file string) error {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		p := path + "/" + key.Value

		existing := lookup(dst, key.Value)
		if existing == nil {
			dst.Content = append(dst.Content, key, value)
			m.setOrigin(p, value, file)
			continue
		}

		if existing.Kind == yaml.MappingNode && value.Kind == yaml.MappingNode {
			if err := m.merge(existing, value, p, file); err != nil {
				return err
			}
			continue
		}

		if m.conflictError {
			equal, err := sameValue(existing, value)
			if err != nil {
				return fmt.Errorf("config path %s: %w", p, err)
			}
			if !equal {
				return fmt.Errorf("conflict for config path %s between %s and %s", p, m.origin[p], file)
			}
		}
		*existing = *value
		m.setOrigin(p, value, file)
	}
	return nil
}

// setOrigin records file as the origin of p and every path below it.
func (m *merger) setOrigin(p string, n *yaml.Node, file string) {
	m.origin[p] = file
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		m.setOrigin(p+"/"+n.Content[i].Value, n.Content[i+1], file)
	}
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func sameValue(a, b *yaml.Node) (bool, error) {
	var x, y any
	if err := a.Decode(&x); err != nil {
		return false, err
	}
	if err := b.Decode(&y); err != nil {
		return false, err
	}
	return reflect.DeepEqual(x, y), nil
}
