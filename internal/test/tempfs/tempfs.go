// Package tempfs creates throwaway directory trees for tests.
package tempfs

import (
	"os"
	"path/filepath"
	"testing"
)

// WithTempFS writes files (path to content, slash separated) into a fresh
// temporary directory and runs f with its path. The directory is removed
// when the test ends.
func WithTempFS(t *testing.T, files map[string]string, f func(t *testing.T, root string)) {
	t.Helper()

	root := t.TempDir()
	Write(t, root, files)
	f(t, root)
}

// Write adds files to an existing directory.
func Write(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
