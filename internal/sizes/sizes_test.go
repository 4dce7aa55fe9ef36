package sizes_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/internal/sizes"
	"github.com/tomster/embuild/internal/test/tempfs"
)

func TestCollect(t *testing.T) {
	files := map[string]string{
		"index.html":              "<html></html>",
		"assets/my-app.js":        strings.Repeat("a", 1000),
		"assets/my-app.css":       "body {}",
		"assets/vendor.js":        "vendor",
		"assets/tests.js":         "tests",
		"assets/test-support.js":  "support",
		"assets/test-support.css": "support",
		"tests/index.html":        "tests",
		"fonts/icon.woff":         "woff",
	}

	tempfs.WithTempFS(t, files, func(t *testing.T, root string) {
		r, err := sizes.Collect(root)
		if err != nil {
			t.Fatal(err)
		}

		var names []string
		for _, a := range r.Files {
			names = append(names, a.Name)
			if a.GzipSize <= 0 {
				t.Errorf("expected a gzip size for %s", a.Name)
			}
		}
		exp := []string{
			filepath.Join(root, "assets", "my-app.css"),
			filepath.Join(root, "assets", "my-app.js"),
			filepath.Join(root, "assets", "vendor.js"),
		}
		if diff := cmp.Diff(exp, names); diff != "" {
			t.Fatal("unexpected files (-want, +got)", diff)
		}
		if r.Files[1].Size != 1000 || r.Files[1].GzipSize >= 1000 {
			t.Fatalf("unexpected sizes %+v", r.Files[1])
		}

		var buf bytes.Buffer
		if err := r.WriteJSON(&buf); err != nil {
			t.Fatal(err)
		}
		var decoded sizes.Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(*r, decoded); diff != "" {
			t.Fatal("unexpected json report (-want, +got)", diff)
		}

		buf.Reset()
		if err := r.WriteTable(&buf); err != nil {
			t.Fatal(err)
		}
		for _, s := range []string{"my-app.js", "1.0 kB", "vendor.js"} {
			if !strings.Contains(buf.String(), s) {
				t.Errorf("expected %q in table:\n%s", s, buf.String())
			}
		}
	})
}

func TestCollectErrors(t *testing.T) {
	if _, err := sizes.Collect(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}

	tempfs.WithTempFS(t, map[string]string{"index.html": "x"}, func(t *testing.T, root string) {
		if _, err := sizes.Collect(root); err == nil {
			t.Fatal("expected error without assets")
		}
	})
}
