package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomster/embuild/cmd"
	"github.com/tomster/embuild/internal/test/tempfs"
)

var project = map[string]string{
	"embuild.yaml": `
name: my-app
sourcemaps: {enabled: false}
auto_run: false
vendor_files:
  vendor/shim.js: {}
`,
	"app/app.js":         "app",
	"app/index.html":     "<html></html>",
	"app/styles/app.css": "body { color: red; }",
	"vendor/shim.js":     "shim",
	"public/robots.txt":  "robots",
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := cmd.New()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	if err != nil {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

func TestBuildAndAssetSizes(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		metrics := filepath.Join(root, "metrics.txt")

		out, err := run(t, "build",
			"-c", filepath.Join(root, "embuild.yaml"),
			"-e", "prod",
			"--metrics-file", metrics,
			"--log-level", "error",
		)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "vendor.js") {
			t.Fatalf("expected asset sizes after a production build, got:\n%s", out)
		}

		bs, err := os.ReadFile(filepath.Join(root, "dist", "assets", "my-app.css"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("body{color:red}", string(bs)); diff != "" {
			t.Fatal("unexpected production styles (-want, +got)", diff)
		}

		bs, err = os.ReadFile(metrics)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(bs), "embuild_build_count_total") {
			t.Fatalf("expected build metrics, got:\n%s", bs)
		}

		out, err = run(t, "asset-sizes", "-o", filepath.Join(root, "dist"), "--json")
		if err != nil {
			t.Fatal(err)
		}
		var report struct {
			Files []struct {
				Name string `json:"name"`
			} `json:"files"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, f := range report.Files {
			names = append(names, filepath.Base(f.Name))
		}
		exp := []string{"my-app.css", "my-app.js", "vendor.css", "vendor.js"}
		if diff := cmp.Diff(exp, names); diff != "" {
			t.Fatal("unexpected assets (-want, +got)", diff)
		}
	})
}

func TestEnvironmentFromEnv(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		t.Setenv("EMBER_ENV", "production")

		out, err := run(t, "build", "-c", filepath.Join(root, "embuild.yaml"), "--suppress-sizes", "--log-format", "json")
		if err != nil {
			t.Fatal(err)
		}
		if out != "" {
			t.Fatalf("expected no output with suppressed sizes, got:\n%s", out)
		}

		bs, err := os.ReadFile(filepath.Join(root, "dist", "assets", "my-app.css"))
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != "body{color:red}" {
			t.Fatalf("expected minified production styles, got %q", bs)
		}
	})
}

func TestTree(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		out, err := run(t, "tree", "-c", filepath.Join(root, "embuild.yaml"), "-e", "production")
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range []string{"my-app", "assets", "my-app.js", "vendor.js", "robots.txt", "index.html"} {
			if !strings.Contains(out, s) {
				t.Errorf("expected %q in tree:\n%s", s, out)
			}
		}
		if _, err := os.Stat(filepath.Join(root, "dist")); !os.IsNotExist(err) {
			t.Fatalf("expected tree not to write output, got %v", err)
		}
	})
}

func TestConfig(t *testing.T) {
	tempfs.WithTempFS(t, project, func(t *testing.T, root string) {
		out, err := run(t, "config", "validate", "-c", filepath.Join(root, "embuild.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("configuration of my-app is valid\n", out); diff != "" {
			t.Fatal("unexpected output (-want, +got)", diff)
		}

		tempfs.Write(t, root, map[string]string{"bad.yaml": "name: x\nunknown: 1\n"})
		if _, err := run(t, "config", "validate", "-c", filepath.Join(root, "bad.yaml")); err == nil {
			t.Fatal("expected validation error")
		}
	})

	out, err := run(t, "config", "schema")
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatal(err)
	}
	if _, ok := schema["properties"]; !ok {
		t.Fatalf("expected a schema with properties, got %v", schema)
	}
}

func TestUnknownLogLevel(t *testing.T) {
	if _, err := run(t, "config", "schema", "--log-level", "loud"); err == nil {
		t.Fatal("expected error")
	}
}
