package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSeed = `
[[vendor]]
id = "V1"
name = "Garden Center"

[[asset]]
id = "A1"
name = "Oak"
category = "trees"
price = 500
vendor = "V1"

[[asset]]
id = "A2"
name = "Bench"
category = "furniture"
price = "150.50"
`

const testDocument = `{
  "name": "Backyard",
  "description": "",
  "plot": {"shapeKind": "Rectangle", "width": 800, "height": 600},
  "walls": [{"x": 0, "y": 0, "length": 100, "rotationDegrees": 90}],
  "entities": [
    {"assetRef": "A1", "x": 10, "y": 20, "scaleFactor": 1, "rotationDegrees": 0},
    {"assetRef": "A2", "x": 50, "y": 60, "scaleFactor": 2, "rotationDegrees": 45},
    {"assetRef": "gone", "x": 0, "y": 0, "scaleFactor": 1, "rotationDegrees": 0}
  ]
}`

func writeFixtures(t *testing.T) (seed, doc string) {
	t.Helper()
	dir := t.TempDir()
	seed = filepath.Join(dir, "catalog.toml")
	doc = filepath.Join(dir, "project.json")
	if err := os.WriteFile(seed, []byte(testSeed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte(testDocument), 0o644); err != nil {
		t.Fatal(err)
	}
	return seed, doc
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCommand(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSummary(t *testing.T) {
	seed, doc := writeFixtures(t)

	out, err := run(t, "summary", doc, "--catalog", seed)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"total: 650.5", "2 loaded, 1 skipped", "V1", "Garden Center"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "summary", doc, "--catalog", seed, "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"totalPrice"`) {
		t.Errorf("json output = %s", out)
	}
}

func TestRender(t *testing.T) {
	seed, doc := writeFixtures(t)
	target := filepath.Join(t.TempDir(), "out.svg")

	if _, err := run(t, "render", doc, "--catalog", seed, "-o", target); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	if !strings.Contains(svg, "<svg") || strings.Contains(svg, `class="grid"`) {
		t.Errorf("unexpected svg:\n%s", svg)
	}
}

func TestValidate(t *testing.T) {
	_, doc := writeFixtures(t)

	out, err := run(t, "validate", doc)
	if err != nil || !strings.Contains(out, "1 walls, 3 assets") {
		t.Errorf("validate = %q, %v", out, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{"plot":{"shapeKind":"Rectangle","width":-1,"height":10},"walls":[],"entities":[]}`), 0o644)
	if _, err := run(t, "validate", bad); err == nil {
		t.Error("expected error for negative plot width")
	}

	if _, err := run(t, "validate", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAssets(t *testing.T) {
	seed, _ := writeFixtures(t)

	tests := []struct {
		args    []string
		want    []string
		notWant []string
	}{
		{[]string{}, []string{"A1", "A2", "150.5"}, nil},
		{[]string{"-q", "oak"}, []string{"A1", "V1"}, []string{"A2"}},
		{[]string{"--category", "furniture"}, []string{"A2"}, []string{"A1"}},
	}
	for _, tt := range tests {
		out, err := run(t, append([]string{"assets", "-c", seed}, tt.args...)...)
		if err != nil {
			t.Fatal(err)
		}
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Errorf("%v: missing %q in\n%s", tt.args, w, out)
			}
		}
		for _, w := range tt.notWant {
			if strings.Contains(out, w) {
				t.Errorf("%v: unexpected %q in\n%s", tt.args, w, out)
			}
		}
	}
}
