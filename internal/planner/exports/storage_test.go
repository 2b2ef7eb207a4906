package exports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveSVG(t *testing.T) {
	root := t.TempDir()
	s := NewFileStorage(root)

	exp, err := s.SaveSVG("user-1", "ws-1", "<svg/>")
	if err != nil {
		t.Fatalf("SaveSVG() error = %v", err)
	}
	if exp.Path != filepath.Join(root, "user-1", "ws-1.svg") || exp.Bytes != 6 {
		t.Errorf("export = %+v", exp)
	}
	data, err := os.ReadFile(exp.Path)
	if err != nil || string(data) != "<svg/>" {
		t.Errorf("file = %q, %v", data, err)
	}

	// Re-export overwrites.
	if _, err := s.SaveSVG("user-1", "ws-1", "<svg></svg>"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(exp.Path)
	if string(data) != "<svg></svg>" {
		t.Errorf("file after overwrite = %q", data)
	}
}

func TestSaveDocument(t *testing.T) {
	s := NewFileStorage(t.TempDir())
	exp, err := s.SaveDocument("u", "w", []byte(`{"name":"x"}`))
	if err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	if !strings.HasSuffix(exp.Path, filepath.Join("u", "json", "w.json")) {
		t.Errorf("path = %s", exp.Path)
	}
}

func TestPathsStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	s := NewFileStorage(root)

	tests := []struct{ user, ws string }{
		{"../../etc", "passwd"},
		{"..", ".."},
		{"a/b", "c\\d"},
		{"", ""},
	}
	for _, tt := range tests {
		p := s.SVGPath(tt.user, tt.ws)
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			t.Errorf("SVGPath(%q, %q) = %s escapes root", tt.user, tt.ws, p)
		}
	}
}
