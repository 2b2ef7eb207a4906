package exports

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	apperrors "landscape-planner/internal/common/errors"
)

// ============================================================
// File Storage
// ============================================================

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStorage keeps exported plans under root/<userID>/.
type FileStorage struct {
	root string
	now  func() time.Time
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root, now: time.Now}
}

func (s *FileStorage) UserDir(userID string) string {
	return filepath.Join(s.root, sanitize(userID))
}

// SVGPath returns the export path of a workspace; every export of the same
// workspace overwrites the previous one.
func (s *FileStorage) SVGPath(userID, workspaceID string) string {
	return filepath.Join(s.UserDir(userID), sanitize(workspaceID)+".svg")
}

// DocumentPath is where a project document snapshot is written.
func (s *FileStorage) DocumentPath(userID, workspaceID string) string {
	return filepath.Join(s.UserDir(userID), "json", sanitize(workspaceID)+".json")
}

func (s *FileStorage) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, err, "mkdir %s", dir)
	}
	return nil
}

// SaveFile writes data to target, creating parent directories.
func (s *FileStorage) SaveFile(target string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, err, "write %s", target)
	}
	return nil
}

// Export is the result of one saved export.
type Export struct {
	Path      string    `json:"path"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSVG stores the export SVG of a workspace.
func (s *FileStorage) SaveSVG(userID, workspaceID, svg string) (Export, error) {
	target := s.SVGPath(userID, workspaceID)
	if err := s.SaveFile(target, []byte(svg)); err != nil {
		return Export{}, err
	}
	return Export{Path: target, Bytes: len(svg), CreatedAt: s.now()}, nil
}

// SaveDocument stores an encoded project document next to the exports.
func (s *FileStorage) SaveDocument(userID, workspaceID string, data []byte) (Export, error) {
	target := s.DocumentPath(userID, workspaceID)
	if err := s.SaveFile(target, data); err != nil {
		return Export{}, err
	}
	return Export{Path: target, Bytes: len(data), CreatedAt: s.now()}, nil
}

func sanitize(name string) string {
	clean := unsafeName.ReplaceAllString(name, "_")
	if clean == "" || clean == "." || clean == ".." {
		return fmt.Sprintf("_%x", name)
	}
	return clean
}
