package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	json "github.com/goccy/go-json"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"landscape-planner/internal/common/logging"
	"landscape-planner/internal/common/middleware"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/exports"
	"landscape-planner/internal/planner/repository"
	"landscape-planner/internal/planner/workspace"
)

const seed = `
[[vendor]]
id = "V1"
name = "Garden Center"

[[asset]]
id = "oak"
name = "Oak tree"
category = "trees"
price = 500
vendor = "V1"
native_width = 120
native_height = 120

[[asset]]
id = "bench"
name = "Bench"
category = "furniture"
price = 150
`

type testServer struct {
	app       *fiber.App
	exportDir string
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	mem, err := catalog.Parse(seed)
	if err != nil {
		t.Fatal(err)
	}

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.New(db)
	if err := repo.Init(t.Context(), "../../../migrations/001_init_projects.sql"); err != nil {
		t.Fatal(err)
	}

	logger := logging.Discard()
	registry := workspace.NewRegistry(workspace.Options{Catalog: mem, Logger: logger, Concurrency: 2})
	t.Cleanup(registry.Shutdown)

	exportDir := t.TempDir()
	h := NewPlannerHandler(registry, repo, exports.NewFileStorage(exportDir), mem, logger, 2*time.Second)

	app := fiber.New()
	app.Use(middleware.RequireUser())
	h.Register(app)
	return &testServer{app: app, exportDir: exportDir}
}

func (s *testServer) do(t *testing.T, user, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decodeInto[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

type idResponse struct {
	ID string `json:"id"`
}

func TestRequiresUser(t *testing.T) {
	s := newServer(t)
	status, _ := s.do(t, "", http.MethodGet, "/projects", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	s := newServer(t)

	status, body := s.do(t, "alice", http.MethodPost, "/workspaces", nil)
	if status != http.StatusCreated {
		t.Fatalf("open status = %d: %s", status, body)
	}
	ws := decodeInto[workspace.State](t, body)
	base := "/workspaces/" + ws.ID

	status, body = s.do(t, "alice", http.MethodPost, base+"/walls", map[string]any{"length": 100})
	if status != http.StatusCreated {
		t.Fatalf("wall status = %d: %s", status, body)
	}
	wallID := decodeInto[idResponse](t, body).ID

	status, body = s.do(t, "alice", http.MethodPost, base+"/assets", map[string]any{"asset_id": "oak"})
	if status != http.StatusCreated {
		t.Fatalf("asset status = %d: %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodGet, base+"/summary", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"V1"`) || !strings.Contains(string(body), "500") {
		t.Errorf("summary = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodPost, base+"/rotate", map[string]any{"id": wallID, "angle": 88})
	if status != http.StatusOK || !strings.Contains(string(body), `"angle":90`) {
		t.Errorf("rotate = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodPut, base+"/form", map[string]any{"x": 5, "y": 6, "w": 240, "h": 60, "angle": 0})
	if status != http.StatusOK {
		t.Fatalf("form status = %d: %s", status, body)
	}
	st := decodeInto[workspace.State](t, body)
	if st.Form == nil || st.Form.W != 240 || st.Form.H != 60 {
		t.Errorf("form = %+v", st.Form)
	}

	status, _ = s.do(t, "alice", http.MethodPut, base+"/form", map[string]any{"x": 5})
	if status != http.StatusBadRequest {
		t.Errorf("incomplete form status = %d, want 400", status)
	}

	status, _ = s.do(t, "alice", http.MethodPost, base+"/assets", map[string]any{"asset_id": "ghost"})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("unknown asset status = %d, want 422", status)
	}

	status, _ = s.do(t, "alice", http.MethodPost, base+"/walls", map[string]any{"length": 0})
	if status != http.StatusBadRequest {
		t.Errorf("zero wall status = %d, want 400", status)
	}

	status, body = s.do(t, "alice", http.MethodGet, base+"/render.svg?export=1", nil)
	if status != http.StatusOK || strings.Contains(string(body), `class="grid"`) || !strings.Contains(string(body), "<svg") {
		t.Errorf("render = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodPost, base+"/export", nil)
	if status != http.StatusCreated {
		t.Fatalf("export status = %d: %s", status, body)
	}
	exp := decodeInto[exports.Export](t, body)
	if _, err := os.Stat(exp.Path); err != nil {
		t.Errorf("export file: %v", err)
	}

	status, body = s.do(t, "alice", http.MethodPost, base+"/export?format=json", nil)
	if status != http.StatusCreated {
		t.Fatalf("json export status = %d: %s", status, body)
	}
	exp = decodeInto[exports.Export](t, body)
	if data, err := os.ReadFile(exp.Path); err != nil || !strings.Contains(string(data), `"assetRef": "oak"`) {
		t.Errorf("json export = %s, %v", data, err)
	}

	status, _ = s.do(t, "bob", http.MethodGet, base, nil)
	if status != http.StatusForbidden {
		t.Errorf("foreign workspace status = %d, want 403", status)
	}

	status, _ = s.do(t, "alice", http.MethodDelete, base, nil)
	if status != http.StatusNoContent {
		t.Errorf("close status = %d", status)
	}
	status, _ = s.do(t, "alice", http.MethodGet, base, nil)
	if status != http.StatusNotFound {
		t.Errorf("closed workspace status = %d, want 404", status)
	}
}

func TestSaveAndReopenProject(t *testing.T) {
	s := newServer(t)

	_, body := s.do(t, "alice", http.MethodPost, "/workspaces", nil)
	base := "/workspaces/" + decodeInto[workspace.State](t, body).ID

	s.do(t, "alice", http.MethodPut, base+"/plot", map[string]any{"width": 1000, "height": 700})
	s.do(t, "alice", http.MethodPost, base+"/walls", map[string]any{"length": 100})
	s.do(t, "alice", http.MethodPost, base+"/assets", map[string]any{"asset_id": "oak"})
	s.do(t, "alice", http.MethodPost, base+"/assets", map[string]any{"asset_id": "bench"})

	status, body := s.do(t, "alice", http.MethodPost, base+"/save", map[string]any{"name": "Backyard"})
	if status != http.StatusCreated {
		t.Fatalf("save status = %d: %s", status, body)
	}
	projectID := decodeInto[idResponse](t, body).ID

	// Second save updates the same project.
	status, body = s.do(t, "alice", http.MethodPost, base+"/save", map[string]any{"description": "v2"})
	if status != http.StatusOK || decodeInto[idResponse](t, body).ID != projectID {
		t.Fatalf("resave = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodGet, "/projects", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "Backyard") {
		t.Errorf("projects = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodPost, "/workspaces", map[string]any{"project_id": projectID})
	if status != http.StatusCreated {
		t.Fatalf("reopen status = %d: %s", status, body)
	}
	var reopened struct {
		Workspace workspace.State `json:"workspace"`
		Load      struct {
			Inserted int `json:"inserted"`
		} `json:"load"`
	}
	if err := json.Unmarshal(body, &reopened); err != nil {
		t.Fatal(err)
	}
	st := reopened.Workspace
	if reopened.Load.Inserted != 2 || len(st.Entities) != 3 || st.ProjectID != projectID {
		t.Fatalf("reopened = %s", body)
	}
	if st.Plot.Width != 1000 || st.Name != "Backyard" || st.Description != "v2" {
		t.Errorf("reopened plot/meta = %+v", st)
	}
	if st.Summary.Total.String() != "650" {
		t.Errorf("total = %s, want 650", st.Summary.Total)
	}

	status, _ = s.do(t, "bob", http.MethodPost, "/workspaces", map[string]any{"project_id": projectID})
	if status != http.StatusForbidden {
		t.Errorf("foreign project status = %d, want 403", status)
	}

	status, _ = s.do(t, "alice", http.MethodDelete, "/projects/"+projectID, nil)
	if status != http.StatusNoContent {
		t.Errorf("delete status = %d", status)
	}
	status, _ = s.do(t, "alice", http.MethodGet, "/projects/"+projectID, nil)
	if status != http.StatusNotFound {
		t.Errorf("deleted project status = %d", status)
	}
}

func TestAssetSearch(t *testing.T) {
	s := newServer(t)

	status, body := s.do(t, "alice", http.MethodGet, "/assets?q=OAK", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"oak"`) || strings.Contains(string(body), `"bench"`) {
		t.Errorf("search = %d %s", status, body)
	}

	status, body = s.do(t, "alice", http.MethodGet, "/assets/categories", nil)
	if status != http.StatusOK || string(body) != `["trees","furniture"]` {
		t.Errorf("categories = %d %s", status, body)
	}
}
