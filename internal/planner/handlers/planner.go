package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	json "github.com/goccy/go-json"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/common/middleware"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/codec"
	"landscape-planner/internal/planner/exports"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/repository"
	"landscape-planner/internal/planner/surface"
	"landscape-planner/internal/planner/workspace"
)

// ============================================================
// Planner Handler
// ============================================================

type PlannerHandler struct {
	registry    *workspace.Registry
	repo        *repository.Repository
	storage     *exports.FileStorage
	catalog     catalog.Catalog
	logger      *log.Logger
	loadTimeout time.Duration
}

func NewPlannerHandler(registry *workspace.Registry, repo *repository.Repository, storage *exports.FileStorage, cat catalog.Catalog, logger *log.Logger, loadTimeout time.Duration) *PlannerHandler {
	return &PlannerHandler{
		registry:    registry,
		repo:        repo,
		storage:     storage,
		catalog:     cat,
		logger:      logger.WithPrefix("http"),
		loadTimeout: loadTimeout,
	}
}

// Register mounts every planner route on r.
func (h *PlannerHandler) Register(r fiber.Router) {
	ws := r.Group("/workspaces")
	ws.Post("/", h.OpenWorkspace)
	ws.Get("/", h.ListWorkspaces)
	ws.Get("/:id", h.GetWorkspace)
	ws.Delete("/:id", h.CloseWorkspace)
	ws.Put("/:id/plot", h.UpdatePlot)
	ws.Post("/:id/zoom", h.Zoom)
	ws.Post("/:id/grid/toggle", h.ToggleGrid)
	ws.Post("/:id/assets", h.PlaceAsset)
	ws.Post("/:id/walls", h.AddWall)
	ws.Post("/:id/selection", h.Select)
	ws.Delete("/:id/selection", h.DeleteSelected)
	ws.Put("/:id/form", h.ApplyForm)
	ws.Post("/:id/rotate", h.Rotate)
	ws.Post("/:id/transform", h.CommitTransform)
	ws.Get("/:id/summary", h.Summary)
	ws.Get("/:id/render.svg", h.Render)
	ws.Post("/:id/export", h.Export)
	ws.Post("/:id/save", h.Save)

	r.Get("/projects", h.ListProjects)
	r.Get("/projects/:id", h.GetProject)
	r.Delete("/projects/:id", h.DeleteProject)

	r.Get("/assets", h.ListAssets)
	r.Get("/assets/categories", h.ListCategories)
}

// ============================================================
// Helpers
// ============================================================

func (h *PlannerHandler) fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	body := fiber.Map{"error": err.Error()}
	if code := apperrors.GetCode(err); code != "" {
		body["code"] = code
	}
	return c.Status(status).JSON(body)
}

func statusOf(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeResolution:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// decode parses an optional JSON body into target.
func decode(c fiber.Ctx, target any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), target); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, err, "invalid json")
	}
	return nil
}

func (h *PlannerHandler) workspace(c fiber.Ctx) (*workspace.Workspace, error) {
	return h.registry.Get(middleware.UserID(c), c.Params("id"))
}

func (h *PlannerHandler) state(c fiber.Ctx, w *workspace.Workspace, status int) error {
	st, err := w.State(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(status).JSON(st)
}

// ============================================================
// Workspaces
// ============================================================

type openRequest struct {
	ProjectID string `json:"project_id"`
}

// OpenWorkspace creates a workspace, optionally loading a stored project.
func (h *PlannerHandler) OpenWorkspace(c fiber.Ctx) error {
	var req openRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	userID := middleware.UserID(c)

	var stored *models.StoredProject
	if req.ProjectID != "" {
		var err error
		if stored, err = h.repo.Get(c.Context(), userID, req.ProjectID); err != nil {
			return h.fail(c, err)
		}
	}

	w := h.registry.Open(c.Context(), userID)
	if stored == nil {
		h.logger.Info("workspace opened", "user", userID, "workspace", w.ID)
		return h.state(c, w, http.StatusCreated)
	}

	result, err := h.load(c.Context(), w, stored)
	if err != nil {
		_ = h.registry.Close(userID, w.ID)
		return h.fail(c, err)
	}
	h.logger.Info("workspace opened", "user", userID, "workspace", w.ID, "project", stored.ID,
		"inserted", result.Inserted, "skipped", result.Skipped)

	st, err := w.State(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"workspace": st, "load": result})
}

func (h *PlannerHandler) load(ctx context.Context, w *workspace.Workspace, stored *models.StoredProject) (codec.Result, error) {
	load, err := w.Load(ctx, stored.Document)
	if err != nil {
		return codec.Result{}, err
	}
	if err := w.SetProjectID(ctx, stored.ID); err != nil {
		return codec.Result{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.loadTimeout)
	defer cancel()
	if err := load.Wait(waitCtx); err != nil {
		h.logger.Warn("load still resolving", "workspace", w.ID, "err", err)
	}
	return load.Result(), nil
}

func (h *PlannerHandler) ListWorkspaces(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"workspaces": h.registry.List(middleware.UserID(c))})
}

func (h *PlannerHandler) GetWorkspace(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

func (h *PlannerHandler) CloseWorkspace(c fiber.Ctx) error {
	if err := h.registry.Close(middleware.UserID(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Plot
// ============================================================

type plotRequest struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Outline string  `json:"outline"`
}

// UpdatePlot resizes the plot, or sets a polygon outline given as path data.
func (h *PlannerHandler) UpdatePlot(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req plotRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	if req.Outline != "" {
		err = w.SetOutline(c.Context(), req.Outline)
	} else {
		err = w.Resize(c.Context(), req.Width, req.Height)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

type zoomRequest struct {
	Factor *float64 `json:"factor"`
	Step   string   `json:"step"`
}

func (h *PlannerHandler) Zoom(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req zoomRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	switch {
	case req.Factor != nil:
		err = w.SetZoom(c.Context(), *req.Factor)
	case req.Step == "in" || req.Step == "out":
		_, err = w.StepZoom(c.Context(), req.Step == "in")
	default:
		err = apperrors.New(apperrors.ErrCodeValidation, `zoom needs "factor" or "step": "in"|"out"`)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

func (h *PlannerHandler) ToggleGrid(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	visible, err := w.ToggleGrid(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"gridVisible": visible})
}

// ============================================================
// Entities
// ============================================================

type placeRequest struct {
	AssetID string `json:"asset_id"`
}

func (h *PlannerHandler) PlaceAsset(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req placeRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.AssetID == "" {
		return h.fail(c, apperrors.New(apperrors.ErrCodeValidation, "asset_id required"))
	}

	id, err := w.PlaceAsset(c.Context(), req.AssetID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": id})
}

type wallRequest struct {
	Length float64 `json:"length"`
}

func (h *PlannerHandler) AddWall(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req wallRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	id, err := w.AddWall(c.Context(), req.Length)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": id})
}

type selectRequest struct {
	ID string   `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// Select selects by id, by a point on the plot, or clears with an empty body.
func (h *PlannerHandler) Select(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req selectRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}

	if req.X != nil && req.Y != nil {
		_, err = w.SelectAt(c.Context(), *req.X, *req.Y)
	} else {
		err = w.Select(c.Context(), req.ID)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

func (h *PlannerHandler) DeleteSelected(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	removed, err := w.DeleteSelected(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *PlannerHandler) ApplyForm(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	raw := map[string]any{}
	if err := decode(c, &raw); err != nil {
		return h.fail(c, err)
	}
	if err := w.ApplyForm(c.Context(), raw); err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

type rotateRequest struct {
	ID    string  `json:"id"`
	Angle float64 `json:"angle"`
}

func (h *PlannerHandler) Rotate(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req rotateRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	angle, err := w.DragRotate(c.Context(), req.ID, req.Angle)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"id": req.ID, "angle": angle})
}

type transformRequest struct {
	ID        string            `json:"id"`
	Transform surface.Transform `json:"transform"`
}

func (h *PlannerHandler) CommitTransform(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req transformRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	if err := w.CommitTransform(c.Context(), req.ID, req.Transform); err != nil {
		return h.fail(c, err)
	}
	return h.state(c, w, http.StatusOK)
}

// ============================================================
// Summary & Export
// ============================================================

// Summary refreshes the catalog snapshot before answering. If the catalog is
// unreachable the last computed summary is returned.
func (h *PlannerHandler) Summary(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	agg, err := w.RefreshCatalog(c.Context())
	if err != nil {
		h.logger.Warn("catalog refresh failed", "workspace", w.ID, "err", err)
		if agg, err = w.Summary(c.Context()); err != nil {
			return h.fail(c, err)
		}
	}
	return c.JSON(agg)
}

func (h *PlannerHandler) Render(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	export := c.Query("export") == "1" || c.Query("export") == "true"
	svg, err := w.Render(c.Context(), export)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

// Export writes the plan under EXPORT_DIR: the SVG render by default, or
// the project document with ?format=json.
func (h *PlannerHandler) Export(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}

	var exp exports.Export
	if c.Query("format") == "json" {
		exp, err = h.exportDocument(c.Context(), w)
	} else {
		exp, err = h.exportSVG(c.Context(), w)
	}
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("plan exported", "workspace", w.ID, "path", exp.Path)
	return c.Status(http.StatusCreated).JSON(exp)
}

func (h *PlannerHandler) exportSVG(ctx context.Context, w *workspace.Workspace) (exports.Export, error) {
	svg, err := w.Render(ctx, true)
	if err != nil {
		return exports.Export{}, err
	}
	return h.storage.SaveSVG(w.UserID, w.ID, svg)
}

func (h *PlannerHandler) exportDocument(ctx context.Context, w *workspace.Workspace) (exports.Export, error) {
	doc, err := w.Document(ctx)
	if err != nil {
		return exports.Export{}, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return exports.Export{}, apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode document")
	}
	return h.storage.SaveDocument(w.UserID, w.ID, data)
}

// ============================================================
// Projects
// ============================================================

// Save serializes the workspace and creates or updates its stored project.
func (h *PlannerHandler) Save(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return h.fail(c, err)
	}
	var meta codec.Metadata
	if err := decode(c, &meta); err != nil {
		return h.fail(c, err)
	}
	ctx := c.Context()

	if err := w.SetMetadata(ctx, meta); err != nil {
		return h.fail(c, err)
	}
	doc, err := w.Document(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	projectID, err := w.ProjectID(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	var stored *models.StoredProject
	status := http.StatusOK
	if projectID == "" {
		stored, err = h.repo.Create(ctx, w.UserID, doc)
		status = http.StatusCreated
	} else {
		stored, err = h.repo.Update(ctx, w.UserID, projectID, doc)
	}
	if err != nil {
		return h.fail(c, err)
	}
	if err := w.SetProjectID(ctx, stored.ID); err != nil {
		return h.fail(c, err)
	}

	if len(doc.Warnings) > 0 {
		h.logger.Warn("project saved with warnings", "project", stored.ID, "warnings", doc.Warnings)
	}
	return c.Status(status).JSON(stored)
}

func (h *PlannerHandler) ListProjects(c fiber.Ctx) error {
	list, err := h.repo.ListByUser(c.Context(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *PlannerHandler) GetProject(c fiber.Ctx) error {
	p, err := h.repo.Get(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *PlannerHandler) DeleteProject(c fiber.Ctx) error {
	if err := h.repo.Delete(c.Context(), middleware.UserID(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Catalog
// ============================================================

func (h *PlannerHandler) ListAssets(c fiber.Ctx) error {
	items, err := h.catalog.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(catalog.Filter(items, c.Query("q"), c.Query("category")))
}

func (h *PlannerHandler) ListCategories(c fiber.Ctx) error {
	items, err := h.catalog.List(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(catalog.Categories(items))
}
