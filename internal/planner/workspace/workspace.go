// Package workspace wires one editing session together: plot, scene graph,
// transform editor, canvas surface, cost summary and project codec, all owned
// by a single loop goroutine. Exported methods are safe for concurrent use;
// they hand work to the loop and wait for it.
package workspace

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/codec"
	"landscape-planner/internal/planner/editor"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/plot"
	"landscape-planner/internal/planner/pricing"
	"landscape-planner/internal/planner/scene"
	"landscape-planner/internal/planner/surface"
)

const (
	wallStroke = "#5d4037"
	loopBuffer = 64
)

// Options are shared by every workspace of a registry.
type Options struct {
	Catalog     catalog.Service
	Logger      *log.Logger
	Concurrency int
}

type Workspace struct {
	ID     string
	UserID string

	loop    *Loop
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *log.Logger
	catalog catalog.Service
	codec   *codec.Codec
	created time.Time

	// Loop-owned state.
	canvas    *surface.Canvas
	plot      *plot.Space
	graph     *scene.Graph
	editor    *editor.Editor
	snapshot  pricing.Snapshot
	summary   models.Aggregation
	meta      codec.Metadata
	projectID string
}

var _ surface.Listener = (*Workspace)(nil)

// New creates a workspace with an empty default plot and starts its loop.
// A catalog snapshot failure is logged; pricing then excludes every asset
// until a later mutation manages to take a snapshot.
func New(ctx context.Context, id, userID string, opts Options) *Workspace {
	logger := opts.Logger.WithPrefix("workspace").With("workspace", id)
	loop := NewLoop(loopBuffer, logger)
	runCtx, cancel := context.WithCancel(context.Background())

	w := &Workspace{
		ID:      id,
		UserID:  userID,
		loop:    loop,
		ctx:     runCtx,
		cancel:  cancel,
		logger:  logger,
		catalog: opts.Catalog,
		codec:   codec.New(opts.Catalog, loop, opts.Logger, opts.Concurrency),
		created: time.Now(),
		canvas:  surface.NewCanvas(plot.DefaultWidth, plot.DefaultHeight),
		graph:   scene.New(),
	}
	w.plot = plot.New(plot.DefaultWidth, plot.DefaultHeight, w.canvas)
	w.graph.Subscribe(w.sync)
	w.editor = editor.New(w.graph)

	if snap, err := opts.Catalog.Snapshot(ctx); err != nil {
		logger.Warn("catalog snapshot unavailable", "err", err)
	} else {
		w.snapshot = snap
	}
	w.recompute()

	loop.Start()
	return w
}

// Close stops pending resolutions and the loop.
func (w *Workspace) Close() {
	w.cancel()
	w.loop.Stop()
}

// ============================================================
// Scene reactions
// ============================================================

func (w *Workspace) sync(c scene.Change) {
	switch c.Kind {
	case scene.ChangeAdded:
		d, g := drawableOf(c.Entity)
		w.canvas.Add(d, g)
		w.restack()
	case scene.ChangeUpdated:
		d, g := drawableOf(c.Entity)
		w.canvas.Add(d, g)
	case scene.ChangeRemoved:
		w.canvas.Remove(c.ID)
	case scene.ChangeCleared:
		for _, d := range w.canvas.Drawables() {
			if d.Kind != surface.KindGrid {
				w.canvas.Remove(d.ID)
			}
		}
	case scene.ChangeSelection:
		return
	}
	w.recompute()
}

func (w *Workspace) recompute() {
	w.summary = pricing.Recompute(w.graph, w.snapshot)
}

// restack keeps the canvas paint order equal to the scene order. Entities
// resolved out of order land at their reserved slot in the graph.
func (w *Workspace) restack() {
	ids := make([]string, 0, w.graph.Len())
	for e := range w.graph.Entities() {
		ids = append(ids, e.EntityID())
	}
	w.canvas.Restack(ids)
}

// fetchSnapshot reads the catalog outside the loop. On failure it returns
// nil and the previous snapshot stays in use.
func (w *Workspace) fetchSnapshot(ctx context.Context) *catalog.Memory {
	snap, err := w.catalog.Snapshot(ctx)
	if err != nil {
		w.logger.Warn("catalog snapshot unavailable", "err", err)
		return nil
	}
	return snap
}

// useSnapshot installs snap and reprices the scene. Loop goroutine only.
func (w *Workspace) useSnapshot(snap *catalog.Memory) {
	if snap != nil {
		w.snapshot = snap
	}
	w.recompute()
}

// mutate runs fn on the loop against a catalog snapshot taken just before,
// so the summary never prices against stale catalog data.
func (w *Workspace) mutate(ctx context.Context, fn func() error) error {
	snap := w.fetchSnapshot(ctx)
	return w.loop.Do(ctx, func() error {
		w.useSnapshot(snap)
		return fn()
	})
}

func drawableOf(e models.Entity) (surface.Drawable, surface.Geometry) {
	switch v := e.(type) {
	case *models.AssetInstance:
		return surface.Drawable{
				ID:        v.ID,
				Kind:      surface.KindAsset,
				Transform: surface.Transform{X: v.X, Y: v.Y, AngleDegrees: v.Rotation, ScaleX: v.ScaleX, ScaleY: v.ScaleY},
			}, surface.Geometry{
				Width:  v.BaseWidth,
				Height: v.BaseHeight,
				Href:   v.PreviewURL,
			}
	case *models.WallSegment:
		return surface.Drawable{
				ID:        v.ID,
				Kind:      surface.KindWall,
				Transform: surface.Transform{X: v.X, Y: v.Y, AngleDegrees: v.Rotation, ScaleX: 1, ScaleY: 1},
			}, surface.Geometry{
				X2:          v.Length,
				StrokeWidth: models.WallThickness,
				Stroke:      wallStroke,
			}
	}
	return surface.Drawable{}, surface.Geometry{}
}

// ============================================================
// Surface gestures (loop goroutine)
// ============================================================

func (w *Workspace) OnSelectionChanged(candidates []string) {
	w.graph.Selection().OnSelectionChanged(candidates)
}

func (w *Workspace) OnDragRotate(id string, rawAngle float64) float64 {
	angle, _ := w.editor.Rotate(id, rawAngle)
	return angle
}

func (w *Workspace) OnTransformCommitted(id string, t surface.Transform) {
	w.editor.CommitTransform(id, t)
}

// ============================================================
// Scene operations
// ============================================================

// PlaceAsset resolves ref and adds an instance on top of the scene. The slot
// is reserved when the call starts, so instances keep call order even when
// resolutions finish out of order. A scene cleared in the meantime discards
// the result.
func (w *Workspace) PlaceAsset(ctx context.Context, ref string) (string, error) {
	var order, gen uint64
	if err := w.loop.Do(ctx, func() error {
		order, gen = w.graph.Reserve(1), w.graph.Generation()
		return nil
	}); err != nil {
		return "", err
	}

	visual, err := w.catalog.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	var id string
	err = w.mutate(ctx, func() error {
		if w.graph.Generation() != gen {
			return apperrors.New(apperrors.ErrCodeResolution, "scene was reset while resolving %q", ref)
		}
		inst := scene.NewAssetInstance(ref, visual)
		w.graph.InsertAsset(order, inst)
		w.graph.Selection().Select(inst.ID)
		id = inst.ID
		return nil
	})
	if err == nil {
		w.logger.Debug("asset placed", "ref", ref, "id", id)
	}
	return id, err
}

func (w *Workspace) AddWall(ctx context.Context, length float64) (string, error) {
	var id string
	err := w.mutate(ctx, func() error {
		var err error
		id, err = w.graph.AddWall(length)
		return err
	})
	return id, err
}

// SelectAt selects the topmost entity under (x, y), or clears the selection.
func (w *Workspace) SelectAt(ctx context.Context, x, y float64) (string, error) {
	var id string
	err := w.loop.Do(ctx, func() error {
		w.OnSelectionChanged(w.canvas.HitTest(x, y))
		id = w.graph.Selection().ActiveID()
		return nil
	})
	return id, err
}

// Select selects id; an empty id clears the selection.
func (w *Workspace) Select(ctx context.Context, id string) error {
	return w.loop.Do(ctx, func() error {
		if id == "" {
			w.graph.Selection().Clear()
			return nil
		}
		if !w.graph.Selection().Select(id) {
			return apperrors.New(apperrors.ErrCodeNotFound, "entity %s not found", id)
		}
		return nil
	})
}

// ApplyForm parses raw property input and writes it to the selection.
func (w *Workspace) ApplyForm(ctx context.Context, raw map[string]any) error {
	f, err := editor.ParseForm(raw)
	if err != nil {
		return err
	}
	return w.mutate(ctx, func() error {
		return w.editor.Apply(f)
	})
}

func (w *Workspace) DeleteSelected(ctx context.Context) (bool, error) {
	var removed bool
	err := w.mutate(ctx, func() error {
		removed = w.editor.Delete()
		return nil
	})
	return removed, err
}

// DragRotate applies an interactive rotation and returns the snapped angle.
func (w *Workspace) DragRotate(ctx context.Context, id string, rawAngle float64) (float64, error) {
	var angle float64
	err := w.mutate(ctx, func() error {
		if _, ok := w.graph.Get(id); !ok {
			return apperrors.New(apperrors.ErrCodeNotFound, "entity %s not found", id)
		}
		angle = w.OnDragRotate(id, rawAngle)
		return nil
	})
	return angle, err
}

func (w *Workspace) CommitTransform(ctx context.Context, id string, t surface.Transform) error {
	return w.mutate(ctx, func() error {
		if _, ok := w.graph.Get(id); !ok {
			return apperrors.New(apperrors.ErrCodeNotFound, "entity %s not found", id)
		}
		w.OnTransformCommitted(id, t)
		return nil
	})
}

// ============================================================
// Plot operations
// ============================================================

func (w *Workspace) Resize(ctx context.Context, width, height float64) error {
	return w.loop.Do(ctx, func() error {
		return w.plot.Resize(width, height)
	})
}

func (w *Workspace) SetOutline(ctx context.Context, d string) error {
	points, err := plot.ParseOutline(d)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeValidation, err, "parse outline")
	}
	return w.loop.Do(ctx, func() error {
		w.plot.SetOutline(points)
		width, height := plot.Bounds(points)
		if width > 0 && height > 0 {
			return w.plot.Resize(width, height)
		}
		return nil
	})
}

func (w *Workspace) SetZoom(ctx context.Context, factor float64) error {
	return w.loop.Do(ctx, func() error {
		return w.plot.SetZoom(factor)
	})
}

// StepZoom zooms in or out by one step and returns the new factor.
func (w *Workspace) StepZoom(ctx context.Context, in bool) (float64, error) {
	var zoom float64
	err := w.loop.Do(ctx, func() error {
		if in {
			w.plot.ZoomIn()
		} else {
			w.plot.ZoomOut()
		}
		zoom = w.plot.Zoom
		return nil
	})
	return zoom, err
}

func (w *Workspace) ToggleGrid(ctx context.Context) (bool, error) {
	var visible bool
	err := w.loop.Do(ctx, func() error {
		w.plot.ToggleGrid()
		visible = w.plot.GridVisible
		return nil
	})
	return visible, err
}

// ============================================================
// Pricing
// ============================================================

func (w *Workspace) Summary(ctx context.Context) (models.Aggregation, error) {
	var agg models.Aggregation
	err := w.loop.Do(ctx, func() error {
		agg = w.summary
		return nil
	})
	return agg, err
}

// RefreshCatalog takes a new catalog snapshot and recomputes the summary.
func (w *Workspace) RefreshCatalog(ctx context.Context) (models.Aggregation, error) {
	snap, err := w.catalog.Snapshot(ctx)
	if err != nil {
		return models.Aggregation{}, err
	}
	var agg models.Aggregation
	err = w.loop.Do(ctx, func() error {
		w.useSnapshot(snap)
		agg = w.summary
		return nil
	})
	return agg, err
}

// ============================================================
// Persistence
// ============================================================

// SetMetadata updates the project name and description. Empty values keep
// the current ones.
func (w *Workspace) SetMetadata(ctx context.Context, meta codec.Metadata) error {
	return w.loop.Do(ctx, func() error {
		if meta.Name != "" {
			w.meta.Name = meta.Name
		}
		if meta.Description != "" {
			w.meta.Description = meta.Description
		}
		return nil
	})
}

func (w *Workspace) Document(ctx context.Context) (models.ProjectDocument, error) {
	var doc models.ProjectDocument
	err := w.mutate(ctx, func() error {
		doc = codec.Serialize(w.graph, w.plot, w.meta, w.snapshot)
		return nil
	})
	return doc, err
}

// Load replaces the scene with doc. Asset records keep resolving after Load
// returns; wait on the returned handle to observe the settled scene.
func (w *Workspace) Load(ctx context.Context, doc models.ProjectDocument) (*codec.Load, error) {
	var load *codec.Load
	err := w.mutate(ctx, func() error {
		var err error
		load, err = w.codec.Deserialize(w.ctx, doc, w.graph, w.plot)
		if err != nil {
			return err
		}
		w.meta = codec.Metadata{Name: doc.Name, Description: doc.Description}
		return nil
	})
	if err != nil {
		return nil, err
	}
	go w.repriceAfter(load)
	return load, nil
}

// repriceAfter takes a new snapshot once load has settled, so instances
// resolved during the load are priced against the catalog that resolved them.
func (w *Workspace) repriceAfter(load *codec.Load) {
	select {
	case <-load.Done():
	case <-w.ctx.Done():
		return
	}
	snap := w.fetchSnapshot(w.ctx)
	if snap == nil {
		return
	}
	w.loop.Post(func() {
		if w.graph.Generation() == load.Generation {
			w.useSnapshot(snap)
		}
	})
}

// ProjectID returns the stored project this workspace was opened from or
// last saved to.
func (w *Workspace) ProjectID(ctx context.Context) (string, error) {
	var id string
	err := w.loop.Do(ctx, func() error {
		id = w.projectID
		return nil
	})
	return id, err
}

func (w *Workspace) SetProjectID(ctx context.Context, id string) error {
	return w.loop.Do(ctx, func() error {
		w.projectID = id
		return nil
	})
}

// Render returns the SVG of the surface; export mode omits the grid.
func (w *Workspace) Render(ctx context.Context, export bool) (string, error) {
	var svg string
	err := w.loop.Do(ctx, func() error {
		svg = w.canvas.Render(export)
		return nil
	})
	return svg, err
}

// ============================================================
// State snapshot
// ============================================================

type PlotState struct {
	Width       float64          `json:"width"`
	Height      float64          `json:"height"`
	Zoom        float64          `json:"zoom"`
	GridVisible bool             `json:"gridVisible"`
	GridLines   int              `json:"gridLines"`
	Shape       models.ShapeKind `json:"shapeKind"`
	Points      []models.Point   `json:"points,omitempty"`
}

type EntityState struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	AssetRef string  `json:"assetRef,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotationDegrees"`
}

type State struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"projectId,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Generation  uint64             `json:"generation"`
	Plot        PlotState          `json:"plot"`
	Entities    []EntityState      `json:"entities"`
	Selection   string             `json:"selection,omitempty"`
	Form        *editor.Form       `json:"form,omitempty"`
	Summary     models.Aggregation `json:"summary"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func (w *Workspace) State(ctx context.Context) (State, error) {
	var st State
	err := w.loop.Do(ctx, func() error {
		st = State{
			ID:          w.ID,
			ProjectID:   w.projectID,
			Name:        w.meta.Name,
			Description: w.meta.Description,
			Generation:  w.graph.Generation(),
			Plot: PlotState{
				Width:       w.plot.Width,
				Height:      w.plot.Height,
				Zoom:        w.plot.Zoom,
				GridVisible: w.plot.GridVisible,
				GridLines:   w.plot.GridLines(),
				Shape:       w.plot.Shape,
				Points:      slices.Clone(w.plot.Points),
			},
			Entities:  []EntityState{},
			Selection: w.graph.Selection().ActiveID(),
			Summary:   w.summary,
			CreatedAt: w.created,
		}
		if f, ok := w.editor.Form(); ok {
			st.Form = &f
		}
		for e := range w.graph.Entities() {
			st.Entities = append(st.Entities, entityState(e))
		}
		return nil
	})
	return st, err
}

func entityState(e models.Entity) EntityState {
	f := editor.FormOf(e)
	st := EntityState{
		ID:       e.EntityID(),
		Kind:     e.Kind().String(),
		X:        f.X,
		Y:        f.Y,
		Width:    f.W,
		Height:   f.H,
		Rotation: f.Angle,
	}
	if a, ok := e.(*models.AssetInstance); ok {
		st.AssetRef = a.AssetRef
	}
	return st
}
