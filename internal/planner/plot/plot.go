package plot

import (
	"fmt"
	"math"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/surface"
)

// ============================================================
// Plot Space
// ============================================================

const (
	GridSize   = 50.0 // Базовый шаг сетки при zoom = 1
	MinZoom    = 0.1
	ZoomStep   = 0.1
	gridStroke = "#e0e0e0"

	DefaultWidth  = 800.0
	DefaultHeight = 600.0
)

// Space is the bounded working area with its grid overlay.
type Space struct {
	Width       float64
	Height      float64
	Zoom        float64
	GridVisible bool
	Shape       models.ShapeKind
	Points      []models.Point

	surface surface.Surface
	gridIDs []string
}

// New creates a rectangular plot and draws its grid on s.
func New(width, height float64, s surface.Surface) *Space {
	p := &Space{
		Width:       width,
		Height:      height,
		Zoom:        1,
		GridVisible: true,
		Shape:       models.ShapeRectangle,
		surface:     s,
	}
	s.Resize(width, height)
	p.RedrawGrid()
	return p
}

// Resize replaces the bounds, resizes the surface and redraws the grid.
func (p *Space) Resize(width, height float64) error {
	if !positive(width) || !positive(height) {
		return apperrors.New(apperrors.ErrCodeValidation, "plot size must be positive, got %vx%v", width, height)
	}
	p.Width = width
	p.Height = height
	p.surface.Resize(width, height)
	p.RedrawGrid()
	return nil
}

// SetZoom clamps factor to MinZoom and redraws the grid.
func (p *Space) SetZoom(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return apperrors.New(apperrors.ErrCodeValidation, "zoom must be a number")
	}
	p.Zoom = math.Max(MinZoom, factor)
	p.RedrawGrid()
	return nil
}

func (p *Space) ZoomIn() {
	_ = p.SetZoom(p.Zoom + ZoomStep)
}

func (p *Space) ZoomOut() {
	_ = p.SetZoom(p.Zoom - ZoomStep)
}

// ToggleGrid flips grid visibility and redraws.
func (p *Space) ToggleGrid() {
	p.GridVisible = !p.GridVisible
	p.RedrawGrid()
}

// Step is the on-screen spacing between grid lines.
func (p *Space) Step() float64 {
	return GridSize * p.Zoom
}

// SetOutline stores a polygon outline. Polygon plots are kept for
// persistence only; the working area stays the bounding rectangle.
func (p *Space) SetOutline(points []models.Point) {
	if len(points) == 0 {
		p.Shape = models.ShapeRectangle
		p.Points = nil
		return
	}
	p.Shape = models.ShapePolygon
	p.Points = append([]models.Point(nil), points...)
}

// GridLines returns how many grid drawables the last redraw produced.
func (p *Space) GridLines() int {
	return len(p.gridIDs)
}

// ============================================================
// Grid
// ============================================================

// RedrawGrid removes every previously added grid line before drawing a new
// set, so repeated redraws never accumulate lines.
func (p *Space) RedrawGrid() {
	for _, id := range p.gridIDs {
		p.surface.Remove(id)
	}
	p.gridIDs = p.gridIDs[:0]

	if !p.GridVisible {
		return
	}

	step := p.Step()
	for i := 0; float64(i)*step <= p.Width; i++ {
		x := float64(i) * step
		p.addLine(fmt.Sprintf("grid-v-%d", i), surface.Geometry{X1: x, Y1: 0, X2: x, Y2: p.Height, Stroke: gridStroke, StrokeWidth: 1})
	}
	for i := 0; float64(i)*step <= p.Height; i++ {
		y := float64(i) * step
		p.addLine(fmt.Sprintf("grid-h-%d", i), surface.Geometry{X1: 0, Y1: y, X2: p.Width, Y2: y, Stroke: gridStroke, StrokeWidth: 1})
	}
}

func (p *Space) addLine(id string, g surface.Geometry) {
	p.surface.Add(surface.Drawable{ID: id, Kind: surface.KindGrid, Transform: surface.Identity}, g)
	p.gridIDs = append(p.gridIDs, id)
}

// Record returns the persisted form of the plot.
func (p *Space) Record() models.PlotRecord {
	rec := models.PlotRecord{
		ShapeKind: p.Shape,
		Width:     p.Width,
		Height:    p.Height,
	}
	if p.Shape == models.ShapePolygon {
		rec.Points = append([]models.Point(nil), p.Points...)
	}
	return rec
}

// Restore applies a persisted plot record.
func (p *Space) Restore(rec models.PlotRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	p.Shape = rec.ShapeKind
	p.Points = nil
	if rec.ShapeKind == models.ShapePolygon {
		p.Points = append([]models.Point(nil), rec.Points...)
	}
	return p.Resize(rec.Width, rec.Height)
}

// ValidateRecord checks a persisted plot without touching any state.
func ValidateRecord(rec models.PlotRecord) error {
	switch rec.ShapeKind {
	case models.ShapeRectangle, models.ShapePolygon:
	default:
		return apperrors.New(apperrors.ErrCodeValidation, "unknown plot shape %q", rec.ShapeKind)
	}
	if !positive(rec.Width) || !positive(rec.Height) {
		return apperrors.New(apperrors.ErrCodeValidation, "plot size must be positive, got %vx%v", rec.Width, rec.Height)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
