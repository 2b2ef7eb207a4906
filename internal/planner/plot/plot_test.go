package plot

import (
	"testing"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/surface"
)

func TestGridRedrawIsIdempotent(t *testing.T) {
	c := surface.NewCanvas(0, 0)
	p := New(800, 600, c)

	first := c.Count(surface.KindGrid)
	p.RedrawGrid()
	second := c.Count(surface.KindGrid)

	// 800/50 + 1 vertical, 600/50 + 1 horizontal
	if first != 17+13 {
		t.Errorf("grid lines = %d, want 30", first)
	}
	if first != second {
		t.Errorf("grid lines after redraw = %d, want %d", second, first)
	}
	if p.GridLines() != second {
		t.Errorf("GridLines() = %d, canvas has %d", p.GridLines(), second)
	}
}

func TestZoomChangesSpacingAndClamps(t *testing.T) {
	c := surface.NewCanvas(0, 0)
	p := New(800, 600, c)

	if err := p.SetZoom(2); err != nil {
		t.Fatal(err)
	}
	if p.Step() != 100 {
		t.Errorf("Step() = %v, want 100", p.Step())
	}
	if got := c.Count(surface.KindGrid); got != 9+7 {
		t.Errorf("grid lines at zoom 2 = %d, want 16", got)
	}

	if err := p.SetZoom(0.01); err != nil {
		t.Fatal(err)
	}
	if p.Zoom != MinZoom {
		t.Errorf("Zoom = %v, want clamp to %v", p.Zoom, MinZoom)
	}

	p.Zoom = 0.15
	p.ZoomOut()
	if p.Zoom != MinZoom {
		t.Errorf("ZoomOut() below minimum = %v, want %v", p.Zoom, MinZoom)
	}
}

func TestToggleGridRemovesLines(t *testing.T) {
	c := surface.NewCanvas(0, 0)
	p := New(800, 600, c)

	p.ToggleGrid()
	if got := c.Count(surface.KindGrid); got != 0 {
		t.Errorf("hidden grid left %d lines", got)
	}
	p.ToggleGrid()
	if got := c.Count(surface.KindGrid); got != 30 {
		t.Errorf("visible grid has %d lines, want 30", got)
	}
}

func TestResize(t *testing.T) {
	c := surface.NewCanvas(0, 0)
	p := New(800, 600, c)

	if err := p.Resize(100, 100); err != nil {
		t.Fatal(err)
	}
	if w, h := c.Size(); w != 100 || h != 100 {
		t.Errorf("surface size = %vx%v, want 100x100", w, h)
	}
	if got := c.Count(surface.KindGrid); got != 3+3 {
		t.Errorf("grid lines = %d, want 6", got)
	}

	err := p.Resize(0, 100)
	if !apperrors.Is(err, apperrors.ErrCodeValidation) {
		t.Errorf("Resize(0, 100) error = %v, want validation", err)
	}
	if p.Width != 100 {
		t.Errorf("failed resize changed width to %v", p.Width)
	}
}

func TestRecordRestore(t *testing.T) {
	c := surface.NewCanvas(0, 0)
	p := New(800, 600, c)
	p.SetOutline([]models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}})

	rec := p.Record()
	if rec.ShapeKind != models.ShapePolygon || len(rec.Points) != 3 {
		t.Fatalf("Record() = %+v", rec)
	}

	q := New(10, 10, surface.NewCanvas(0, 0))
	if err := q.Restore(rec); err != nil {
		t.Fatal(err)
	}
	if q.Width != 800 || q.Height != 600 || q.Shape != models.ShapePolygon || len(q.Points) != 3 {
		t.Errorf("Restore() produced %+v", q.Record())
	}

	if err := q.Restore(models.PlotRecord{ShapeKind: "Circle", Width: 1, Height: 1}); err == nil {
		t.Error("Restore() accepted unknown shape")
	}
}

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name    string
		d       string
		want    int
		wantErr bool
	}{
		{"absolute closed", "M 0 0 L 100 0 L 100 50 L 0 50 Z", 4, false},
		{"relative with h/v", "m10,10 h 90 v 40 h -90 z", 4, false},
		{"explicit closing point", "M0 0 L10 0 L10 10 L0 0", 3, false},
		{"too few points", "M0 0 L10 0", 0, true},
		{"empty", "  ", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, err := ParseOutline(tt.d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutline() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(pts) != tt.want {
				t.Errorf("ParseOutline() = %d points, want %d", len(pts), tt.want)
			}
		})
	}

	pts, _ := ParseOutline("m10,10 h 90 v 40 h -90 z")
	if w, h := Bounds(pts); w != 90 || h != 40 {
		t.Errorf("Bounds() = %vx%v, want 90x40", w, h)
	}
}
