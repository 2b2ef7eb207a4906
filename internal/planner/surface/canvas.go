package surface

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// Canvas
// ============================================================

// hitSlop widens thin drawables (walls) for hit-testing.
const hitSlop = 3.0

type item struct {
	drawable Drawable
	geometry Geometry
}

// Canvas is an in-memory Surface. Like the scene graph it is confined to the
// workspace loop and does no locking.
type Canvas struct {
	width      float64
	height     float64
	background string
	order      []string
	items      map[string]*item
}

func NewCanvas(width, height float64) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: "#fafafa",
		items:      make(map[string]*item),
	}
}

// Add paints d on top. Adding an id that already exists replaces its geometry
// and transform in place, keeping its paint order.
func (c *Canvas) Add(d Drawable, g Geometry) {
	if it, ok := c.items[d.ID]; ok {
		it.drawable = d
		it.geometry = g
		return
	}
	c.items[d.ID] = &item{drawable: d, geometry: g}
	c.order = append(c.order, d.ID)
}

// Restack reorders the listed drawables bottom to top as given. They keep
// the paint slots they already occupy, so unlisted drawables (grid lines)
// stay where they are. Unknown ids are ignored.
func (c *Canvas) Restack(ids []string) {
	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.items[id]; ok {
			listed[id] = true
		}
	}
	next := 0
	for i, id := range c.order {
		if !listed[id] {
			continue
		}
		for !listed[ids[next]] {
			next++
		}
		c.order[i] = ids[next]
		next++
	}
}

func (c *Canvas) Remove(id string) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Canvas) SetTransform(id string, t Transform) {
	if it, ok := c.items[id]; ok {
		it.drawable.Transform = t
	}
}

func (c *Canvas) Resize(width, height float64) {
	c.width = width
	c.height = height
}

// Size returns the canvas bounds.
func (c *Canvas) Size() (float64, float64) {
	return c.width, c.height
}

// Count returns the number of drawables of the given kind.
func (c *Canvas) Count(kind DrawableKind) int {
	n := 0
	for _, it := range c.items {
		if it.drawable.Kind == kind {
			n++
		}
	}
	return n
}

// Drawables returns drawables bottom to top.
func (c *Canvas) Drawables() []Drawable {
	out := make([]Drawable, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].drawable)
	}
	return out
}

// Lookup returns the drawable and geometry registered under id.
func (c *Canvas) Lookup(id string) (Drawable, Geometry, bool) {
	it, ok := c.items[id]
	if !ok {
		return Drawable{}, Geometry{}, false
	}
	return it.drawable, it.geometry, true
}

// ============================================================
// Hit testing
// ============================================================

// HitTest returns the ids of non-grid drawables under (x, y), topmost first.
func (c *Canvas) HitTest(x, y float64) []string {
	var hits []string
	for i := len(c.order) - 1; i >= 0; i-- {
		it := c.items[c.order[i]]
		if it.drawable.Kind == KindGrid {
			continue
		}
		if contains(it, x, y) {
			hits = append(hits, it.drawable.ID)
		}
	}
	return hits
}

func contains(it *item, x, y float64) bool {
	t := it.drawable.Transform
	lx, ly := toLocal(t, x, y)

	switch it.drawable.Kind {
	case KindAsset:
		w := it.geometry.Width * t.ScaleX
		h := it.geometry.Height * t.ScaleY
		return within(lx, 0, w) && within(ly, 0, h)
	case KindWall:
		length := (it.geometry.X2 - it.geometry.X1) * t.ScaleX
		half := it.geometry.StrokeWidth/2 + hitSlop
		return within(lx, -hitSlop, length+hitSlop) && within(ly, -half, half)
	}
	return false
}

// toLocal maps a plot point into the drawable's unrotated frame.
func toLocal(t Transform, x, y float64) (float64, float64) {
	dx := x - t.X
	dy := y - t.Y
	if t.AngleDegrees == 0 {
		return dx, dy
	}
	rad := -t.AngleDegrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return dx*cos - dy*sin, dx*sin + dy*cos
}

func within(v, lo, hi float64) bool {
	if lo > hi {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// ============================================================
// SVG export
// ============================================================

// Render собирает SVG из текущих drawables. В режиме export сетка не выводится.
func (c *Canvas) Render(export bool) string {
	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(c.width), formatFloat(c.height), formatFloat(c.width), formatFloat(c.height)))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf(`  <rect width="100%%" height="100%%" fill="%s" />`, c.background))
	builder.WriteString("\n")

	for _, id := range c.order {
		it := c.items[id]
		if export && it.drawable.Kind == KindGrid {
			continue
		}
		elem := renderItem(it)
		if elem == "" {
			continue
		}
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String()
}

func renderItem(it *item) string {
	g := it.geometry
	switch it.drawable.Kind {
	case KindGrid:
		return fmt.Sprintf(`<line class="grid" x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" />`,
			formatFloat(g.X1), formatFloat(g.Y1), formatFloat(g.X2), formatFloat(g.Y2), g.Stroke)
	case KindWall:
		return fmt.Sprintf(`<line id="%s" x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" transform="%s" />`,
			it.drawable.ID, formatFloat(g.X1), formatFloat(g.Y1), formatFloat(g.X2), formatFloat(g.Y2),
			g.Stroke, formatFloat(g.StrokeWidth), transformAttr(it.drawable.Transform))
	case KindAsset:
		return fmt.Sprintf(`<image id="%s" href="%s" width="%s" height="%s" transform="%s" />`,
			it.drawable.ID, escapeAttr(g.Href), formatFloat(g.Width), formatFloat(g.Height),
			transformAttr(it.drawable.Transform))
	}
	return ""
}

func transformAttr(t Transform) string {
	parts := []string{fmt.Sprintf("translate(%s %s)", formatFloat(t.X), formatFloat(t.Y))}
	if t.AngleDegrees != 0 {
		parts = append(parts, fmt.Sprintf("rotate(%s)", formatFloat(t.AngleDegrees)))
	}
	if t.ScaleX != 1 || t.ScaleY != 1 {
		parts = append(parts, fmt.Sprintf("scale(%s %s)", formatFloat(t.ScaleX), formatFloat(t.ScaleY)))
	}
	return strings.Join(parts, " ")
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}
