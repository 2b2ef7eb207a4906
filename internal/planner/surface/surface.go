// Package surface defines the contract between the composition core and the
// drawing surface, and provides Canvas, a retained-mode implementation that
// keeps drawables in paint order, hit-tests them and exports SVG.
//
// Drawables carry only the id of the entity they depict. Domain state lives in
// the scene graph; the surface never owns it.
package surface

// DrawableKind tags what a drawable depicts.
type DrawableKind int

const (
	KindGrid DrawableKind = iota + 1
	KindAsset
	KindWall
)

// Geometry is the untransformed shape of a drawable. Lines use X1..Y2,
// images use Width/Height.
type Geometry struct {
	X1, Y1, X2, Y2 float64
	Width, Height  float64
	StrokeWidth    float64
	Stroke         string
	Href           string
}

// Transform places a drawable on the plot.
type Transform struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	AngleDegrees float64 `json:"angle"`
	ScaleX       float64 `json:"scaleX"`
	ScaleY       float64 `json:"scaleY"`
}

// Identity is the transform of an unplaced drawable.
var Identity = Transform{ScaleX: 1, ScaleY: 1}

// Drawable is one paintable object. Grid drawables are excluded from
// hit-testing and from export.
type Drawable struct {
	ID        string
	Kind      DrawableKind
	Transform Transform
}

// Surface is what the core drives.
type Surface interface {
	Add(d Drawable, g Geometry)
	Remove(id string)
	SetTransform(id string, t Transform)
	Resize(width, height float64)
}

// Listener receives gestures reported by the surface.
type Listener interface {
	// OnSelectionChanged gets hit candidates topmost first; empty clears.
	OnSelectionChanged(candidates []string)
	// OnDragRotate returns the angle the surface should display.
	OnDragRotate(id string, rawAngle float64) float64
	OnTransformCommitted(id string, t Transform)
}
