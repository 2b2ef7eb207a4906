package editor

import (
	"math"
	"strconv"
	"strings"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/scene"
	"landscape-planner/internal/planner/surface"
)

// ============================================================
// Transform Editor
// ============================================================

// RotationSnap is the step interactive rotation snaps to.
const RotationSnap = 5.0

// Form is the editable property panel of the selected entity. For walls H is
// always the wall thickness and is ignored by Apply.
type Form struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Angle float64 `json:"angle"`
}

type Editor struct {
	graph *scene.Graph
	form  Form
	has   bool
}

// New creates an editor bound to g. The form follows the selection and any
// change to the selected entity.
func New(g *scene.Graph) *Editor {
	e := &Editor{graph: g}
	g.Subscribe(e.onChange)
	e.Refresh()
	return e
}

func (e *Editor) onChange(c scene.Change) {
	switch c.Kind {
	case scene.ChangeSelection, scene.ChangeCleared, scene.ChangeRemoved:
		e.Refresh()
	case scene.ChangeUpdated:
		if c.ID == e.graph.Selection().ActiveID() {
			e.Refresh()
		}
	}
}

// Refresh rebuilds the form from the current selection.
func (e *Editor) Refresh() {
	ent, ok := e.graph.Selection().Active()
	if !ok {
		e.form, e.has = Form{}, false
		return
	}
	e.form, e.has = FormOf(ent), true
}

// Form returns the current form and whether anything is selected.
func (e *Editor) Form() (Form, bool) {
	return e.form, e.has
}

// FormOf derives the property form of an entity.
func FormOf(ent models.Entity) Form {
	switch v := ent.(type) {
	case *models.AssetInstance:
		return Form{X: v.X, Y: v.Y, W: v.Width(), H: v.Height(), Angle: v.Rotation}
	case *models.WallSegment:
		return Form{X: v.X, Y: v.Y, W: v.Length, H: models.WallThickness, Angle: v.Rotation}
	}
	return Form{}
}

// Apply writes f to the selected entity. Positions and angle are written as
// given (no snapping). Asset width and height set independent horizontal and
// vertical scale; wall width sets the length. Invalid input leaves both the
// form and the entity untouched. Without a selection Apply is a no-op.
func (e *Editor) Apply(f Form) error {
	ent, ok := e.graph.Selection().Active()
	if !ok {
		return nil
	}
	if err := validate(ent, f); err != nil {
		return err
	}

	e.graph.Update(ent.EntityID(), func(target models.Entity) {
		switch v := target.(type) {
		case *models.AssetInstance:
			v.X, v.Y, v.Rotation = f.X, f.Y, f.Angle
			if v.BaseWidth > 0 {
				v.ScaleX = f.W / v.BaseWidth
			}
			if v.BaseHeight > 0 {
				v.ScaleY = f.H / v.BaseHeight
			}
		case *models.WallSegment:
			v.X, v.Y, v.Rotation = f.X, f.Y, f.Angle
			v.Length = f.W
		}
	})
	return nil
}

func validate(ent models.Entity, f Form) error {
	for _, v := range []float64{f.X, f.Y, f.W, f.H, f.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.New(apperrors.ErrCodeValidation, "form values must be finite numbers")
		}
	}
	switch ent.(type) {
	case *models.AssetInstance:
		if f.W <= 0 || f.H <= 0 {
			return apperrors.New(apperrors.ErrCodeValidation, "asset size must be positive")
		}
	case *models.WallSegment:
		if f.W == 0 {
			return apperrors.New(apperrors.ErrCodeValidation, "wall length must be non-zero")
		}
	}
	return nil
}

// Delete removes the selected entity and clears the form.
func (e *Editor) Delete() bool {
	id := e.graph.Selection().ActiveID()
	if id == "" {
		return false
	}
	removed := e.graph.RemoveEntity(id)
	e.form, e.has = Form{}, false
	return removed
}

// ============================================================
// Gestures
// ============================================================

// SnapAngle rounds raw to the nearest multiple of RotationSnap.
func SnapAngle(raw float64) float64 {
	return math.Round(raw/RotationSnap) * RotationSnap
}

// Rotate handles an interactive rotate drag: the raw angle is snapped before
// being committed. Returns the committed angle.
func (e *Editor) Rotate(id string, raw float64) (float64, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	angle := SnapAngle(raw)
	ok := e.graph.Update(id, func(target models.Entity) {
		switch v := target.(type) {
		case *models.AssetInstance:
			v.Rotation = angle
		case *models.WallSegment:
			v.Rotation = angle
		}
	})
	return angle, ok
}

// CommitTransform writes a transform the surface committed after a drag.
// The angle was already snapped by Rotate; walls ignore scale because their
// length is carried by geometry.
func (e *Editor) CommitTransform(id string, t surface.Transform) bool {
	return e.graph.Update(id, func(target models.Entity) {
		switch v := target.(type) {
		case *models.AssetInstance:
			v.X, v.Y, v.Rotation = t.X, t.Y, t.AngleDegrees
			if t.ScaleX > 0 {
				v.ScaleX = t.ScaleX
			}
			if t.ScaleY > 0 {
				v.ScaleY = t.ScaleY
			}
		case *models.WallSegment:
			v.X, v.Y, v.Rotation = t.X, t.Y, t.AngleDegrees
		}
	})
}

// ============================================================
// Raw input
// ============================================================

var formKeys = []string{"x", "y", "w", "h", "angle"}

// ParseForm converts raw property input into a Form. Every key must be
// present; values may be JSON numbers or numeric strings.
func ParseForm(raw map[string]any) (Form, error) {
	vals := make(map[string]float64, len(formKeys))
	for _, key := range formKeys {
		v, ok := raw[key]
		if !ok {
			return Form{}, apperrors.New(apperrors.ErrCodeValidation, "missing field %q", key)
		}
		f, err := toFloat(v)
		if err != nil {
			return Form{}, apperrors.Wrap(apperrors.ErrCodeValidation, err, "field %q is not a number", key)
		}
		vals[key] = f
	}
	return Form{X: vals["x"], Y: vals["y"], W: vals["w"], H: vals["h"], Angle: vals["angle"]}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, strconv.ErrSyntax
}
