package scene

import (
	"math"
	"slices"
	"testing"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
)

func visual(nativeWidth, w, h float64) models.Visual {
	return models.Visual{
		Descriptor: models.AssetDescriptor{ID: "x", NativeWidth: nativeWidth, PreviewURL: "/p.png"},
		Width:      w,
		Height:     h,
	}
}

func ids(g *Graph) []string {
	var out []string
	for e := range g.Entities() {
		out = append(out, e.EntityID())
	}
	return out
}

func TestAddAssetInstance(t *testing.T) {
	refs := []string{"oak", "bench", "", "missing-from-catalog"}
	g := New()

	for i, ref := range refs {
		before := g.Len()
		id := g.AddAssetInstance(ref, visual(0, 60, 30))

		if g.Len() != before+1 {
			t.Fatalf("Len() = %d, want %d", g.Len(), before+1)
		}
		e, ok := g.Get(id)
		if !ok {
			t.Fatalf("added entity %s not found", id)
		}
		a := e.(*models.AssetInstance)
		if a.AssetRef != ref {
			t.Errorf("AssetRef = %q, want %q", a.AssetRef, ref)
		}
		if g.Selection().ActiveID() != id {
			t.Errorf("selection = %q, want %q", g.Selection().ActiveID(), id)
		}
		if got := ids(g); got[i] != id {
			t.Errorf("entity %s not appended at end: %v", id, got)
		}
	}
}

func TestAddAssetInstanceDefaultScale(t *testing.T) {
	tests := []struct {
		name      string
		v         models.Visual
		wantScale float64
		wantWidth float64
	}{
		{"native width", visual(200, 100, 50), 2, 200},
		{"fallback width", visual(0, 60, 60), 2, FallbackWidth},
		{"unknown visual size", visual(0, 0, 0), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			e, _ := g.Get(g.AddAssetInstance("r", tt.v))
			a := e.(*models.AssetInstance)
			if a.ScaleX != tt.wantScale || a.ScaleY != tt.wantScale {
				t.Errorf("scale = %v/%v, want %v", a.ScaleX, a.ScaleY, tt.wantScale)
			}
			if a.Width() != tt.wantWidth {
				t.Errorf("Width() = %v, want %v", a.Width(), tt.wantWidth)
			}
			if a.X != DefaultOffsetX || a.Y != DefaultOffsetY {
				t.Errorf("position = %v,%v", a.X, a.Y)
			}
		})
	}
}

func TestAddWall(t *testing.T) {
	g := New()
	id, err := g.AddWall(100)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := g.Get(id)
	w := e.(*models.WallSegment)
	if w.Length != 100 || w.X != DefaultOffsetX || w.Y != DefaultOffsetY {
		t.Errorf("wall = %+v", w)
	}
	if g.Selection().ActiveID() != id {
		t.Error("new wall not selected")
	}

	for _, bad := range []float64{0, math.NaN(), math.Inf(1)} {
		_, err := g.AddWall(bad)
		if !apperrors.Is(err, apperrors.ErrCodeValidation) {
			t.Errorf("AddWall(%v) error = %v, want validation", bad, err)
		}
	}
	if g.Len() != 1 {
		t.Errorf("rejected walls mutated graph: Len() = %d", g.Len())
	}
}

func TestRemoveEntityClearsSelection(t *testing.T) {
	g := New()
	a, _ := g.AddWall(10)
	b, _ := g.AddWall(20)

	if !g.RemoveEntity(a) {
		t.Fatal("RemoveEntity(a) = false")
	}
	if g.Selection().ActiveID() != b {
		t.Error("removing an unselected entity changed the selection")
	}
	g.RemoveEntity(b)
	if _, ok := g.Selection().Active(); ok {
		t.Error("removing the selected entity must clear the selection")
	}
	if g.RemoveEntity("nope") {
		t.Error("RemoveEntity(unknown) = true")
	}
}

func TestClearBumpsGeneration(t *testing.T) {
	g := New()
	g.AddWall(10)
	gen := g.Generation()

	next := g.Clear()
	if next != gen+1 || g.Generation() != next {
		t.Errorf("generation = %d, want %d", g.Generation(), gen+1)
	}
	if g.Len() != 0 || g.Selection().ActiveID() != "" {
		t.Error("Clear() left entities or selection")
	}
}

func TestReservedOrderIsKeptRegardlessOfInsertTiming(t *testing.T) {
	g := New()
	base := g.Reserve(3)
	late, _ := g.AddWall(5) // issued after the reservation

	g.InsertAsset(base+2, &models.AssetInstance{ID: "c"})
	g.InsertAsset(base, &models.AssetInstance{ID: "a"})
	g.InsertAsset(base+1, &models.AssetInstance{ID: "b"})

	want := []string{"a", "b", "c", late}
	if got := ids(g); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestKindSequencesAreRestartable(t *testing.T) {
	g := New()
	g.AddWall(10)
	g.AddAssetInstance("r1", visual(0, 10, 10))
	g.AddWall(20)
	g.AddAssetInstance("r2", visual(0, 10, 10))

	walls := g.WallEntities()
	for range 2 {
		n := 0
		for w := range walls {
			if w.Kind() != models.KindWall {
				t.Fatal("WallEntities yielded non-wall")
			}
			n++
		}
		if n != 2 {
			t.Errorf("walls = %d, want 2", n)
		}
	}

	var refs []string
	for a := range g.AssetEntities() {
		refs = append(refs, a.AssetRef)
	}
	if !slices.Equal(refs, []string{"r1", "r2"}) {
		t.Errorf("assets = %v", refs)
	}

	// early break must stop iteration
	for range g.Entities() {
		break
	}
}

func TestObserversSeeEveryMutation(t *testing.T) {
	g := New()
	var kinds []ChangeKind
	g.Subscribe(func(c Change) { kinds = append(kinds, c.Kind) })

	id, _ := g.AddWall(10)
	g.Update(id, func(e models.Entity) { e.(*models.WallSegment).Length = 30 })
	g.RemoveEntity(id)
	g.Clear()

	want := []ChangeKind{ChangeAdded, ChangeSelection, ChangeUpdated, ChangeSelection, ChangeRemoved, ChangeCleared}
	if !slices.Equal(kinds, want) {
		t.Errorf("changes = %v, want %v", kinds, want)
	}
}

func TestSelectionTieBreak(t *testing.T) {
	g := New()
	a, _ := g.AddWall(10)
	b, _ := g.AddWall(20)

	g.Selection().OnSelectionChanged([]string{a, b})
	if g.Selection().ActiveID() != a {
		t.Errorf("first candidate should win, got %q", g.Selection().ActiveID())
	}

	g.Selection().OnSelectionChanged([]string{"grid-v-1", b})
	if g.Selection().ActiveID() != b {
		t.Errorf("non-entity candidates should be skipped, got %q", g.Selection().ActiveID())
	}

	g.Selection().OnSelectionChanged(nil)
	if g.Selection().ActiveID() != "" {
		t.Error("empty candidates should clear the selection")
	}

	if g.Selection().Select("unknown") {
		t.Error("Select(unknown) = true")
	}
}
