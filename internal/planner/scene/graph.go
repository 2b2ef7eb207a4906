// Package scene holds the in-memory model of a composition: the ordered set
// of placed entities, the single active selection and the generation counter
// that lets late asynchronous results detect that the scene was reset.
//
// A Graph is confined to one goroutine (the workspace loop) and does no
// locking. Every mutation is reported synchronously to observers, in order.
package scene

import (
	"iter"
	"math"
	"sort"

	"github.com/google/uuid"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
)

// ============================================================
// Scene Graph
// ============================================================

const (
	DefaultOffsetX = 50.0 // Позиция нового объекта на участке
	DefaultOffsetY = 50.0
	FallbackWidth  = 120.0 // Ширина ассета без размера в каталоге
)

// ChangeKind says what happened to the scene.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeUpdated
	ChangeRemoved
	ChangeCleared
	ChangeSelection
)

// Change describes one mutation. Entity is nil for ChangeCleared and for a
// cleared selection.
type Change struct {
	Kind   ChangeKind
	ID     string
	Entity models.Entity
}

// Observer is notified after every mutation.
type Observer func(Change)

type node struct {
	order  uint64
	entity models.Entity
}

type Graph struct {
	nodes      []node // sorted by order
	index      map[string]models.Entity
	selection  *SelectionController
	generation uint64
	nextOrder  uint64
	observers  []Observer
	newID      func() string
}

func New() *Graph {
	g := &Graph{
		index: make(map[string]models.Entity),
		newID: uuid.NewString,
	}
	g.selection = &SelectionController{graph: g}
	return g
}

// Subscribe registers an observer. Observers run in registration order.
func (g *Graph) Subscribe(o Observer) {
	g.observers = append(g.observers, o)
}

func (g *Graph) notify(c Change) {
	for _, o := range g.observers {
		o(c)
	}
}

// Selection returns the selection controller of this graph.
func (g *Graph) Selection() *SelectionController {
	return g.selection
}

// ============================================================
// Structural mutations
// ============================================================

// AddAssetInstance places a resolved asset at the default offset, scaled so
// its on-screen width equals the catalog native width (or FallbackWidth),
// appends it on top and selects it.
func (g *Graph) AddAssetInstance(assetRef string, v models.Visual) string {
	inst := NewAssetInstance(assetRef, v)
	g.InsertAsset(g.Reserve(1), inst)
	g.selection.Select(inst.ID)
	return inst.ID
}

// NewAssetInstance builds an unplaced instance with default placement and scale.
func NewAssetInstance(assetRef string, v models.Visual) *models.AssetInstance {
	target := FallbackWidth
	if v.Descriptor.NativeWidth > 0 {
		target = v.Descriptor.NativeWidth
	}
	scale := 1.0
	if v.Width > 0 {
		scale = target / v.Width
	}
	return &models.AssetInstance{
		AssetRef:   assetRef,
		X:          DefaultOffsetX,
		Y:          DefaultOffsetY,
		ScaleX:     scale,
		ScaleY:     scale,
		BaseWidth:  v.Width,
		BaseHeight: v.Height,
		PreviewURL: v.Descriptor.PreviewURL,
	}
}

// AddWall places a wall of the given length at the default offset and
// selects it. Zero or non-finite lengths are rejected without mutation.
func (g *Graph) AddWall(length float64) (string, error) {
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return "", apperrors.New(apperrors.ErrCodeValidation, "wall length must be a non-zero number")
	}
	w := &models.WallSegment{X: DefaultOffsetX, Y: DefaultOffsetY, Length: length}
	g.InsertWall(g.Reserve(1), w)
	g.selection.Select(w.ID)
	return w.ID, nil
}

// Reserve allocates n consecutive order slots and returns the first. Slots
// fix an entity's position at the time an operation is issued, even if the
// entity is inserted later.
func (g *Graph) Reserve(n int) uint64 {
	base := g.nextOrder
	g.nextOrder += uint64(n)
	return base
}

// InsertAsset inserts inst at its reserved order slot. An empty ID is
// assigned a fresh one.
func (g *Graph) InsertAsset(order uint64, inst *models.AssetInstance) {
	if inst.ID == "" {
		inst.ID = g.newID()
	}
	g.insert(order, inst)
}

// InsertWall inserts w at its reserved order slot.
func (g *Graph) InsertWall(order uint64, w *models.WallSegment) {
	if w.ID == "" {
		w.ID = g.newID()
	}
	g.insert(order, w)
}

func (g *Graph) insert(order uint64, e models.Entity) {
	if order >= g.nextOrder {
		g.nextOrder = order + 1
	}
	i := sort.Search(len(g.nodes), func(i int) bool { return g.nodes[i].order > order })
	g.nodes = append(g.nodes, node{})
	copy(g.nodes[i+1:], g.nodes[i:])
	g.nodes[i] = node{order: order, entity: e}
	g.index[e.EntityID()] = e
	g.notify(Change{Kind: ChangeAdded, ID: e.EntityID(), Entity: e})
}

// RemoveEntity removes id. Removing the selected entity clears the selection.
func (g *Graph) RemoveEntity(id string) bool {
	e, ok := g.index[id]
	if !ok {
		return false
	}
	delete(g.index, id)
	for i := range g.nodes {
		if g.nodes[i].entity.EntityID() == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	if g.selection.ActiveID() == id {
		g.selection.Clear()
	}
	g.notify(Change{Kind: ChangeRemoved, ID: id, Entity: e})
	return true
}

// Clear drops every entity and the selection and starts a new generation.
// Pending asynchronous work tagged with an older generation must discard its
// result.
func (g *Graph) Clear() uint64 {
	g.selection.Clear()
	g.nodes = nil
	g.index = make(map[string]models.Entity)
	g.generation++
	g.notify(Change{Kind: ChangeCleared})
	return g.generation
}

// Generation returns the current generation.
func (g *Graph) Generation() uint64 {
	return g.generation
}

// Update applies fn to entity id and reports the change.
func (g *Graph) Update(id string, fn func(models.Entity)) bool {
	e, ok := g.index[id]
	if !ok {
		return false
	}
	fn(e)
	g.notify(Change{Kind: ChangeUpdated, ID: id, Entity: e})
	return true
}

// ============================================================
// Queries
// ============================================================

func (g *Graph) Get(id string) (models.Entity, bool) {
	e, ok := g.index[id]
	return e, ok
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// Entities yields every entity in z-order (bottom first).
func (g *Graph) Entities() iter.Seq[models.Entity] {
	return func(yield func(models.Entity) bool) {
		for _, n := range g.nodes {
			if !yield(n.entity) {
				return
			}
		}
	}
}

// AssetEntities yields asset instances in z-order.
func (g *Graph) AssetEntities() iter.Seq[*models.AssetInstance] {
	return func(yield func(*models.AssetInstance) bool) {
		for _, n := range g.nodes {
			if a, ok := n.entity.(*models.AssetInstance); ok {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// WallEntities yields walls in z-order.
func (g *Graph) WallEntities() iter.Seq[*models.WallSegment] {
	return func(yield func(*models.WallSegment) bool) {
		for _, n := range g.nodes {
			if w, ok := n.entity.(*models.WallSegment); ok {
				if !yield(w) {
					return
				}
			}
		}
	}
}
