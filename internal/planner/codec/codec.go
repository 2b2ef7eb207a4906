// Package codec converts a scene to and from its persisted project document.
//
// Serialization is synchronous. Deserialization restores walls immediately
// and resolves asset refs concurrently; each completion is posted back to the
// goroutine that owns the scene and inserted at the slot reserved for its
// record, so the final order follows the document regardless of completion
// order. A completion tagged with an older generation is dropped.
package codec

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/models"
	"landscape-planner/internal/planner/plot"
	"landscape-planner/internal/planner/pricing"
	"landscape-planner/internal/planner/scene"
)

// Metadata is the descriptive part of a project.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Dispatcher runs fn on the goroutine that owns the scene. It reports false
// when fn will never run.
type Dispatcher interface {
	Post(fn func()) bool
}

type Codec struct {
	resolver catalog.Resolver
	dispatch Dispatcher
	logger   *log.Logger
	sem      chan struct{}
}

// New creates a codec. concurrency bounds the number of resolutions in
// flight across all loads of this codec.
func New(resolver catalog.Resolver, dispatch Dispatcher, logger *log.Logger, concurrency int) *Codec {
	return &Codec{
		resolver: resolver,
		dispatch: dispatch,
		logger:   logger.WithPrefix("codec"),
		sem:      make(chan struct{}, max(1, concurrency)),
	}
}

// ============================================================
// Serialize
// ============================================================

// Serialize emits walls and asset instances in scene order. Asset refs are
// written as-is; refs missing from snap only produce a warning.
func Serialize(g *scene.Graph, p *plot.Space, meta Metadata, snap pricing.Snapshot) models.ProjectDocument {
	doc := models.ProjectDocument{
		Name:        meta.Name,
		Description: meta.Description,
		Plot:        p.Record(),
		Entities:    []models.EntityRecord{},
		Walls:       []models.WallRecord{},
	}

	for e := range g.Entities() {
		switch v := e.(type) {
		case *models.WallSegment:
			doc.Walls = append(doc.Walls, models.WallRecord{
				X:        v.X,
				Y:        v.Y,
				Length:   v.Length,
				Rotation: v.Rotation,
			})
		case *models.AssetInstance:
			rec := models.EntityRecord{
				AssetRef:    v.AssetRef,
				X:           v.X,
				Y:           v.Y,
				ScaleFactor: v.ScaleX,
				Rotation:    v.Rotation,
			}
			if v.ScaleY != v.ScaleX {
				sy := v.ScaleY
				rec.ScaleY = &sy
			}
			doc.Entities = append(doc.Entities, rec)

			if _, ok := pricing.Lookup(snap, v.AssetRef); !ok {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf("asset %q is not in the catalog", v.AssetRef))
			}
		}
	}
	return doc
}

// ============================================================
// Deserialize
// ============================================================

// Validate checks a document without touching any state.
func Validate(doc models.ProjectDocument) error {
	if err := plot.ValidateRecord(doc.Plot); err != nil {
		return err
	}
	for i, w := range doc.Walls {
		if !finite(w.X, w.Y, w.Length, w.Rotation) || w.Length == 0 {
			return apperrors.New(apperrors.ErrCodeValidation, "wall %d: invalid geometry", i)
		}
	}
	for i, e := range doc.Entities {
		if e.AssetRef == "" {
			return apperrors.New(apperrors.ErrCodeValidation, "entity %d: empty asset ref", i)
		}
		if !finite(e.X, e.Y, e.ScaleFactor, e.Rotation) {
			return apperrors.New(apperrors.ErrCodeValidation, "entity %d: invalid geometry", i)
		}
		if e.ScaleY != nil && !finite(*e.ScaleY) {
			return apperrors.New(apperrors.ErrCodeValidation, "entity %d: invalid scale", i)
		}
	}
	return nil
}

// Deserialize must run on the goroutine that owns g and p. It validates doc,
// clears the scene, restores the plot and walls, and starts resolving asset
// records. ctx governs the resolutions, not the returned call.
func (c *Codec) Deserialize(ctx context.Context, doc models.ProjectDocument, g *scene.Graph, p *plot.Space) (*Load, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	gen := g.Clear()
	if err := p.Restore(doc.Plot); err != nil {
		return nil, err
	}

	base := g.Reserve(len(doc.Walls) + len(doc.Entities))
	for i, rec := range doc.Walls {
		g.InsertWall(base+uint64(i), &models.WallSegment{
			X:        rec.X,
			Y:        rec.Y,
			Length:   rec.Length,
			Rotation: rec.Rotation,
		})
	}

	load := &Load{Generation: gen, done: make(chan struct{})}
	load.pending.Add(len(doc.Entities))
	assetBase := base + uint64(len(doc.Walls))
	for i, rec := range doc.Entities {
		go c.resolve(ctx, load, g, assetBase+uint64(i), rec)
	}
	go func() {
		load.pending.Wait()
		close(load.done)
	}()

	c.logger.Debug("load started", "generation", gen, "walls", len(doc.Walls), "assets", len(doc.Entities))
	return load, nil
}

func (c *Codec) resolve(ctx context.Context, load *Load, g *scene.Graph, order uint64, rec models.EntityRecord) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		c.logger.Warn("asset skipped", "ref", rec.AssetRef, "err", ctx.Err())
		load.skipped.Add(1)
		load.pending.Done()
		return
	}
	visual, err := c.resolver.Resolve(ctx, rec.AssetRef)
	<-c.sem

	posted := c.dispatch.Post(func() {
		defer load.pending.Done()
		if g.Generation() != load.Generation {
			load.discarded.Add(1)
			return
		}
		if err != nil {
			c.logger.Warn("asset skipped", "ref", rec.AssetRef, "err", err)
			load.skipped.Add(1)
			return
		}
		g.InsertAsset(order, Instance(rec, visual))
		load.inserted.Add(1)
	})
	if !posted {
		load.discarded.Add(1)
		load.pending.Done()
	}
}

// Instance builds an asset instance from its record and resolved visual.
// A missing scale factor falls back to the default placement scale.
func Instance(rec models.EntityRecord, v models.Visual) *models.AssetInstance {
	inst := scene.NewAssetInstance(rec.AssetRef, v)
	inst.X, inst.Y, inst.Rotation = rec.X, rec.Y, rec.Rotation
	if rec.ScaleFactor > 0 {
		inst.ScaleX, inst.ScaleY = rec.ScaleFactor, rec.ScaleFactor
	}
	if rec.ScaleY != nil && *rec.ScaleY > 0 {
		inst.ScaleY = *rec.ScaleY
	}
	return inst
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ============================================================
// Load handle
// ============================================================

// Load tracks the asynchronous part of one Deserialize call.
type Load struct {
	Generation uint64

	pending   sync.WaitGroup
	done      chan struct{}
	inserted  atomic.Int64
	skipped   atomic.Int64
	discarded atomic.Int64
}

// Result counts what happened to the asset records of a load.
type Result struct {
	Generation uint64 `json:"generation"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	Discarded  int    `json:"discarded"`
}

// Wait blocks until every asset record has been inserted, skipped or
// discarded. Must not be called from the goroutine that owns the scene.
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the load has settled.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

func (l *Load) Result() Result {
	return Result{
		Generation: l.Generation,
		Inserted:   int(l.inserted.Load()),
		Skipped:    int(l.skipped.Load()),
		Discarded:  int(l.discarded.Load()),
	}
}
