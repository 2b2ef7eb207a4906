// Package pricing derives the cost summary of a scene from a catalog
// snapshot. Results are recomputed from scratch on every call and the scene
// is never modified.
package pricing

import (
	"iter"

	"github.com/shopspring/decimal"

	"landscape-planner/internal/planner/models"
)

// Snapshot is a read-only view of the catalog for the duration of one
// recompute.
type Snapshot interface {
	Lookup(id string) (models.AssetDescriptor, bool)
}

// AssetSource yields the asset instances of a scene.
type AssetSource interface {
	AssetEntities() iter.Seq[*models.AssetInstance]
}

// Recompute sums catalog prices of every resolvable asset instance and
// collects distinct vendors in first-seen order. Unresolved refs (and
// lookups that panic) are excluded, never fatal.
func Recompute(src AssetSource, snap Snapshot) models.Aggregation {
	result := models.Aggregation{Total: decimal.Zero, Vendors: []models.Vendor{}}
	seen := make(map[string]struct{})

	for inst := range src.AssetEntities() {
		desc, ok := Lookup(snap, inst.AssetRef)
		if !ok {
			result.Excluded = append(result.Excluded, inst.ID)
			continue
		}

		result.Total = result.Total.Add(desc.Price.Value())

		if desc.Vendor == nil || desc.Vendor.ID == "" {
			continue
		}
		if _, dup := seen[desc.Vendor.ID]; dup {
			continue
		}
		seen[desc.Vendor.ID] = struct{}{}
		result.Vendors = append(result.Vendors, *desc.Vendor)
	}

	return result
}

// Lookup queries snap, treating a nil snapshot or a panicking lookup as a miss.
func Lookup(snap Snapshot, ref string) (desc models.AssetDescriptor, ok bool) {
	if snap == nil {
		return models.AssetDescriptor{}, false
	}
	defer func() {
		if recover() != nil {
			desc, ok = models.AssetDescriptor{}, false
		}
	}()
	return snap.Lookup(ref)
}
