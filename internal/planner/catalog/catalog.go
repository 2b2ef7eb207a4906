// Package catalog is the read-only client side of the external asset
// catalog: descriptors with prices and vendors, and resolution of an asset
// ref into a drawable visual.
package catalog

import (
	"context"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
)

// ============================================================
// Contracts
// ============================================================

// Catalog lists and fetches asset descriptors.
type Catalog interface {
	List(ctx context.Context) ([]models.AssetDescriptor, error)
	Get(ctx context.Context, id string) (models.AssetDescriptor, error)
}

// Resolver turns an asset ref into a visual. Failures are resolution errors.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (models.Visual, error)
}

// Snapshotter produces an immutable snapshot for pricing.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*Memory, error)
}

// Service is everything the planner needs from a catalog backend.
type Service interface {
	Catalog
	Resolver
	Snapshotter
}

// DefaultPreviewSize is used when neither the preview nor the descriptor
// declares a size.
const DefaultPreviewSize = 100.0

// ============================================================
// Memory snapshot
// ============================================================

// Memory is an immutable catalog snapshot.
type Memory struct {
	items []models.AssetDescriptor
	byID  map[string]models.AssetDescriptor
}

func NewMemory(items []models.AssetDescriptor) *Memory {
	m := &Memory{
		items: slices.Clone(items),
		byID:  make(map[string]models.AssetDescriptor, len(items)),
	}
	for _, d := range items {
		m.byID[d.ID] = d
	}
	return m
}

func (m *Memory) List(context.Context) ([]models.AssetDescriptor, error) {
	return slices.Clone(m.items), nil
}

func (m *Memory) Get(_ context.Context, id string) (models.AssetDescriptor, error) {
	d, ok := m.byID[id]
	if !ok {
		return models.AssetDescriptor{}, apperrors.New(apperrors.ErrCodeResolution, "asset %q not found", id)
	}
	return d, nil
}

// Lookup implements pricing.Snapshot.
func (m *Memory) Lookup(id string) (models.AssetDescriptor, bool) {
	d, ok := m.byID[id]
	return d, ok
}

// Resolve uses the declared native size as the intrinsic visual size.
func (m *Memory) Resolve(ctx context.Context, ref string) (models.Visual, error) {
	d, err := m.Get(ctx, ref)
	if err != nil {
		return models.Visual{}, err
	}
	return VisualOf(d), nil
}

// Snapshot returns m itself; a Memory never changes.
func (m *Memory) Snapshot(context.Context) (*Memory, error) {
	return m, nil
}

// Len returns the number of descriptors.
func (m *Memory) Len() int {
	return len(m.items)
}

// VisualOf builds a visual from the descriptor's declared size.
func VisualOf(d models.AssetDescriptor) models.Visual {
	v := models.Visual{Descriptor: d, Width: d.NativeWidth, Height: d.NativeHeight}
	if v.Width <= 0 {
		v.Width = DefaultPreviewSize
	}
	if v.Height <= 0 {
		v.Height = DefaultPreviewSize
	}
	return v
}

// ============================================================
// Search
// ============================================================

// Filter returns descriptors whose name contains query (case-insensitive)
// and whose category equals category when it is set.
func Filter(items []models.AssetDescriptor, query, category string) []models.AssetDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	out := []models.AssetDescriptor{}
	for _, d := range items {
		if query != "" && !strings.Contains(strings.ToLower(d.Name), query) {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Categories returns distinct non-empty categories in first-seen order.
func Categories(items []models.AssetDescriptor) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, d := range items {
		if d.Category == "" {
			continue
		}
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}
	return out
}

// ============================================================
// Seed file
// ============================================================

type seedFile struct {
	Vendors []models.Vendor `toml:"vendor"`
	Assets  []seedAsset     `toml:"asset"`
}

type seedAsset struct {
	ID           string       `toml:"id"`
	Name         string       `toml:"name"`
	Category     string       `toml:"category"`
	Color        string       `toml:"color"`
	Price        models.Price `toml:"price"`
	PreviewURL   string       `toml:"preview_url"`
	NativeWidth  float64      `toml:"native_width"`
	NativeHeight float64      `toml:"native_height"`
	Vendor       string       `toml:"vendor"`
}

// LoadFile reads a TOML catalog seed:
//
//	[[vendor]]
//	id = "V1"
//	name = "Garden Center"
//
//	[[asset]]
//	id = "oak"
//	price = 500
//	vendor = "V1"
func LoadFile(path string) (*Memory, error) {
	var seed seedFile
	if _, err := toml.DecodeFile(path, &seed); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeValidation, err, "decode catalog seed %s", path)
	}
	return fromSeed(seed)
}

// Parse reads a TOML catalog seed from a string.
func Parse(data string) (*Memory, error) {
	var seed seedFile
	if _, err := toml.Decode(data, &seed); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeValidation, err, "decode catalog seed")
	}
	return fromSeed(seed)
}

func fromSeed(seed seedFile) (*Memory, error) {
	vendors := make(map[string]models.Vendor, len(seed.Vendors))
	for _, v := range seed.Vendors {
		vendors[v.ID] = v
	}

	items := make([]models.AssetDescriptor, 0, len(seed.Assets))
	for _, a := range seed.Assets {
		if a.ID == "" {
			return nil, apperrors.New(apperrors.ErrCodeValidation, "catalog seed asset without id")
		}
		d := models.AssetDescriptor{
			ID:           a.ID,
			Name:         a.Name,
			Category:     a.Category,
			Color:        a.Color,
			Price:        a.Price,
			PreviewURL:   a.PreviewURL,
			NativeWidth:  a.NativeWidth,
			NativeHeight: a.NativeHeight,
		}
		if a.Vendor != "" {
			v, ok := vendors[a.Vendor]
			if !ok {
				return nil, apperrors.New(apperrors.ErrCodeValidation, "asset %q references unknown vendor %q", a.ID, a.Vendor)
			}
			d.Vendor = &v
		}
		items = append(items, d)
	}
	return NewMemory(items), nil
}
