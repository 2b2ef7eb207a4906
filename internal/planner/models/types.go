package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Geometry primitives
// ============================================================

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ============================================================
// Scene entities
// ============================================================

// Kind discriminates the entity variants.
type Kind int

const (
	KindAsset Kind = iota + 1
	KindWall
)

func (k Kind) String() string {
	switch k {
	case KindAsset:
		return "asset"
	case KindWall:
		return "wall"
	}
	return "unknown"
}

// WallThickness is the fixed stroke width of every wall.
const WallThickness = 4.0

// Entity is a placed element of a scene. The set of implementations is closed:
// *AssetInstance and *WallSegment.
type Entity interface {
	EntityID() string
	Kind() Kind
	sealed()
}

// AssetInstance is a placed reference to a catalog item.
type AssetInstance struct {
	ID       string
	AssetRef string
	X        float64
	Y        float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64

	// Intrinsic size of the resolved visual; on-screen size is Base*Scale.
	BaseWidth  float64
	BaseHeight float64
	PreviewURL string
}

func (a *AssetInstance) EntityID() string { return a.ID }
func (a *AssetInstance) Kind() Kind       { return KindAsset }
func (a *AssetInstance) sealed()          {}

// Width returns the scaled on-screen width.
func (a *AssetInstance) Width() float64 { return a.BaseWidth * a.ScaleX }

// Height returns the scaled on-screen height.
func (a *AssetInstance) Height() float64 { return a.BaseHeight * a.ScaleY }

// WallSegment is a straight boundary element starting at (X, Y).
type WallSegment struct {
	ID       string
	X        float64
	Y        float64
	Length   float64
	Rotation float64
}

func (w *WallSegment) EntityID() string { return w.ID }
func (w *WallSegment) Kind() Kind       { return KindWall }
func (w *WallSegment) sealed()          {}

// ============================================================
// Catalog
// ============================================================

type Vendor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Info    string `json:"info,omitempty"`
}

type AssetDescriptor struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Color        string  `json:"color"`
	Price        Price   `json:"price"`
	PreviewURL   string  `json:"previewUrl"`
	NativeWidth  float64 `json:"nativeWidth"`
	NativeHeight float64 `json:"nativeHeight"`
	Vendor       *Vendor `json:"vendor,omitempty"`
}

// Visual is a resolved asset: its descriptor plus the intrinsic size of its
// preview resource.
type Visual struct {
	Descriptor AssetDescriptor
	Width      float64
	Height     float64
}

// Price is a catalog price. Missing or unparsable values decode as invalid
// instead of failing the whole descriptor.
type Price struct {
	Amount decimal.Decimal
	Valid  bool
}

// NewPrice builds a valid price from a decimal string, panicking on bad input.
func NewPrice(s string) Price {
	return Price{Amount: decimal.RequireFromString(s), Valid: true}
}

// Value returns the amount, or zero for an invalid price.
func (p Price) Value() decimal.Decimal {
	if !p.Valid {
		return decimal.Zero
	}
	return p.Amount
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Amount.String()), nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	p.parse(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

// UnmarshalTOML accepts integers, floats and numeric strings.
func (p *Price) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		*p = Price{Amount: decimal.NewFromInt(val), Valid: true}
	case float64:
		*p = Price{Amount: decimal.NewFromFloat(val), Valid: true}
	case string:
		p.parse(val)
	default:
		*p = Price{}
	}
	return nil
}

func (p *Price) parse(s string) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		*p = Price{}
		return
	}
	*p = Price{Amount: amount, Valid: true}
}

// ============================================================
// Aggregation
// ============================================================

// Aggregation is the derived cost summary of a scene.
type Aggregation struct {
	Total   decimal.Decimal `json:"totalPrice"`
	Vendors []Vendor        `json:"vendors"`
	// Asset entity ids whose ref did not resolve.
	Excluded []string `json:"excluded,omitempty"`
}

// ============================================================
// Persisted project document
// ============================================================

type ShapeKind string

const (
	ShapeRectangle ShapeKind = "Rectangle"
	ShapePolygon   ShapeKind = "Polygon"
)

type PlotRecord struct {
	ShapeKind ShapeKind `json:"shapeKind"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Points    []Point   `json:"points,omitempty"`
}

type EntityRecord struct {
	AssetRef    string  `json:"assetRef"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ScaleFactor float64 `json:"scaleFactor"`
	// Written only when the vertical scale differs from ScaleFactor.
	ScaleY   *float64 `json:"scaleY,omitempty"`
	Rotation float64  `json:"rotationDegrees"`
}

type WallRecord struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Length   float64 `json:"length"`
	Rotation float64 `json:"rotationDegrees"`
}

type ProjectDocument struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Plot        PlotRecord     `json:"plot"`
	Entities    []EntityRecord `json:"entities"`
	Walls       []WallRecord   `json:"walls"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// StoredProject is a document together with its storage metadata.
type StoredProject struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Document  ProjectDocument `json:"document"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ProjectSummary is a list entry of a user's stored projects.
type ProjectSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updated_at"`
}

// FormatFloat renders v without trailing zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DescribeEntity returns a short human label used in logs and warnings.
func DescribeEntity(e Entity) string {
	switch v := e.(type) {
	case *AssetInstance:
		return fmt.Sprintf("asset %s (ref %s)", v.ID, v.AssetRef)
	case *WallSegment:
		return fmt.Sprintf("wall %s (length %s)", v.ID, FormatFloat(v.Length))
	}
	return "unknown entity"
}
