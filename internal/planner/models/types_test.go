package models

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestPriceDecodingIsLenient(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantValid bool
		wantValue string
	}{
		{"number", `{"id":"a","price":500}`, true, "500"},
		{"decimal", `{"id":"a","price":12.75}`, true, "12.75"},
		{"numeric string", `{"id":"a","price":"99.9"}`, true, "99.9"},
		{"garbage string", `{"id":"a","price":"call us"}`, false, "0"},
		{"null", `{"id":"a","price":null}`, false, "0"},
		{"missing", `{"id":"a"}`, false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d AssetDescriptor
			if err := json.Unmarshal([]byte(tt.payload), &d); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if d.Price.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", d.Price.Valid, tt.wantValid)
			}
			if got := d.Price.Value().String(); got != tt.wantValue {
				t.Errorf("Value() = %s, want %s", got, tt.wantValue)
			}
		})
	}
}

func TestPriceTOML(t *testing.T) {
	var p Price
	_ = p.UnmarshalTOML(int64(7))
	if p.Value().String() != "7" {
		t.Errorf("int64 price = %s", p.Value())
	}
	_ = p.UnmarshalTOML("nope")
	if p.Valid {
		t.Error("non-numeric string should be invalid")
	}
	_ = p.UnmarshalTOML(true)
	if p.Valid {
		t.Error("bool should be invalid")
	}
}

func TestEntityKinds(t *testing.T) {
	var entities = []Entity{&AssetInstance{ID: "a"}, &WallSegment{ID: "w"}}
	want := []Kind{KindAsset, KindWall}
	for i, e := range entities {
		if e.Kind() != want[i] {
			t.Errorf("%s kind = %v, want %v", e.EntityID(), e.Kind(), want[i])
		}
	}
	if KindWall.String() != "wall" || Kind(0).String() != "unknown" {
		t.Error("Kind.String() mismatch")
	}
}
