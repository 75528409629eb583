// Package wire defines the acyclic, type-tagged records sent to the external
// rendering engine. Records carry only render-relevant state: no parent
// links and no references back into the live component tree.
package wire

import (
	"encoding/json"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
)

// Type tags. These strings are part of the wire contract and must never be
// derived from Go type names.
const (
	TypeMap           = "map"
	TypeGraphicsLayer = "graphics"
	TypeGraphic       = "graphic"
	TypePolygon       = "polygon"
	TypeSimpleFill    = "simple-fill"
	TypeSimpleLine    = "simple-line"
	TypeText          = "text"
	TypeFont          = "font"
)

// Record is the closed set of wire records.
type Record interface {
	// Type returns the fixed discriminator written as the "type" field.
	Type() string
	record()
}

// ---------------------------------------------------------------------------
// Geometries
// ---------------------------------------------------------------------------

// PolygonRecord is a polygon's rings as [x, y] pairs.
type PolygonRecord struct {
	Rings            [][][2]float64         `json:"rings"`
	SpatialReference *geom.SpatialReference `json:"spatialReference,omitempty"`
	Extent           *geom.Extent           `json:"extent,omitempty"`
}

func (PolygonRecord) Type() string { return TypePolygon }
func (PolygonRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r PolygonRecord) MarshalJSON() ([]byte, error) {
	type plain PolygonRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypePolygon, plain(r)})
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// SimpleLineRecord is a line symbol, used standalone or as a fill outline.
type SimpleLineRecord struct {
	Color *style.Color     `json:"color,omitempty"`
	Width *float64         `json:"width,omitempty"`
	Style *style.LineStyle `json:"style,omitempty"`
}

func (SimpleLineRecord) Type() string { return TypeSimpleLine }
func (SimpleLineRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r SimpleLineRecord) MarshalJSON() ([]byte, error) {
	type plain SimpleLineRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeSimpleLine, plain(r)})
}

// SimpleFillRecord is a fill symbol with an optional nested outline.
type SimpleFillRecord struct {
	Color   *style.Color      `json:"color,omitempty"`
	Style   *style.FillStyle  `json:"style,omitempty"`
	Outline *SimpleLineRecord `json:"outline,omitempty"`
}

func (SimpleFillRecord) Type() string { return TypeSimpleFill }
func (SimpleFillRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r SimpleFillRecord) MarshalJSON() ([]byte, error) {
	type plain SimpleFillRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeSimpleFill, plain(r)})
}

// FontRecord describes the font of a text symbol.
type FontRecord struct {
	Size   *int    `json:"size,omitempty"`
	Family *string `json:"family,omitempty"`
	Style  *string `json:"style,omitempty"`
	Weight *string `json:"weight,omitempty"`
}

func (FontRecord) Type() string { return TypeFont }
func (FontRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r FontRecord) MarshalJSON() ([]byte, error) {
	type plain FontRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeFont, plain(r)})
}

// TextRecord is a text symbol.
type TextRecord struct {
	Text  string       `json:"text"`
	Color *style.Color `json:"color,omitempty"`
	Font  *FontRecord  `json:"font,omitempty"`
}

func (TextRecord) Type() string { return TypeText }
func (TextRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r TextRecord) MarshalJSON() ([]byte, error) {
	type plain TextRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeText, plain(r)})
}

// ---------------------------------------------------------------------------
// Graphics and layers
// ---------------------------------------------------------------------------

// GraphicRecord is a graphic with its nested geometry and symbol.
// Index is the graphic's position in its layer and is absent for a
// detached graphic.
type GraphicRecord struct {
	ID         string         `json:"id"`
	Geometry   Record         `json:"geometry,omitempty"`
	Symbol     Record         `json:"symbol,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Index      *int           `json:"index,omitempty"`
}

func (GraphicRecord) Type() string { return TypeGraphic }
func (GraphicRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r GraphicRecord) MarshalJSON() ([]byte, error) {
	type plain GraphicRecord
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeGraphic, plain(r)})
}

// UnmarshalJSON implements json.Unmarshaler. The nested geometry and symbol
// are decoded by their own type tags.
func (r *GraphicRecord) UnmarshalJSON(b []byte) error {
	type plain GraphicRecord
	var aux struct {
		plain
		Geometry json.RawMessage `json:"geometry,omitempty"`
		Symbol   json.RawMessage `json:"symbol,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = GraphicRecord(aux.plain)
	var err error
	if r.Geometry, err = unmarshalOptional(aux.Geometry); err != nil {
		return err
	}
	if r.Symbol, err = unmarshalOptional(aux.Symbol); err != nil {
		return err
	}
	return nil
}

// GraphicsLayerRecord is a graphics layer with its graphics in positional
// order.
type GraphicsLayerRecord struct {
	ID       string          `json:"id"`
	Title    string          `json:"title,omitempty"`
	Opacity  *float64        `json:"opacity,omitempty"`
	Visible  *bool           `json:"visible,omitempty"`
	Graphics []GraphicRecord `json:"graphics"`
}

func (GraphicsLayerRecord) Type() string { return TypeGraphicsLayer }
func (GraphicsLayerRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r GraphicsLayerRecord) MarshalJSON() ([]byte, error) {
	type plain GraphicsLayerRecord
	if r.Graphics == nil {
		r.Graphics = []GraphicRecord{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeGraphicsLayer, plain(r)})
}

// MapRecord is the whole scene: its layers in draw order.
type MapRecord struct {
	ID     string   `json:"id"`
	Layers []Record `json:"layers"`
}

func (MapRecord) Type() string { return TypeMap }
func (MapRecord) record()      {}

// MarshalJSON implements json.Marshaler.
func (r MapRecord) MarshalJSON() ([]byte, error) {
	type plain MapRecord
	if r.Layers == nil {
		r.Layers = []Record{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeMap, plain(r)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *MapRecord) UnmarshalJSON(b []byte) error {
	type plain MapRecord
	var aux struct {
		plain
		Layers []json.RawMessage `json:"layers"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = MapRecord(aux.plain)
	r.Layers = make([]Record, 0, len(aux.Layers))
	for _, raw := range aux.Layers {
		l, err := Unmarshal(raw)
		if err != nil {
			return err
		}
		r.Layers = append(r.Layers, l)
	}
	return nil
}
