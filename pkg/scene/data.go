package scene

import (
	"maps"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
)

// NodeData is the sealed set of kind-specific payloads.
type NodeData interface {
	nodeData()
	clone() NodeData
}

// MapData is the scene root. A layer's layer index is its position in Layers.
type MapData struct {
	Layers []NodeID
}

// GraphicsLayerData holds an insertion-ordered set of graphics.
type GraphicsLayerData struct {
	Title    string
	Opacity  *float64
	Visible  *bool
	Graphics []NodeID
}

// GraphicData pairs a geometry with a symbol. Index is the graphic's
// position inside its layer, or -1 while it is not in a layer.
type GraphicData struct {
	Geometry   NodeID
	Symbol     NodeID
	Attributes map[string]any
	Index      int
}

// PolygonData is a polygon geometry.
type PolygonData struct {
	Rings            []geom.Ring
	SpatialReference *geom.SpatialReference
	Extent           *geom.Extent
}

// SimpleFillSymbolData is a fill symbol with an optional outline.
type SimpleFillSymbolData struct {
	Color   *style.Color
	Style   *style.FillStyle
	Outline NodeID
}

// OutlineData is a simple line symbol. It serves as a fill outline or
// stands alone as a graphic's symbol.
type OutlineData struct {
	Color *style.Color
	Width *float64
	Style *style.LineStyle
}

// TextSymbolData is a text symbol with an optional font.
type TextSymbolData struct {
	Text  string
	Color *style.Color
	Font  NodeID
}

// MapFontData describes a text symbol's font.
type MapFontData struct {
	Size   *int
	Family *string
	Style  *string
	Weight *string
}

// CustomData is an application-defined component. It has no record form
// and keeps its own children in the node's generic child list.
type CustomData struct {
	Name  string
	Props map[string]any
}

func (*MapData) nodeData()              {}
func (*GraphicsLayerData) nodeData()    {}
func (*GraphicData) nodeData()          {}
func (*PolygonData) nodeData()          {}
func (*SimpleFillSymbolData) nodeData() {}
func (*OutlineData) nodeData()          {}
func (*TextSymbolData) nodeData()       {}
func (*MapFontData) nodeData()          {}
func (*CustomData) nodeData()           {}

func (d *MapData) clone() NodeData {
	return &MapData{Layers: append([]NodeID(nil), d.Layers...)}
}

func (d *GraphicsLayerData) clone() NodeData {
	return &GraphicsLayerData{
		Title:    d.Title,
		Opacity:  style.Clone(d.Opacity),
		Visible:  style.Clone(d.Visible),
		Graphics: append([]NodeID(nil), d.Graphics...),
	}
}

func (d *GraphicData) clone() NodeData {
	return &GraphicData{
		Geometry:   d.Geometry,
		Symbol:     d.Symbol,
		Attributes: cloneAttributes(d.Attributes),
		Index:      d.Index,
	}
}

func (d *PolygonData) clone() NodeData {
	return &PolygonData{
		Rings:            geom.CloneRings(d.Rings),
		SpatialReference: style.Clone(d.SpatialReference),
		Extent:           style.Clone(d.Extent),
	}
}

func (d *SimpleFillSymbolData) clone() NodeData {
	return &SimpleFillSymbolData{
		Color:   style.Clone(d.Color),
		Style:   style.Clone(d.Style),
		Outline: d.Outline,
	}
}

func (d *OutlineData) clone() NodeData {
	return &OutlineData{
		Color: style.Clone(d.Color),
		Width: style.Clone(d.Width),
		Style: style.Clone(d.Style),
	}
}

func (d *TextSymbolData) clone() NodeData {
	return &TextSymbolData{Text: d.Text, Color: style.Clone(d.Color), Font: d.Font}
}

func (d *MapFontData) clone() NodeData {
	return &MapFontData{
		Size:   style.Clone(d.Size),
		Family: style.Clone(d.Family),
		Style:  style.Clone(d.Style),
		Weight: style.Clone(d.Weight),
	}
}

func (d *CustomData) clone() NodeData {
	return &CustomData{Name: d.Name, Props: cloneAttributes(d.Props)}
}

// cloneAttributes copies nested maps and slices so that the caller's value
// and the stored value never alias.
func cloneAttributes(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneAttributes(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// kindOf maps a payload to its Kind.
func kindOf(d NodeData) Kind {
	switch d.(type) {
	case *MapData:
		return KindMap
	case *GraphicsLayerData:
		return KindGraphicsLayer
	case *GraphicData:
		return KindGraphic
	case *PolygonData:
		return KindPolygon
	case *SimpleFillSymbolData:
		return KindSimpleFill
	case *OutlineData:
		return KindOutline
	case *TextSymbolData:
		return KindTextSymbol
	case *MapFontData:
		return KindMapFont
	default:
		return KindCustom
	}
}
