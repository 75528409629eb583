package scene

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
	"github.com/chazu/geoscene/pkg/wire"
)

// Record converts the node and everything it renders into a wire record.
// It reads the scene without modifying it. Parent links and generic
// children are never included.
func (s *Scene) Record(id NodeID) (wire.Record, error) {
	n := s.nodes[id]
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	switch d := n.data.(type) {
	case *MapData:
		rec := wire.MapRecord{ID: string(id), Layers: make([]wire.Record, 0, len(d.Layers))}
		for _, l := range d.Layers {
			lr, err := s.Record(l)
			if err != nil {
				return nil, err
			}
			rec.Layers = append(rec.Layers, lr)
		}
		return rec, nil

	case *GraphicsLayerData:
		rec := wire.GraphicsLayerRecord{
			ID:       string(id),
			Title:    d.Title,
			Opacity:  style.Clone(d.Opacity),
			Visible:  style.Clone(d.Visible),
			Graphics: make([]wire.GraphicRecord, 0, len(d.Graphics)),
		}
		for _, g := range d.Graphics {
			gr, err := s.Record(g)
			if err != nil {
				return nil, err
			}
			rec.Graphics = append(rec.Graphics, gr.(wire.GraphicRecord))
		}
		return rec, nil

	case *GraphicData:
		rec := wire.GraphicRecord{ID: string(id), Attributes: cloneAttributes(d.Attributes)}
		var err error
		if rec.Geometry, err = s.optionalRecord(d.Geometry); err != nil {
			return nil, err
		}
		if rec.Symbol, err = s.optionalRecord(d.Symbol); err != nil {
			return nil, err
		}
		if p := s.nodes[n.parent]; p != nil && p.kind == KindGraphicsLayer {
			idx := d.Index
			rec.Index = &idx
		}
		return rec, nil

	case *PolygonData:
		return wire.PolygonRecord{
			Rings: lo.Map(d.Rings, func(r geom.Ring, _ int) [][2]float64 {
				return lo.Map(r, func(p geom.Point, _ int) [2]float64 { return [2]float64{p.X, p.Y} })
			}),
			SpatialReference: style.Clone(d.SpatialReference),
			Extent:           style.Clone(d.Extent),
		}, nil

	case *SimpleFillSymbolData:
		rec := wire.SimpleFillRecord{Color: style.Clone(d.Color), Style: style.Clone(d.Style)}
		if o, ok := s.nodes[d.Outline].dataOrNil().(*OutlineData); ok {
			line := lineRecord(o)
			rec.Outline = &line
		}
		return rec, nil

	case *OutlineData:
		return lineRecord(d), nil

	case *TextSymbolData:
		rec := wire.TextRecord{Text: d.Text, Color: style.Clone(d.Color)}
		if f, ok := s.nodes[d.Font].dataOrNil().(*MapFontData); ok {
			font := fontRecord(f)
			rec.Font = &font
		}
		return rec, nil

	case *MapFontData:
		return fontRecord(d), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, n.kind)
	}
}

func (n *Node) dataOrNil() NodeData {
	if n == nil {
		return nil
	}
	return n.data
}

func (s *Scene) optionalRecord(id NodeID) (wire.Record, error) {
	if id.IsZero() {
		return nil, nil
	}
	return s.Record(id)
}

func lineRecord(d *OutlineData) wire.SimpleLineRecord {
	return wire.SimpleLineRecord{
		Color: style.Clone(d.Color),
		Width: style.Clone(d.Width),
		Style: style.Clone(d.Style),
	}
}

func fontRecord(d *MapFontData) wire.FontRecord {
	return wire.FontRecord{
		Size:   style.Clone(d.Size),
		Family: style.Clone(d.Family),
		Style:  style.Clone(d.Style),
		Weight: style.Clone(d.Weight),
	}
}

// Import builds nodes from a record through the constructors and the
// registration protocol, and returns the top node. Imported nodes get fresh
// IDs. A map record imports its layers into the scene's root and returns
// the root.
func (s *Scene) Import(rec wire.Record) (NodeID, error) {
	switch r := rec.(type) {
	case wire.MapRecord:
		for _, lr := range r.Layers {
			l, err := s.Import(lr)
			if err != nil {
				return ZeroID, err
			}
			if _, err := s.RegisterChild(s.root, l); err != nil {
				return ZeroID, err
			}
		}
		return s.root, nil

	case wire.GraphicsLayerRecord:
		id := s.NewGraphicsLayer(r.Title)
		d := s.nodes[id].data.(*GraphicsLayerData)
		d.Opacity = style.Clone(r.Opacity)
		d.Visible = style.Clone(r.Visible)
		for _, gr := range r.Graphics {
			g, err := s.Import(gr)
			if err != nil {
				return ZeroID, err
			}
			if _, err := s.RegisterChild(id, g); err != nil {
				return ZeroID, err
			}
		}
		return id, nil

	case wire.GraphicRecord:
		geometry, err := s.importOptional(r.Geometry)
		if err != nil {
			return ZeroID, err
		}
		symbol, err := s.importOptional(r.Symbol)
		if err != nil {
			return ZeroID, err
		}
		return s.NewGraphic(geometry, symbol, r.Attributes)

	case wire.PolygonRecord:
		rings := lo.Map(r.Rings, func(ring [][2]float64, _ int) geom.Ring {
			return lo.Map(ring, func(p [2]float64, _ int) geom.Point { return geom.Pt(p[0], p[1]) })
		})
		return s.NewPolygon(rings, r.SpatialReference, r.Extent), nil

	case wire.SimpleFillRecord:
		var outline NodeID
		if r.Outline != nil {
			outline = s.NewOutline(r.Outline.Color, r.Outline.Width, r.Outline.Style)
		}
		return s.NewSimpleFillSymbol(outline, r.Color, r.Style)

	case wire.SimpleLineRecord:
		return s.NewOutline(r.Color, r.Width, r.Style), nil

	case wire.TextRecord:
		var font NodeID
		if r.Font != nil {
			font = s.NewMapFont(r.Font.Size, r.Font.Family, r.Font.Style, r.Font.Weight)
		}
		return s.NewTextSymbol(r.Text, r.Color, font)

	case wire.FontRecord:
		return s.NewMapFont(r.Size, r.Family, r.Style, r.Weight), nil

	case nil:
		return ZeroID, fmt.Errorf("scene: import of nil record")
	default:
		return ZeroID, fmt.Errorf("%w: %s", wire.ErrUnknownType, rec.Type())
	}
}

func (s *Scene) importOptional(rec wire.Record) (NodeID, error) {
	if rec == nil {
		return ZeroID, nil
	}
	return s.Import(rec)
}
