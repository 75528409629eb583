package scene

import (
	"fmt"
	"reflect"

	"github.com/samber/lo"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
)

// Change is the sealed set of property assignments accepted by Apply.
type Change interface {
	change()
}

// SetRings replaces a polygon's rings.
type SetRings struct{ Rings []geom.Ring }

// SetSpatialReference replaces a polygon's spatial reference.
type SetSpatialReference struct{ SpatialReference *geom.SpatialReference }

// SetExtent replaces a polygon's extent.
type SetExtent struct{ Extent *geom.Extent }

// SetColor replaces the color of a fill, line or text symbol.
type SetColor struct{ Color *style.Color }

// SetFillStyle replaces a fill symbol's style.
type SetFillStyle struct{ Style *style.FillStyle }

// SetLineWidth replaces a line symbol's width.
type SetLineWidth struct{ Width *float64 }

// SetLineStyle replaces a line symbol's style.
type SetLineStyle struct{ Style *style.LineStyle }

// SetText replaces a text symbol's text.
type SetText struct{ Text string }

// SetFont replaces every field of a font.
type SetFont struct {
	Size   *int
	Family *string
	Style  *string
	Weight *string
}

// SetAttributes replaces a graphic's attributes.
type SetAttributes struct{ Attributes map[string]any }

// SetTitle replaces a layer's title.
type SetTitle struct{ Title string }

// SetOpacity replaces a layer's opacity.
type SetOpacity struct{ Opacity *float64 }

// SetVisible replaces a layer's visibility.
type SetVisible struct{ Visible *bool }

// SetGraphics replaces a layer's graphics. Graphics kept from the current
// set keep their positions; new ones are appended in the given order.
type SetGraphics struct{ Graphics []NodeID }

func (SetRings) change()            {}
func (SetSpatialReference) change() {}
func (SetExtent) change()           {}
func (SetColor) change()            {}
func (SetFillStyle) change()        {}
func (SetLineWidth) change()        {}
func (SetLineStyle) change()        {}
func (SetText) change()             {}
func (SetFont) change()             {}
func (SetAttributes) change()       {}
func (SetTitle) change()            {}
func (SetOpacity) change()          {}
func (SetVisible) change()          {}
func (SetGraphics) change()         {}

// Apply assigns a property of node id. When the new value equals the
// current one nothing changes. Otherwise a copy of the value is stored and,
// if the node is rendered, one update of its addressable ancestor is
// enqueued.
func (s *Scene) Apply(id NodeID, c Change) (ChangeResult, error) {
	n := s.nodes[id]
	if n == nil {
		return ChangeResult{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if sg, ok := c.(SetGraphics); ok {
		return s.setGraphics(n, sg.Graphics)
	}

	changed, ok := assign(n.data, c)
	if !ok {
		return ChangeResult{}, fmt.Errorf("%w: %T on %s", ErrChangeNotApplicable, c, n.kind)
	}
	if !changed {
		return ChangeResult{}, nil
	}
	res := ChangeResult{Applied: true}
	res.add(s.emitUpdate(id))
	return res, nil
}

// assign stores c into d. ok is false when c does not apply to d.
func assign(d NodeData, c Change) (changed, ok bool) {
	switch d := d.(type) {
	case *PolygonData:
		switch c := c.(type) {
		case SetRings:
			return setIf(!geom.RingsEqual(d.Rings, c.Rings), func() { d.Rings = geom.CloneRings(c.Rings) }), true
		case SetSpatialReference:
			return setPtr(&d.SpatialReference, c.SpatialReference), true
		case SetExtent:
			return setPtr(&d.Extent, c.Extent), true
		}

	case *SimpleFillSymbolData:
		switch c := c.(type) {
		case SetColor:
			return setPtr(&d.Color, c.Color), true
		case SetFillStyle:
			return setPtr(&d.Style, c.Style), true
		}

	case *OutlineData:
		switch c := c.(type) {
		case SetColor:
			return setPtr(&d.Color, c.Color), true
		case SetLineWidth:
			return setPtr(&d.Width, c.Width), true
		case SetLineStyle:
			return setPtr(&d.Style, c.Style), true
		}

	case *TextSymbolData:
		switch c := c.(type) {
		case SetColor:
			return setPtr(&d.Color, c.Color), true
		case SetText:
			return setIf(d.Text != c.Text, func() { d.Text = c.Text }), true
		}

	case *MapFontData:
		if c, ok := c.(SetFont); ok {
			a := setPtr(&d.Size, c.Size)
			b := setPtr(&d.Family, c.Family)
			st := setPtr(&d.Style, c.Style)
			w := setPtr(&d.Weight, c.Weight)
			return a || b || st || w, true
		}

	case *GraphicData:
		if c, ok := c.(SetAttributes); ok {
			return setIf(!attributesEqual(d.Attributes, c.Attributes), func() {
				d.Attributes = cloneAttributes(c.Attributes)
			}), true
		}

	case *GraphicsLayerData:
		switch c := c.(type) {
		case SetTitle:
			return setIf(d.Title != c.Title, func() { d.Title = c.Title }), true
		case SetOpacity:
			return setPtr(&d.Opacity, c.Opacity), true
		case SetVisible:
			return setPtr(&d.Visible, c.Visible), true
		}
	}
	return false, false
}

func setIf(differs bool, store func()) bool {
	if differs {
		store()
	}
	return differs
}

// setPtr stores a copy of v in *field when it differs field-wise.
func setPtr[T comparable](field **T, v *T) bool {
	if style.Equal(*field, v) {
		return false
	}
	*field = style.Clone(v)
	return true
}

func attributesEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// setGraphics brings a layer's membership to the given set through the
// registration protocol. Equal sets, in any order, change nothing.
func (s *Scene) setGraphics(layer *Node, ids []NodeID) (ChangeResult, error) {
	d, ok := layer.data.(*GraphicsLayerData)
	if !ok {
		return ChangeResult{}, fmt.Errorf("%w: SetGraphics on %s", ErrChangeNotApplicable, layer.kind)
	}
	for _, id := range ids {
		n := s.nodes[id]
		if n == nil {
			return ChangeResult{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if n.kind != KindGraphic {
			return ChangeResult{}, fmt.Errorf("%w: %s in SetGraphics", ErrChildNotAccepted, n.kind)
		}
	}
	want := lo.Uniq(ids)
	if len(want) == len(d.Graphics) && len(lo.Intersect(d.Graphics, want)) == len(want) {
		return ChangeResult{}, nil
	}

	var res ChangeResult
	for _, g := range lo.Without(d.Graphics, want...) {
		r, err := s.UnregisterChild(layer.id, g)
		if err != nil {
			return res, err
		}
		res.merge(r)
	}
	for _, g := range want {
		r, err := s.RegisterChild(layer.id, g)
		if err != nil {
			return res, err
		}
		res.merge(r)
	}
	res.Applied = true
	return res, nil
}
