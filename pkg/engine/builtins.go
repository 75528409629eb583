package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/scene"
	"github.com/chazu/geoscene/pkg/style"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPoint wraps a geom.Point.
type sexpPoint struct {
	p geom.Point
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g)", p.p.X, p.p.Y)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpRing wraps a geom.Ring.
type sexpRing struct {
	ring geom.Ring
}

func (r *sexpRing) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(ring <%d points>)", len(r.ring))
}
func (r *sexpRing) Type() *zygo.RegisteredType { return nil }

// sexpColor wraps a style.Color.
type sexpColor struct {
	c style.Color
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(color %d %d %d %g)", c.c.R, c.c.G, c.c.B, c.c.A)
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a scene.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   scene.NodeID
	kind scene.Kind
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %s)", n.kind, n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			// Trailing keyword with no value.
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a bool from a SexpBool.
func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_solid) and plain strings ("solid").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toNodeRef extracts a node reference of one of the wanted kinds.
func toNodeRef(s zygo.Sexp, want func(scene.Kind) bool) (scene.NodeID, error) {
	ref, ok := s.(*sexpNodeRef)
	if !ok {
		return scene.ZeroID, fmt.Errorf("expected component, got %T (%s)", s, s.SexpString(nil))
	}
	if want != nil && !want(ref.kind) {
		return scene.ZeroID, fmt.Errorf("unexpected %s component", ref.kind)
	}
	return ref.id, nil
}

func toColor(s zygo.Sexp) (style.Color, error) {
	if c, ok := s.(*sexpColor); ok {
		return c.c, nil
	}
	return style.Color{}, fmt.Errorf("expected color, got %T (%s)", s, s.SexpString(nil))
}

// toPoint accepts (pt x y) or a two-number list.
func toPoint(s zygo.Sexp) (geom.Point, error) {
	if p, ok := s.(*sexpPoint); ok {
		return p.p, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil || len(items) != 2 {
		return geom.Point{}, fmt.Errorf("expected point, got %s", s.SexpString(nil))
	}
	x, err := toFloat64(items[0])
	if err != nil {
		return geom.Point{}, err
	}
	y, err := toFloat64(items[1])
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Pt(x, y), nil
}

// toRing accepts (ring ...) or a list of points.
func toRing(s zygo.Sexp) (geom.Ring, error) {
	if r, ok := s.(*sexpRing); ok {
		return r.ring, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, fmt.Errorf("expected ring: %w", err)
	}
	ring := make(geom.Ring, 0, len(items))
	for i, it := range items {
		p, err := toPoint(it)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		ring = append(ring, p)
	}
	return ring, nil
}

// toValue converts a literal into an attribute value. Numbers become
// float64, the form they take after a JSON round trip.
func toValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpStr:
		return strings.TrimPrefix(v.S, kwPrefix), nil
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpPair, *zygo.SexpArray:
		items, err := sexpListToSlice(s)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			val, err := toValue(it)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	if s == zygo.SexpNull {
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported attribute value %T (%s)", s, s.SexpString(nil))
}

// toAttributes reads a property list: (list "name" "Lot 4" :area 120).
func toAttributes(s zygo.Sexp) (map[string]any, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("attribute list needs key/value pairs, got %d items", len(items))
	}
	attrs := make(map[string]any, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, err := toKeywordString(items[i])
		if err != nil {
			return nil, fmt.Errorf("attribute key: %w", err)
		}
		v, err := toValue(items[i+1])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Optional keyword readers
// ---------------------------------------------------------------------------

// kwOpt reads keyword name with conv when present. The result is nil when
// the keyword is absent.
func kwOpt[T any](pa kwArgs, name string, conv func(zygo.Sexp) (T, error)) (*T, error) {
	v, ok := pa.kw[name]
	if !ok {
		return nil, nil
	}
	out, err := conv(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &out, nil
}

func toFillStyle(s zygo.Sexp) (style.FillStyle, error) {
	tok, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	return style.ParseFillStyle(tok)
}

func toLineStyle(s zygo.Sexp) (style.LineStyle, error) {
	tok, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	return style.ParseLineStyle(tok)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtin is the signature of a DSL function. Errors are prefixed with the
// DSL name by register.
type builtin func(pa kwArgs) (zygo.Sexp, error)

// registerBuiltins installs all scene DSL builtins into a zygomys
// environment. The builtins build components in s through its constructors
// and the registration protocol.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *scene.Scene) {
	b := &builder{s: s}

	// zygomys identifiers cannot hold hyphens; preprocessSource rewrites
	// simple-fill to simple_fill and so on.
	for name, fn := range map[string]builtin{
		"pt":             b.point,
		"ring":           b.ring,
		"color":          b.color,
		"polygon":        b.polygon,
		"outline":        b.outline,
		"simple_fill":    b.simpleFill,
		"font":           b.font,
		"text_symbol":    b.textSymbol,
		"graphic":        b.graphic,
		"graphics_layer": b.graphicsLayer,
	} {
		dslName := strings.ReplaceAll(name, "_", "-")
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			out, err := fn(parseArgs(args))
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", dslName, err)
			}
			return out, nil
		})
	}
}

type builder struct {
	s *scene.Scene
}

// named binds the :name keyword, if present, to id.
func (b *builder) named(pa kwArgs, id scene.NodeID, kind scene.Kind) (zygo.Sexp, error) {
	if v, ok := pa.kw["name"]; ok {
		name, err := toString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("name: %w", err)
		}
		if err := b.s.SetName(id, name); err != nil {
			return zygo.SexpNull, err
		}
	}
	return &sexpNodeRef{id: id, kind: kind}, nil
}

// (pt 1 2)
func (b *builder) point(pa kwArgs) (zygo.Sexp, error) {
	if len(pa.positional) != 2 {
		return zygo.SexpNull, fmt.Errorf("requires exactly 2 arguments, got %d", len(pa.positional))
	}
	x, err := toFloat64(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("x: %w", err)
	}
	y, err := toFloat64(pa.positional[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("y: %w", err)
	}
	return &sexpPoint{p: geom.Pt(x, y)}, nil
}

// (ring (pt 0 0) (pt 1 0) (pt 1 1) (pt 0 0))
func (b *builder) ring(pa kwArgs) (zygo.Sexp, error) {
	ring := make(geom.Ring, 0, len(pa.positional))
	for i, a := range pa.positional {
		p, err := toPoint(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("point %d: %w", i, err)
		}
		ring = append(ring, p)
	}
	return &sexpRing{ring: ring}, nil
}

// (color 255 0 0) or (color 255 0 0 0.5)
func (b *builder) color(pa kwArgs) (zygo.Sexp, error) {
	n := len(pa.positional)
	if n != 3 && n != 4 {
		return zygo.SexpNull, fmt.Errorf("requires 3 or 4 arguments, got %d", n)
	}
	var rgb [3]uint8
	for i := range rgb {
		v, err := toInt(pa.positional[i])
		if err != nil || v < 0 || v > 255 {
			return zygo.SexpNull, fmt.Errorf("component %d must be an integer in 0..255", i)
		}
		rgb[i] = uint8(v)
	}
	alpha := 1.0
	if n == 4 {
		a, err := toFloat64(pa.positional[3])
		if err != nil || a < 0 || a > 1 {
			return zygo.SexpNull, fmt.Errorf("alpha must be a number in 0..1")
		}
		alpha = a
	}
	return &sexpColor{c: style.RGBA(rgb[0], rgb[1], rgb[2], alpha)}, nil
}

// (polygon (ring ...) ... :wkid 4326 :extent (list 0 0 10 10))
// Rings may also be given as :rings (list (ring ...) ...).
func (b *builder) polygon(pa kwArgs) (zygo.Sexp, error) {
	ringArgs := pa.positional
	if v, ok := pa.kw["rings"]; ok {
		items, err := sexpListToSlice(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rings: %w", err)
		}
		ringArgs = append(ringArgs, items...)
	}
	rings := make([]geom.Ring, 0, len(ringArgs))
	for i, a := range ringArgs {
		r, err := toRing(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ring %d: %w", i, err)
		}
		rings = append(rings, r)
	}

	var sr *geom.SpatialReference
	if v, ok := pa.kw["wkid"]; ok {
		wkid, err := toInt(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("wkid: %w", err)
		}
		sr = &geom.SpatialReference{WKID: wkid}
	}

	var ext *geom.Extent
	if v, ok := pa.kw["extent"]; ok {
		items, err := sexpListToSlice(v)
		if err != nil || len(items) != 4 {
			return zygo.SexpNull, fmt.Errorf("extent: expected (list xmin ymin xmax ymax)")
		}
		var f [4]float64
		for i, it := range items {
			if f[i], err = toFloat64(it); err != nil {
				return zygo.SexpNull, fmt.Errorf("extent: %w", err)
			}
		}
		ext = &geom.Extent{XMin: f[0], YMin: f[1], XMax: f[2], YMax: f[3]}
	}

	return b.named(pa, b.s.NewPolygon(rings, sr, ext), scene.KindPolygon)
}

// (outline :color (color 0 0 0) :width 1.5 :style :dash)
func (b *builder) outline(pa kwArgs) (zygo.Sexp, error) {
	c, err := kwOpt(pa, "color", toColor)
	if err != nil {
		return zygo.SexpNull, err
	}
	w, err := kwOpt(pa, "width", toFloat64)
	if err != nil {
		return zygo.SexpNull, err
	}
	ls, err := kwOpt(pa, "style", toLineStyle)
	if err != nil {
		return zygo.SexpNull, err
	}
	return b.named(pa, b.s.NewOutline(c, w, ls), scene.KindOutline)
}

// (simple-fill :color (color 200 0 0 0.5) :style :cross :outline (outline ...))
func (b *builder) simpleFill(pa kwArgs) (zygo.Sexp, error) {
	c, err := kwOpt(pa, "color", toColor)
	if err != nil {
		return zygo.SexpNull, err
	}
	fs, err := kwOpt(pa, "style", toFillStyle)
	if err != nil {
		return zygo.SexpNull, err
	}
	var outline scene.NodeID
	if v, ok := pa.kw["outline"]; ok {
		if outline, err = toNodeRef(v, func(k scene.Kind) bool { return k == scene.KindOutline }); err != nil {
			return zygo.SexpNull, fmt.Errorf("outline: %w", err)
		}
	}
	id, err := b.s.NewSimpleFillSymbol(outline, c, fs)
	if err != nil {
		return zygo.SexpNull, err
	}
	return b.named(pa, id, scene.KindSimpleFill)
}

// (font :size 12 :family "Arial" :style "italic" :weight "bold")
func (b *builder) font(pa kwArgs) (zygo.Sexp, error) {
	size, err := kwOpt(pa, "size", toInt)
	if err != nil {
		return zygo.SexpNull, err
	}
	var strs [3]*string
	for i, k := range []string{"family", "style", "weight"} {
		if strs[i], err = kwOpt(pa, k, toKeywordString); err != nil {
			return zygo.SexpNull, err
		}
	}
	return b.named(pa, b.s.NewMapFont(size, strs[0], strs[1], strs[2]), scene.KindMapFont)
}

// (text-symbol :text "Main St" :color (color 0 0 0) :font (font ...))
func (b *builder) textSymbol(pa kwArgs) (zygo.Sexp, error) {
	var text string
	if v, ok := pa.kw["text"]; ok {
		var err error
		if text, err = toString(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("text: %w", err)
		}
	}
	c, err := kwOpt(pa, "color", toColor)
	if err != nil {
		return zygo.SexpNull, err
	}
	var font scene.NodeID
	if v, ok := pa.kw["font"]; ok {
		if font, err = toNodeRef(v, func(k scene.Kind) bool { return k == scene.KindMapFont }); err != nil {
			return zygo.SexpNull, fmt.Errorf("font: %w", err)
		}
	}
	id, err := b.s.NewTextSymbol(text, c, font)
	if err != nil {
		return zygo.SexpNull, err
	}
	return b.named(pa, id, scene.KindTextSymbol)
}

// (graphic :geometry (polygon ...) :symbol (simple-fill ...) :attributes (list "k" v))
func (b *builder) graphic(pa kwArgs) (zygo.Sexp, error) {
	var geometry, symbol scene.NodeID
	var err error
	if v, ok := pa.kw["geometry"]; ok {
		if geometry, err = toNodeRef(v, scene.Kind.IsGeometry); err != nil {
			return zygo.SexpNull, fmt.Errorf("geometry: %w", err)
		}
	}
	if v, ok := pa.kw["symbol"]; ok {
		if symbol, err = toNodeRef(v, scene.Kind.IsSymbol); err != nil {
			return zygo.SexpNull, fmt.Errorf("symbol: %w", err)
		}
	}
	var attrs map[string]any
	if v, ok := pa.kw["attributes"]; ok {
		if attrs, err = toAttributes(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("attributes: %w", err)
		}
	}
	id, err := b.s.NewGraphic(geometry, symbol, attrs)
	if err != nil {
		return zygo.SexpNull, err
	}
	return b.named(pa, id, scene.KindGraphic)
}

// (graphics-layer "Parcels" :opacity 0.8 :visible true (graphic ...) ...)
// The layer is added to the map.
func (b *builder) graphicsLayer(pa kwArgs) (zygo.Sexp, error) {
	args := pa.positional
	var title string
	if len(args) > 0 {
		if t, ok := args[0].(*zygo.SexpStr); ok {
			title = t.S
			args = args[1:]
		}
	}
	id := b.s.NewGraphicsLayer(title)

	opacity, err := kwOpt(pa, "opacity", toFloat64)
	if err != nil {
		return zygo.SexpNull, err
	}
	visible, err := kwOpt(pa, "visible", toBool)
	if err != nil {
		return zygo.SexpNull, err
	}
	if _, err := b.s.Apply(id, scene.SetOpacity{Opacity: opacity}); err != nil {
		return zygo.SexpNull, err
	}
	if _, err := b.s.Apply(id, scene.SetVisible{Visible: visible}); err != nil {
		return zygo.SexpNull, err
	}

	for i, a := range args {
		g, err := toNodeRef(a, func(k scene.Kind) bool { return k == scene.KindGraphic })
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("child %d: %w", i, err)
		}
		if _, err := b.s.RegisterChild(id, g); err != nil {
			return zygo.SexpNull, err
		}
	}
	if _, err := b.s.RegisterChild(b.s.Root(), id); err != nil {
		return zygo.SexpNull, err
	}
	return b.named(pa, id, scene.KindGraphicsLayer)
}
