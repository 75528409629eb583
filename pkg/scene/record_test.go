package scene

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
	"github.com/chazu/geoscene/pkg/wire"
)

func TestSimpleFillRecord(t *testing.T) {
	s := New(Options{})
	fill := newFill(t, s)

	rec, err := s.Record(fill)
	if err != nil {
		t.Fatal(err)
	}
	fr, ok := rec.(wire.SimpleFillRecord)
	if !ok {
		t.Fatalf("record = %T", rec)
	}
	if fr.Type() != "simple-fill" {
		t.Errorf("type = %q", fr.Type())
	}
	if fr.Outline == nil || fr.Outline.Type() != "simple-line" || *fr.Outline.Width != 1.5 {
		t.Errorf("outline = %+v", fr.Outline)
	}
	if *fr.Style != style.FillSolid || *fr.Color != style.RGBA(200, 10, 10, 0.5) {
		t.Errorf("record = %+v", fr)
	}

	b, err := wire.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	back, err := wire.Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, rec) {
		t.Errorf("round trip = %+v, want %+v", back, rec)
	}
}

func TestFillWithoutOutlineOmitsField(t *testing.T) {
	s := New(Options{})
	fill, _ := s.NewSimpleFillSymbol(ZeroID, nil, ptr(style.FillCross))
	rec, _ := s.Record(fill)
	b, err := wire.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["outline"]; ok {
		t.Errorf("outline present in %s", b)
	}
}

func TestGraphicIndexOnlyInLayer(t *testing.T) {
	s := New(Options{})
	g := newGraphic(t, s, 0)
	rec, _ := s.Record(g)
	if rec.(wire.GraphicRecord).Index != nil {
		t.Error("detached graphic should have no index")
	}

	layer := s.NewGraphicsLayer("")
	mustRegister(t, s, layer, g)
	rec, _ = s.Record(g)
	if idx := rec.(wire.GraphicRecord).Index; idx == nil || *idx != 0 {
		t.Errorf("index = %v, want 0", idx)
	}
}

func TestTextSymbolRecord(t *testing.T) {
	s := New(Options{})
	font := s.NewMapFont(ptr(14), ptr("Noto Sans"), ptr("italic"), ptr("bold"))
	text, err := s.NewTextSymbol("Main St", ptr(style.RGBA(0, 0, 0, 1)), font)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Record(text)
	tr := rec.(wire.TextRecord)
	if tr.Text != "Main St" || tr.Font == nil || *tr.Font.Family != "Noto Sans" || *tr.Font.Weight != "bold" {
		t.Errorf("record = %+v", tr)
	}
}

func TestRecordIsPure(t *testing.T) {
	s := New(Options{})
	layer := s.NewGraphicsLayer("")
	mustRegister(t, s, s.Root(), layer)
	mustRegister(t, s, layer, newGraphic(t, s, 0))
	mustRegister(t, s, layer, s.NewCustom("note", nil))

	before := s.Get(layer).Data()
	r1, _ := s.Record(s.Root())
	r2, _ := s.Record(s.Root())
	if !reflect.DeepEqual(r1, r2) {
		t.Error("Record is not deterministic")
	}
	if !reflect.DeepEqual(before, s.Get(layer).Data()) {
		t.Error("Record mutated the scene")
	}
	lr := r1.(wire.MapRecord).Layers[0].(wire.GraphicsLayerRecord)
	if len(lr.Graphics) != 1 {
		t.Errorf("layer record holds %d graphics, want 1 (generic children excluded)", len(lr.Graphics))
	}
}

func TestCustomHasNoRecord(t *testing.T) {
	s := New(Options{})
	if _, err := s.Record(s.NewCustom("x", nil)); !errors.Is(err, ErrNoRecord) {
		t.Errorf("err = %v, want ErrNoRecord", err)
	}
	if _, err := s.Record(NewNodeID()); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("err = %v, want ErrNodeNotFound", err)
	}
}

// withoutIDs clears the identity fields that Import regenerates.
func withoutIDs(r wire.Record) wire.Record {
	switch r := r.(type) {
	case wire.MapRecord:
		r.ID = ""
		layers := make([]wire.Record, len(r.Layers))
		for i, l := range r.Layers {
			layers[i] = withoutIDs(l)
		}
		r.Layers = layers
		return r
	case wire.GraphicsLayerRecord:
		r.ID = ""
		gs := make([]wire.GraphicRecord, len(r.Graphics))
		for i, g := range r.Graphics {
			gs[i] = withoutIDs(g).(wire.GraphicRecord)
		}
		r.Graphics = gs
		return r
	case wire.GraphicRecord:
		r.ID = ""
		return r
	}
	return r
}

func TestImportRoundTrip(t *testing.T) {
	src := New(Options{})
	layer := src.NewGraphicsLayer("parcels")
	src.Apply(layer, SetOpacity{Opacity: ptr(0.8)})
	mustRegister(t, src, src.Root(), layer)
	for i := 0; i < 3; i++ {
		mustRegister(t, src, layer, newGraphic(t, src, float64(i)))
	}
	font := src.NewMapFont(ptr(10), nil, nil, nil)
	label, _ := src.NewTextSymbol("A", nil, font)
	poly := src.NewPolygon(square(9), &geom.SpatialReference{WKID: 4326}, nil)
	g, _ := src.NewGraphic(poly, label, nil)
	mustRegister(t, src, layer, g)

	want, err := src.Record(src.Root())
	if err != nil {
		t.Fatal(err)
	}

	dst := New(Options{})
	root, err := dst.Import(want)
	if err != nil {
		t.Fatal(err)
	}
	if root != dst.Root() {
		t.Error("importing a map record should return the root")
	}
	got, err := dst.Record(dst.Root())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(withoutIDs(got), withoutIDs(want)) {
		t.Errorf("import round trip differs:\n got %+v\nwant %+v", got, want)
	}
	if res := dst.Validate(); !res.OK() {
		t.Errorf("imported scene invalid: %v", res.Errors)
	}
}

func TestImportNil(t *testing.T) {
	s := New(Options{})
	if _, err := s.Import(nil); err == nil {
		t.Error("importing nil should fail")
	}
}
