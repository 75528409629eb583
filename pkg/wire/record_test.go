package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
)

func ptr[T any](v T) *T { return &v }

func sampleFill() SimpleFillRecord {
	return SimpleFillRecord{
		Color: ptr(style.RGBA(200, 10, 10, 0.6)),
		Style: ptr(style.FillCross),
		Outline: &SimpleLineRecord{
			Color: ptr(style.RGBA(0, 0, 0, 1)),
			Width: ptr(1.5),
			Style: ptr(style.LineDashDot),
		},
	}
}

func sampleGraphic() GraphicRecord {
	return GraphicRecord{
		ID: "g1",
		Geometry: PolygonRecord{
			Rings:            [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			SpatialReference: &geom.SpatialReference{WKID: 4326},
		},
		Symbol:     sampleFill(),
		Attributes: map[string]any{"name": "parcel"},
		Index:      ptr(0),
	}
}

func TestSimpleFillOmitsAbsentOutline(t *testing.T) {
	b, err := Marshal(SimpleFillRecord{Style: ptr(style.FillSolid)})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "simple-fill", m["type"])
	assert.Equal(t, "solid", m["style"])
	_, hasOutline := m["outline"]
	assert.False(t, hasOutline, "absent outline must be omitted, not null")
	_, hasColor := m["color"]
	assert.False(t, hasColor)
}

func TestSimpleFillJSONShape(t *testing.T) {
	b, err := Marshal(sampleFill())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "simple-fill",
		"color": [200, 10, 10, 0.6],
		"style": "cross",
		"outline": {"type": "simple-line", "color": [0, 0, 0, 1], "width": 1.5, "style": "dash-dot"}
	}`, string(b))
}

func TestSimpleFillRoundTrip(t *testing.T) {
	orig := sampleFill()
	b, err := Marshal(orig)
	require.NoError(t, err)

	back, err := Unmarshal(b)
	require.NoError(t, err)
	fill, ok := back.(SimpleFillRecord)
	require.True(t, ok, "decoded %T", back)

	assert.Equal(t, TypeSimpleFill, fill.Type())
	require.NotNil(t, fill.Style)
	assert.Equal(t, style.FillCross, *fill.Style)
	require.NotNil(t, fill.Outline)
	assert.Equal(t, *orig.Outline, *fill.Outline)
	assert.Equal(t, orig, fill)
}

func TestGraphicNestedRoundTrip(t *testing.T) {
	orig := sampleGraphic()
	b, err := Marshal(orig)
	require.NoError(t, err)

	back, err := Unmarshal(b)
	require.NoError(t, err)
	g := back.(GraphicRecord)

	assert.Equal(t, orig.Geometry, g.Geometry)
	assert.Equal(t, orig.Symbol, g.Symbol)
	require.NotNil(t, g.Index)
	assert.Equal(t, 0, *g.Index, "index zero is present, not omitted")
	assert.Equal(t, "parcel", g.Attributes["name"])
}

func TestDetachedGraphicOmitsIndex(t *testing.T) {
	b, err := Marshal(GraphicRecord{ID: "g"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"graphic","id":"g"}`, string(b))
}

func TestLayerEmitsEmptyGraphicsList(t *testing.T) {
	b, err := Marshal(GraphicsLayerRecord{ID: "l"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"graphics","id":"l","graphics":[]}`, string(b))
}

func TestMapRoundTrip(t *testing.T) {
	orig := MapRecord{
		ID: "m",
		Layers: []Record{GraphicsLayerRecord{
			ID:       "l",
			Title:    "Parcels",
			Opacity:  ptr(0.5),
			Visible:  ptr(false),
			Graphics: []GraphicRecord{sampleGraphic()},
		}},
	}
	b, err := Marshal(orig)
	require.NoError(t, err)
	back, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestTextAndFont(t *testing.T) {
	orig := TextRecord{
		Text: "Main St",
		Font: &FontRecord{Size: ptr(12), Family: ptr("Arial"), Style: ptr("italic")},
	}
	b, err := Marshal(orig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"Main St","font":{"type":"font","size":12,"family":"Arial","style":"italic"}}`, string(b))

	back, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"picture-marker"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Unmarshal([]byte(`{"style":"solid"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = Marshal(nil)
	assert.Error(t, err)
}

func TestProtoRoundTrip(t *testing.T) {
	orig := GraphicsLayerRecord{
		ID:       "layer",
		Title:    "Parcels",
		Opacity:  ptr(0.75),
		Graphics: []GraphicRecord{sampleGraphic()},
	}
	b, err := MarshalProto(orig)
	require.NoError(t, err)

	back, err := UnmarshalProto(b)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestToStructCarriesTypeTag(t *testing.T) {
	s, err := ToStruct(sampleFill())
	require.NoError(t, err)
	assert.Equal(t, "simple-fill", s.Fields["type"].GetStringValue())
	outline := s.Fields["outline"].GetStructValue()
	require.NotNil(t, outline)
	assert.Equal(t, "simple-line", outline.Fields["type"].GetStringValue())
}
