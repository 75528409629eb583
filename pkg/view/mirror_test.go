package view

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/scene"
	"github.com/chazu/geoscene/pkg/style"
	"github.com/chazu/geoscene/pkg/wire"
)

func ptr[T any](v T) *T { return &v }

func TestMirrorPositions(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()

	require.NoError(t, m.UpdateComponent(ctx, 0, -1, wire.GraphicsLayerRecord{ID: "l0"}))
	require.NoError(t, m.UpdateComponent(ctx, 0, 0, wire.GraphicRecord{ID: "a", Index: ptr(0)}))
	require.NoError(t, m.UpdateComponent(ctx, 1, 0, wire.GraphicRecord{ID: "b", Index: ptr(1)}))
	require.NoError(t, m.UpdateComponent(ctx, 2, 0, wire.GraphicRecord{ID: "c", Index: ptr(2)}))
	require.NoError(t, m.UpdateComponent(ctx, 1, 0, wire.GraphicRecord{ID: "b2", Index: ptr(1)}))

	layers := m.Layers()
	require.Len(t, layers, 1)
	ids := func() []string {
		var out []string
		for _, g := range m.Layers()[0].Graphics {
			out = append(out, g.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b2", "c"}, ids())

	require.NoError(t, m.RemoveComponent(ctx, 0, 0))
	assert.Equal(t, []string{"b2", "c"}, ids())
	assert.Equal(t, 1, *m.Layers()[0].Graphics[1].Index, "indices follow positions after a remove")
	assert.Equal(t, 0, m.Ignored())
}

func TestMirrorIgnoresStalePositions(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()
	require.NoError(t, m.UpdateComponent(ctx, 3, -1, wire.GraphicsLayerRecord{ID: "l"}))
	require.NoError(t, m.UpdateComponent(ctx, 0, 5, wire.GraphicRecord{ID: "g"}))
	require.NoError(t, m.RemoveComponent(ctx, 0, -1))
	require.NoError(t, m.RemoveComponent(ctx, 2, 0))
	assert.Equal(t, 4, m.Ignored())
	assert.Empty(t, m.Layers())
}

func TestMirrorRejectsWrongRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMirror()
	assert.Error(t, m.UpdateComponent(ctx, 0, -1, wire.PolygonRecord{}))
	require.NoError(t, m.UpdateComponent(ctx, 0, -1, wire.GraphicsLayerRecord{ID: "l"}))
	assert.Error(t, m.UpdateComponent(ctx, 0, 0, wire.GraphicsLayerRecord{}))
}

// ---------------------------------------------------------------------------
// Scene to mirror convergence
// ---------------------------------------------------------------------------

type fixture struct {
	t      *testing.T
	s      *scene.Scene
	layers []scene.NodeID
	rng    *rand.Rand
}

func (f *fixture) graphic() scene.NodeID {
	x := float64(f.rng.Intn(100))
	rings := []geom.Ring{{geom.Pt(x, 0), geom.Pt(x+1, 0), geom.Pt(x+1, 1), geom.Pt(x, 0)}}
	outline := f.s.NewOutline(nil, ptr(1.0), ptr(style.LineSolid))
	fill, err := f.s.NewSimpleFillSymbol(outline, ptr(style.RGBA(1, 2, 3, 1)), ptr(style.FillSolid))
	require.NoError(f.t, err)
	g, err := f.s.NewGraphic(f.s.NewPolygon(rings, nil, nil), fill, map[string]any{"x": x})
	require.NoError(f.t, err)
	return g
}

func (f *fixture) graphicsOf(layer scene.NodeID) []scene.NodeID {
	return f.s.Get(layer).Data().(*scene.GraphicsLayerData).Graphics
}

func (f *fixture) anyGraphic() (scene.NodeID, scene.NodeID, bool) {
	layer := f.layers[f.rng.Intn(len(f.layers))]
	gs := f.graphicsOf(layer)
	if len(gs) == 0 {
		return "", "", false
	}
	return layer, gs[f.rng.Intn(len(gs))], true
}

// step performs one random mutation through the public scene API.
func (f *fixture) step() {
	switch f.rng.Intn(7) {
	case 0, 1:
		layer := f.layers[f.rng.Intn(len(f.layers))]
		_, err := f.s.RegisterChild(layer, f.graphic())
		require.NoError(f.t, err)
	case 2:
		if layer, g, ok := f.anyGraphic(); ok {
			_, err := f.s.UnregisterChild(layer, g)
			require.NoError(f.t, err)
		}
	case 3:
		if _, g, ok := f.anyGraphic(); ok {
			to := f.layers[f.rng.Intn(len(f.layers))]
			_, err := f.s.RegisterChild(to, g)
			require.NoError(f.t, err)
		}
	case 4:
		if _, g, ok := f.anyGraphic(); ok {
			poly := f.s.Get(g).Data().(*scene.GraphicData).Geometry
			x := float64(f.rng.Intn(3))
			_, err := f.s.Apply(poly, scene.SetRings{Rings: []geom.Ring{{geom.Pt(x, x), geom.Pt(x+2, x), geom.Pt(x, x+2), geom.Pt(x, x)}}})
			require.NoError(f.t, err)
		}
	case 5:
		layer := f.layers[f.rng.Intn(len(f.layers))]
		_, err := f.s.Apply(layer, scene.SetOpacity{Opacity: ptr(float64(f.rng.Intn(4)) / 4)})
		require.NoError(f.t, err)
	case 6:
		// Move a layer to the top of the draw order.
		layer := f.layers[f.rng.Intn(len(f.layers))]
		_, err := f.s.UnregisterChild(f.s.Root(), layer)
		require.NoError(f.t, err)
		_, err = f.s.RegisterChild(f.s.Root(), layer)
		require.NoError(f.t, err)
	}
}

func sceneLayers(t *testing.T, s *scene.Scene) []wire.GraphicsLayerRecord {
	t.Helper()
	rec, err := s.Record(s.Root())
	require.NoError(t, err)
	var out []wire.GraphicsLayerRecord
	for _, l := range rec.(wire.MapRecord).Layers {
		out = append(out, l.(wire.GraphicsLayerRecord))
	}
	return out
}

func convergenceFixture(t *testing.T, opts scene.Options, seed int64) *fixture {
	s := scene.New(opts)
	f := &fixture{t: t, s: s, rng: rand.New(rand.NewSource(seed))}
	for _, title := range []string{"parcels", "roads", "labels"} {
		l := s.NewGraphicsLayer(title)
		_, err := s.RegisterChild(s.Root(), l)
		require.NoError(t, err)
		f.layers = append(f.layers, l)
	}
	_, err := s.RegisterChild(f.layers[0], f.graphic())
	require.NoError(t, err)
	return f
}

func TestMirrorConvergesWithScene(t *testing.T) {
	f := convergenceFixture(t, scene.Options{}, 7)

	m := NewMirror()
	sched := dispatch.New(m)
	f.s.Attach(sched)

	for i := 0; i < 300; i++ {
		f.step()
	}
	require.NoError(t, sched.Drain(context.Background()))

	assert.Equal(t, sceneLayers(t, f.s), m.Layers())
	assert.Equal(t, 0, m.Ignored())
}

// jittery delays every engine call by a random amount so that tasks on
// different queues interleave.
type jittery struct {
	dispatch.Renderer
	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jittery) sleep() {
	j.mu.Lock()
	d := time.Duration(j.rng.Intn(200)) * time.Microsecond
	j.mu.Unlock()
	time.Sleep(d)
}

func (j *jittery) UpdateComponent(ctx context.Context, index, container int, rec wire.Record) error {
	j.sleep()
	return j.Renderer.UpdateComponent(ctx, index, container, rec)
}

func (j *jittery) RemoveComponent(ctx context.Context, index, container int) error {
	j.sleep()
	return j.Renderer.RemoveComponent(ctx, index, container)
}

func TestMirrorConvergesWithSceneInNodeScope(t *testing.T) {
	for _, seed := range []int64{3, 7, 11} {
		f := convergenceFixture(t, scene.Options{QueueScope: scene.ScopeNode}, seed)

		m := NewMirror()
		sched := dispatch.New(&jittery{Renderer: m, rng: rand.New(rand.NewSource(seed))})
		f.s.Attach(sched)

		for i := 0; i < 300; i++ {
			f.step()
		}
		require.NoError(t, sched.Drain(context.Background()))

		assert.Equal(t, sceneLayers(t, f.s), m.Layers(), "seed %d", seed)
		assert.Equal(t, 0, m.Ignored(), "seed %d", seed)
	}
}

// gatedRemoves holds every RemoveComponent until open is closed.
type gatedRemoves struct {
	dispatch.Renderer
	open chan struct{}
}

func (g *gatedRemoves) RemoveComponent(ctx context.Context, index, container int) error {
	<-g.open
	return g.Renderer.RemoveComponent(ctx, index, container)
}

func TestNodeScopeRemoveStaysAheadOfShiftedUpdate(t *testing.T) {
	s := scene.New(scene.Options{QueueScope: scene.ScopeNode})
	layer := s.NewGraphicsLayer("parcels")
	_, err := s.RegisterChild(s.Root(), layer)
	require.NoError(t, err)
	var gs []scene.NodeID
	for i := 0; i < 3; i++ {
		g, err := s.NewGraphic(s.NewPolygon([]geom.Ring{{geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(1, 1), geom.Pt(0, 0)}}, nil, nil), scene.ZeroID, map[string]any{"n": float64(i)})
		require.NoError(t, err)
		_, err = s.RegisterChild(layer, g)
		require.NoError(t, err)
		gs = append(gs, g)
	}

	m := NewMirror()
	gate := &gatedRemoves{Renderer: m, open: make(chan struct{})}
	sched := dispatch.New(gate)
	require.NoError(t, s.Attach(sched).Wait(context.Background()))

	_, err = s.UnregisterChild(layer, gs[0])
	require.NoError(t, err)
	_, err = s.Apply(gs[2], scene.SetAttributes{Attributes: map[string]any{"n": 22.0}})
	require.NoError(t, err)

	close(gate.open)
	require.NoError(t, sched.Drain(context.Background()))

	assert.Equal(t, sceneLayers(t, s), m.Layers())
	got := m.Layers()[0].Graphics
	require.Len(t, got, 2)
	assert.Equal(t, string(gs[1]), got[0].ID)
	assert.Equal(t, string(gs[2]), got[1].ID)
}
