package view

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/scene"
	"github.com/chazu/geoscene/pkg/wire"
)

func serve(t *testing.T, target dispatch.Renderer) *SocketRenderer {
	t.Helper()
	srv := httptest.NewServer(Handler(target))
	t.Cleanup(srv.Close)

	r, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSocketPushesScene(t *testing.T) {
	m := NewMirror()
	r := serve(t, m)

	s := scene.New(scene.Options{})
	layer := s.NewGraphicsLayer("parcels")
	_, err := s.RegisterChild(s.Root(), layer)
	require.NoError(t, err)

	sched := dispatch.New(r)
	s.Attach(sched)

	poly := s.NewPolygon([]geom.Ring{{geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(1, 1), geom.Pt(0, 0)}}, nil, nil)
	g, err := s.NewGraphic(poly, "", map[string]any{"name": "lot"})
	require.NoError(t, err)
	_, err = s.RegisterChild(layer, g)
	require.NoError(t, err)
	_, err = s.Apply(layer, scene.SetTitle{Title: "lots"})
	require.NoError(t, err)

	require.NoError(t, sched.Drain(context.Background()))

	layers := m.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "lots", layers[0].Title)
	require.Len(t, layers[0].Graphics, 1)
	assert.Equal(t, string(g), layers[0].Graphics[0].ID)
	assert.Equal(t, "lot", layers[0].Graphics[0].Attributes["name"])
}

type rejecting struct{}

func (rejecting) UpdateComponent(context.Context, int, int, wire.Record) error {
	return errors.New("no room")
}

func (rejecting) RemoveComponent(context.Context, int, int) error { return nil }

func TestSocketSurfacesRejection(t *testing.T) {
	r := serve(t, rejecting{})
	err := r.UpdateComponent(context.Background(), 0, -1, wire.GraphicsLayerRecord{ID: "l"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no room")

	assert.NoError(t, r.RemoveComponent(context.Background(), 0, -1), "the connection survives a rejection")
}

func TestSocketBreaksAfterMissedAck(t *testing.T) {
	received := make(chan Envelope, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			received <- env
		}
	}))
	t.Cleanup(srv.Close)

	r, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = r.RemoveComponent(ctx, 0, -1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBroken)
	assert.Equal(t, uint64(1), (<-received).Seq)

	err = r.RemoveComponent(context.Background(), 1, -1)
	assert.ErrorIs(t, err, ErrBroken)
	select {
	case env := <-received:
		t.Fatalf("broken connection sent #%d", env.Seq)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSocketUnknownOp(t *testing.T) {
	err := apply(context.Background(), NewMirror(), Envelope{Op: "flip"})
	assert.ErrorContains(t, err, "unknown op")
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nothing")
	assert.Error(t, err)
}
