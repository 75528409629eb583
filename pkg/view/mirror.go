// Package view holds engine-side implementations of dispatch.Renderer: an
// in-memory positional mirror and a websocket bridge to a remote engine.
package view

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/golang/glog"

	"github.com/chazu/geoscene/pkg/wire"
)

// Mirror is an in-memory engine that stores records by position, the way a
// remote map view does. Layers are addressed with container index -1;
// graphics by their index inside the layer at the container index.
//
// Calls whose index no longer exists are ignored and counted, since late
// updates for removed components are expected.
type Mirror struct {
	mu      sync.Mutex
	layers  []wire.GraphicsLayerRecord
	ignored int
}

// NewMirror returns an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{}
}

// UpdateComponent adds the component when index is one past the end and
// replaces it when index is in range.
func (m *Mirror) UpdateComponent(_ context.Context, index, container int, rec wire.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if container < 0 {
		lr, ok := rec.(wire.GraphicsLayerRecord)
		if !ok {
			return fmt.Errorf("view: top-level component must be a layer, got %T", rec)
		}
		lr.Graphics = slices.Clone(lr.Graphics)
		m.layers, ok = place(m.layers, index, lr)
		if !ok {
			m.ignore("update", index, container)
		}
		return nil
	}

	gr, ok := rec.(wire.GraphicRecord)
	if !ok {
		return fmt.Errorf("view: layer member must be a graphic, got %T", rec)
	}
	if container >= len(m.layers) {
		m.ignore("update", index, container)
		return nil
	}
	l := &m.layers[container]
	if l.Graphics, ok = place(l.Graphics, index, gr); !ok {
		m.ignore("update", index, container)
	}
	return nil
}

// RemoveComponent releases the component at index and shifts the ones after
// it down by one.
func (m *Mirror) RemoveComponent(_ context.Context, index, container int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if container < 0 {
		var ok bool
		if m.layers, ok = cut(m.layers, index); !ok {
			m.ignore("remove", index, container)
		}
		return nil
	}
	if container >= len(m.layers) {
		m.ignore("remove", index, container)
		return nil
	}
	l := &m.layers[container]
	var ok bool
	if l.Graphics, ok = cut(l.Graphics, index); !ok {
		m.ignore("remove", index, container)
		return nil
	}
	for i := index; i < len(l.Graphics); i++ {
		pos := i
		l.Graphics[i].Index = &pos
	}
	return nil
}

func (m *Mirror) ignore(op string, index, container int) {
	m.ignored++
	if glog.V(1) {
		glog.Infof("[view] mirror ignored %s @%d/%d", op, index, container)
	}
}

func place[T any](s []T, index int, v T) ([]T, bool) {
	switch {
	case index == len(s):
		return append(s, v), true
	case index >= 0 && index < len(s):
		s[index] = v
		return s, true
	default:
		return s, false
	}
}

func cut[T any](s []T, index int) ([]T, bool) {
	if index < 0 || index >= len(s) {
		return s, false
	}
	return append(s[:index], s[index+1:]...), true
}

// Layers returns a copy of the mirrored layers in position order.
func (m *Mirror) Layers() []wire.GraphicsLayerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.GraphicsLayerRecord, len(m.layers))
	for i, l := range m.layers {
		l.Graphics = slices.Clone(l.Graphics)
		out[i] = l
	}
	return out
}

// Ignored returns how many calls addressed a position that did not exist.
func (m *Mirror) Ignored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored
}
