package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/geom"
	"github.com/chazu/geoscene/pkg/style"
)

// Dispatcher accepts engine operations. *dispatch.Scheduler implements it.
type Dispatcher interface {
	Enqueue(key string, op dispatch.Op) *dispatch.Task
}

// ChangeResult reports whether a mutation changed the scene and which engine
// updates it produced. Tasks is empty when the scene is not rendered or the
// mutated node is not reachable from the root.
type ChangeResult struct {
	Applied bool
	Tasks   []*dispatch.Task
}

// Wait blocks until every task in r has finished and joins their errors.
func (r ChangeResult) Wait(ctx context.Context) error {
	var errs []error
	for _, t := range r.Tasks {
		if err := t.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *ChangeResult) merge(o ChangeResult) {
	r.Applied = r.Applied || o.Applied
	r.Tasks = append(r.Tasks, o.Tasks...)
}

func (r *ChangeResult) add(t *dispatch.Task) {
	if t != nil {
		r.Tasks = append(r.Tasks, t)
	}
}

// Scene is an arena of nodes rooted at a single map node.
// A Scene is not safe for concurrent use.
type Scene struct {
	nodes map[NodeID]*Node
	names map[string]NodeID
	root  NodeID
	opts  Options
	disp  Dispatcher
}

// New creates a scene holding only its map root.
func New(opts Options) *Scene {
	s := &Scene{
		nodes: make(map[NodeID]*Node),
		names: make(map[string]NodeID),
		opts:  opts,
	}
	s.root = s.add(&MapData{})
	return s
}

// Root returns the map node's ID.
func (s *Scene) Root() NodeID { return s.root }

// Options returns the options the scene was created with.
func (s *Scene) Options() Options { return s.opts }

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node { return s.nodes[id] }

// Len returns the number of nodes, root included.
func (s *Scene) Len() int { return len(s.nodes) }

// Rendered reports whether the scene is attached to an engine.
func (s *Scene) Rendered() bool { return s.disp != nil }

// Attach connects the scene to an engine and enqueues every layer so that
// the engine starts from the current state.
func (s *Scene) Attach(d Dispatcher) ChangeResult {
	s.disp = d
	glog.Infof("[scene] attached, %d layers, %d nodes", len(s.mapData().Layers), len(s.nodes))
	var res ChangeResult
	for _, l := range s.mapData().Layers {
		res.add(s.emitUpdate(l))
	}
	return res
}

// Detach disconnects the scene from its engine. Later mutations enqueue
// nothing.
func (s *Scene) Detach() {
	s.disp = nil
}

// SetName binds a lookup name to a node.
func (s *Scene) SetName(id NodeID, name string) error {
	if s.nodes[id] == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if other, ok := s.names[name]; ok && other != id {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	s.names[name] = id
	return nil
}

// Lookup returns the node bound to name, or ZeroID.
func (s *Scene) Lookup(name string) NodeID {
	return s.names[name]
}

// MustLookup returns the node bound to name, or panics.
func (s *Scene) MustLookup(name string) NodeID {
	id, ok := s.names[name]
	if !ok {
		panic(fmt.Sprintf("scene: no node named %q", name))
	}
	return id
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func (s *Scene) add(d NodeData) NodeID {
	id := NewNodeID()
	s.nodes[id] = &Node{id: id, kind: kindOf(d), data: d}
	return id
}

// NewGraphicsLayer creates a detached, empty graphics layer.
func (s *Scene) NewGraphicsLayer(title string) NodeID {
	return s.add(&GraphicsLayerData{Title: title})
}

// NewGraphic creates a detached graphic and registers geometry and symbol
// into it. Either may be ZeroID.
func (s *Scene) NewGraphic(geometry, symbol NodeID, attrs map[string]any) (NodeID, error) {
	id := s.add(&GraphicData{Attributes: cloneAttributes(attrs), Index: -1})
	if err := s.fillSlots(id, []slot{slotGeometry, slotSymbol}, geometry, symbol); err != nil {
		s.drop(id)
		return ZeroID, err
	}
	return id, nil
}

// NewPolygon creates a detached polygon from a copy of rings.
func (s *Scene) NewPolygon(rings []geom.Ring, sr *geom.SpatialReference, ext *geom.Extent) NodeID {
	return s.add(&PolygonData{
		Rings:            geom.CloneRings(rings),
		SpatialReference: style.Clone(sr),
		Extent:           style.Clone(ext),
	})
}

// NewSimpleFillSymbol creates a detached fill symbol. outline may be ZeroID.
func (s *Scene) NewSimpleFillSymbol(outline NodeID, color *style.Color, fill *style.FillStyle) (NodeID, error) {
	id := s.add(&SimpleFillSymbolData{Color: style.Clone(color), Style: style.Clone(fill)})
	if err := s.fillSlots(id, []slot{slotOutline}, outline); err != nil {
		s.drop(id)
		return ZeroID, err
	}
	return id, nil
}

// NewOutline creates a detached line symbol.
func (s *Scene) NewOutline(color *style.Color, width *float64, ls *style.LineStyle) NodeID {
	return s.add(&OutlineData{Color: style.Clone(color), Width: style.Clone(width), Style: style.Clone(ls)})
}

// NewTextSymbol creates a detached text symbol. font may be ZeroID.
func (s *Scene) NewTextSymbol(text string, color *style.Color, font NodeID) (NodeID, error) {
	id := s.add(&TextSymbolData{Text: text, Color: style.Clone(color)})
	if err := s.fillSlots(id, []slot{slotFont}, font); err != nil {
		s.drop(id)
		return ZeroID, err
	}
	return id, nil
}

// NewMapFont creates a detached font.
func (s *Scene) NewMapFont(size *int, family, fontStyle, weight *string) NodeID {
	return s.add(&MapFontData{
		Size:   style.Clone(size),
		Family: style.Clone(family),
		Style:  style.Clone(fontStyle),
		Weight: style.Clone(weight),
	})
}

// NewCustom creates a detached application-defined node.
func (s *Scene) NewCustom(name string, props map[string]any) NodeID {
	return s.add(&CustomData{Name: name, Props: cloneAttributes(props)})
}

// fillSlots registers each non-zero child into a freshly created parent.
// want[i] is the slot children[i] must land in. Nothing is registered unless
// every child fits.
func (s *Scene) fillSlots(parent NodeID, want []slot, children ...NodeID) error {
	pn := s.nodes[parent]
	for i, c := range children {
		if c.IsZero() {
			continue
		}
		cn := s.nodes[c]
		if cn == nil {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, c)
		}
		if s.slotFor(pn, cn) != want[i] {
			return fmt.Errorf("%w: %s as %s of %s", ErrChildNotAccepted, cn.kind, want[i], pn.kind)
		}
	}
	for _, c := range children {
		if c.IsZero() {
			continue
		}
		if _, err := s.RegisterChild(parent, c); err != nil {
			return err
		}
	}
	return nil
}

// drop removes a node that was never registered anywhere, releasing any
// children already placed in it.
func (s *Scene) drop(id NodeID) {
	for _, c := range s.childIDs(s.nodes[id]) {
		if cn := s.nodes[c]; cn != nil && cn.parent == id {
			cn.parent = ZeroID
		}
	}
	delete(s.nodes, id)
}

// ---------------------------------------------------------------------------
// Addressing and emission
// ---------------------------------------------------------------------------

func (s *Scene) mapData() *MapData {
	return s.nodes[s.root].data.(*MapData)
}

// layerIndex returns the position of a layer in the root, or -1.
func (s *Scene) layerIndex(layer NodeID) int {
	for i, l := range s.mapData().Layers {
		if l == layer {
			return i
		}
	}
	return -1
}

// heldInSlot reports whether child occupies one of parent's rendered slots.
func heldInSlot(parent *Node, child NodeID) bool {
	switch d := parent.data.(type) {
	case *GraphicData:
		return d.Geometry == child || d.Symbol == child
	case *SimpleFillSymbolData:
		return d.Outline == child
	case *TextSymbolData:
		return d.Font == child
	}
	return false
}

// addressOf finds the nearest ancestor of id (or id itself) that the engine
// addresses by position: a graphic in a layer of the root, or a layer of the
// root. ok is false when id is not reachable from the root through rendered
// collections.
func (s *Scene) addressOf(id NodeID) (target NodeID, index, container int, ok bool) {
	cur := id
	for {
		n := s.nodes[cur]
		if n == nil {
			return ZeroID, 0, 0, false
		}
		switch d := n.data.(type) {
		case *GraphicsLayerData:
			if n.parent != s.root {
				return ZeroID, 0, 0, false
			}
			li := s.layerIndex(cur)
			return cur, li, -1, li >= 0
		case *GraphicData:
			p := s.nodes[n.parent]
			if p == nil || p.kind != KindGraphicsLayer || p.parent != s.root {
				return ZeroID, 0, 0, false
			}
			return cur, d.Index, s.layerIndex(p.id), true
		case *MapData, *CustomData:
			return ZeroID, 0, 0, false
		}
		p := s.nodes[n.parent]
		if p == nil || !heldInSlot(p, cur) {
			return ZeroID, 0, 0, false
		}
		cur = p.id
	}
}

// queueKey names the dispatch queue for ops addressed inside layer: a
// layer's own ops and those of its graphics. In node scope each layer has its
// own queue, since graphic indices are positions within the layer and must
// stay ordered with the layer's structural ops.
func (s *Scene) queueKey(layer NodeID) string {
	if s.opts.QueueScope == ScopeNode {
		return string(layer)
	}
	return string(s.root)
}

// emitUpdate enqueues a snapshot of the addressable component that contains
// id. It returns nil when nothing is enqueued.
func (s *Scene) emitUpdate(id NodeID) *dispatch.Task {
	if s.disp == nil {
		return nil
	}
	target, index, container, ok := s.addressOf(id)
	if !ok {
		return nil
	}
	rec, err := s.Record(target)
	if err != nil {
		glog.Warningf("[scene] cannot snapshot %s: %v", target.Short(), err)
		return nil
	}
	layer := target
	if container >= 0 {
		layer = s.nodes[target].parent
	}
	return s.disp.Enqueue(s.queueKey(layer), dispatch.Op{
		Kind:           dispatch.OpUpdate,
		Target:         string(target),
		Index:          index,
		ContainerIndex: container,
		Record:         rec,
	})
}

// emitRemove enqueues the release of target from position index of its
// container. Removing a layer shifts the container index of every later
// layer, so it is fenced against all queues.
func (s *Scene) emitRemove(target, layer NodeID, index, container int) *dispatch.Task {
	if s.disp == nil {
		return nil
	}
	return s.disp.Enqueue(s.queueKey(layer), dispatch.Op{
		Kind:           dispatch.OpRemove,
		Target:         string(target),
		Index:          index,
		ContainerIndex: container,
		Fence:          container < 0,
	})
}
