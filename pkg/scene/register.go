package scene

import (
	"fmt"
	"reflect"

	"github.com/golang/glog"
	"github.com/samber/lo"
)

// slot names the collection of a parent that receives a child.
type slot int

const (
	slotNone slot = iota
	slotLayers
	slotGraphics
	slotGeometry
	slotSymbol
	slotOutline
	slotFont
	slotGeneric
)

func (sl slot) String() string {
	switch sl {
	case slotLayers:
		return "layer"
	case slotGraphics:
		return "graphic"
	case slotGeometry:
		return "geometry"
	case slotSymbol:
		return "symbol"
	case slotOutline:
		return "outline"
	case slotFont:
		return "font"
	case slotGeneric:
		return "child"
	default:
		return "none"
	}
}

// singleton reports whether sl holds at most one child.
func (sl slot) singleton() bool {
	switch sl {
	case slotGeometry, slotSymbol, slotOutline, slotFont:
		return true
	}
	return false
}

// slotFor decides where parent keeps child. Pairs without a specialised
// collection fall through to the generic child list unless the scene is
// strict.
func (s *Scene) slotFor(parent, child *Node) slot {
	switch parent.data.(type) {
	case *MapData:
		if child.kind.IsLayer() {
			return slotLayers
		}
	case *GraphicsLayerData:
		if child.kind == KindGraphic {
			return slotGraphics
		}
	case *GraphicData:
		if child.kind.IsGeometry() {
			return slotGeometry
		}
		if child.kind.IsSymbol() {
			return slotSymbol
		}
	case *SimpleFillSymbolData:
		if child.kind == KindOutline {
			return slotOutline
		}
	case *TextSymbolData:
		if child.kind == KindMapFont {
			return slotFont
		}
	}
	if s.opts.StrictChildren {
		return slotNone
	}
	return slotGeneric
}

// slotRef returns the singleton field of parent that sl refers to.
func slotRef(parent *Node, sl slot) *NodeID {
	switch d := parent.data.(type) {
	case *GraphicData:
		if sl == slotGeometry {
			return &d.Geometry
		}
		return &d.Symbol
	case *SimpleFillSymbolData:
		return &d.Outline
	case *TextSymbolData:
		return &d.Font
	}
	panic(fmt.Sprintf("scene: %s has no %s slot", parent.kind, sl))
}

// childIDs lists every node n refers to as a child, in any collection.
func (s *Scene) childIDs(n *Node) []NodeID {
	var ids []NodeID
	switch d := n.data.(type) {
	case *MapData:
		ids = append(ids, d.Layers...)
	case *GraphicsLayerData:
		ids = append(ids, d.Graphics...)
	case *GraphicData:
		ids = append(ids, d.Geometry, d.Symbol)
	case *SimpleFillSymbolData:
		ids = append(ids, d.Outline)
	case *TextSymbolData:
		ids = append(ids, d.Font)
	}
	ids = append(ids, n.children...)
	return lo.Filter(ids, func(id NodeID, _ int) bool { return !id.IsZero() })
}

// isAncestor reports whether a is b or one of b's ancestors.
func (s *Scene) isAncestor(a, b NodeID) bool {
	for cur := b; !cur.IsZero(); {
		if cur == a {
			return true
		}
		n := s.nodes[cur]
		if n == nil {
			return false
		}
		cur = n.parent
	}
	return false
}

// RegisterChild attaches child to parent. Registering a child that is
// already held by parent does nothing; a child held by another parent is
// moved. Singleton slots replace their previous occupant, which is left
// detached.
func (s *Scene) RegisterChild(parent, child NodeID) (ChangeResult, error) {
	pn, cn := s.nodes[parent], s.nodes[child]
	switch {
	case pn == nil:
		return ChangeResult{}, fmt.Errorf("%w: parent %s", ErrNodeNotFound, parent)
	case cn == nil:
		return ChangeResult{}, fmt.Errorf("%w: child %s", ErrNodeNotFound, child)
	case parent == child:
		return ChangeResult{}, fmt.Errorf("%w: %s", ErrSelfParent, child.Short())
	case child == s.root:
		return ChangeResult{}, fmt.Errorf("%w: the map is always the root", ErrChildNotAccepted)
	case s.isAncestor(child, parent):
		return ChangeResult{}, fmt.Errorf("%w: %s is an ancestor of %s", ErrCycle, child.Short(), parent.Short())
	}

	sl := s.slotFor(pn, cn)
	if sl == slotNone {
		return ChangeResult{}, fmt.Errorf("%w: %s under %s", ErrChildNotAccepted, cn.kind, pn.kind)
	}
	if cn.parent == parent {
		return ChangeResult{}, nil
	}

	var res ChangeResult
	if !cn.parent.IsZero() {
		moved, err := s.UnregisterChild(cn.parent, child)
		if err != nil {
			return res, err
		}
		res.merge(moved)
	}
	res.Applied = true

	if glog.V(2) {
		glog.Infof("[scene] register %s %s as %s of %s %s", cn.kind, child.Short(), sl, pn.kind, parent.Short())
	}

	switch sl {
	case slotLayers:
		d := pn.data.(*MapData)
		d.Layers = append(d.Layers, child)
		cn.parent = parent
		res.add(s.emitUpdate(child))

	case slotGraphics:
		d := pn.data.(*GraphicsLayerData)
		cn.data.(*GraphicData).Index = len(d.Graphics)
		d.Graphics = append(d.Graphics, child)
		cn.parent = parent
		res.add(s.emitUpdate(child))

	case slotGeometry, slotSymbol, slotOutline, slotFont:
		ref := slotRef(pn, sl)
		old := *ref
		*ref = child
		cn.parent = parent
		if on := s.nodes[old]; on != nil && on.parent == parent && !heldInSlot(pn, old) {
			on.parent = ZeroID
		}
		if !old.IsZero() && s.structurallyEqual(old, child) {
			if glog.V(2) {
				glog.Infof("[scene] %s of %s replaced by an equal node", sl, parent.Short())
			}
			break
		}
		res.add(s.emitUpdate(parent))

	case slotGeneric:
		pn.children = append(pn.children, child)
		cn.parent = parent
	}
	return res, nil
}

// AddGraphics registers each graphic with layer in order. Every id is
// checked before anything is registered, so a bad id leaves the layer
// untouched.
func (s *Scene) AddGraphics(layer NodeID, ids ...NodeID) (ChangeResult, error) {
	ln := s.nodes[layer]
	if ln == nil {
		return ChangeResult{}, fmt.Errorf("%w: layer %s", ErrNodeNotFound, layer)
	}
	if ln.kind != KindGraphicsLayer {
		return ChangeResult{}, fmt.Errorf("%w: %s is a %s, not a layer", ErrChildNotAccepted, layer, ln.kind)
	}
	for _, id := range ids {
		n := s.nodes[id]
		if n == nil {
			return ChangeResult{}, fmt.Errorf("%w: graphic %s", ErrNodeNotFound, id)
		}
		if n.kind != KindGraphic {
			return ChangeResult{}, fmt.Errorf("%w: %s under %s", ErrChildNotAccepted, n.kind, KindGraphicsLayer)
		}
	}

	var res ChangeResult
	for _, id := range ids {
		r, err := s.RegisterChild(layer, id)
		if err != nil {
			return res, err
		}
		res.merge(r)
	}
	return res, nil
}

// UnregisterChild detaches child from parent. For a singleton slot it
// empties the slot whenever child is of the slot's kind, even if child was
// already evicted by a replacement. Otherwise it is a no-op when parent does
// not hold child.
func (s *Scene) UnregisterChild(parent, child NodeID) (ChangeResult, error) {
	pn, cn := s.nodes[parent], s.nodes[child]
	switch {
	case pn == nil:
		return ChangeResult{}, fmt.Errorf("%w: parent %s", ErrNodeNotFound, parent)
	case cn == nil:
		return ChangeResult{}, fmt.Errorf("%w: child %s", ErrNodeNotFound, child)
	}
	if cn.parent != parent {
		if sl := s.slotFor(pn, cn); sl.singleton() {
			if occupant := *slotRef(pn, sl); !occupant.IsZero() && occupant != child {
				return s.UnregisterChild(parent, occupant)
			}
		}
		return ChangeResult{}, nil
	}

	if glog.V(2) {
		glog.Infof("[scene] unregister %s %s from %s %s", cn.kind, child.Short(), pn.kind, parent.Short())
	}

	res := ChangeResult{Applied: true}
	cn.parent = ZeroID

	switch d := pn.data.(type) {
	case *MapData:
		if i := lo.IndexOf(d.Layers, child); i >= 0 {
			d.Layers = append(d.Layers[:i:i], d.Layers[i+1:]...)
			res.add(s.emitRemove(child, child, i, -1))
			return res, nil
		}

	case *GraphicsLayerData:
		if i := lo.IndexOf(d.Graphics, child); i >= 0 {
			d.Graphics = append(d.Graphics[:i:i], d.Graphics[i+1:]...)
			for j := i; j < len(d.Graphics); j++ {
				s.nodes[d.Graphics[j]].data.(*GraphicData).Index = j
			}
			cn.data.(*GraphicData).Index = -1
			if pn.parent == s.root {
				if li := s.layerIndex(parent); li >= 0 {
					res.add(s.emitRemove(child, parent, i, li))
				}
			}
			return res, nil
		}

	case *GraphicData:
		if d.Geometry == child || d.Symbol == child {
			if d.Geometry == child {
				d.Geometry = ZeroID
			} else {
				d.Symbol = ZeroID
			}
			res.add(s.emitUpdate(parent))
			return res, nil
		}

	case *SimpleFillSymbolData:
		if d.Outline == child {
			d.Outline = ZeroID
			res.add(s.emitUpdate(parent))
			return res, nil
		}

	case *TextSymbolData:
		if d.Font == child {
			d.Font = ZeroID
			res.add(s.emitUpdate(parent))
			return res, nil
		}
	}

	pn.children = lo.Without(pn.children, child)
	return res, nil
}

// Destroy detaches id from its parent and removes it and everything it owns
// from the scene.
func (s *Scene) Destroy(id NodeID) (ChangeResult, error) {
	n := s.nodes[id]
	if n == nil {
		return ChangeResult{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if id == s.root {
		return ChangeResult{}, fmt.Errorf("%w: the root cannot be destroyed", ErrChangeNotApplicable)
	}
	var res ChangeResult
	if !n.parent.IsZero() {
		r, err := s.UnregisterChild(n.parent, id)
		if err != nil {
			return res, err
		}
		res.merge(r)
	}
	s.deleteSubtree(id)
	res.Applied = true
	return res, nil
}

func (s *Scene) deleteSubtree(id NodeID) {
	n := s.nodes[id]
	if n == nil {
		return
	}
	for _, c := range s.childIDs(n) {
		if cn := s.nodes[c]; cn != nil && cn.parent == id {
			s.deleteSubtree(c)
		}
	}
	delete(s.nodes, id)
	for name, nid := range s.names {
		if nid == id {
			delete(s.names, name)
		}
	}
}

// structurallyEqual reports whether two nodes render identically.
func (s *Scene) structurallyEqual(a, b NodeID) bool {
	ra, err := s.Record(a)
	if err != nil {
		return false
	}
	rb, err := s.Record(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ra, rb)
}
