package scene

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// NodeID is the stable identity of a node. IDs are never reused.
type NodeID string

// ZeroID is the empty NodeID, meaning "no node".
const ZeroID NodeID = ""

// NewNodeID returns a fresh, time-ordered node ID.
func NewNodeID() NodeID {
	return NodeID(ulid.Make().String())
}

// IsZero reports whether id refers to no node.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

func (id NodeID) String() string {
	return string(id)
}

// Short returns the last six characters of the ID for log and error output.
func (id NodeID) Short() string {
	if len(id) <= 6 {
		return string(id)
	}
	return string(id[len(id)-6:])
}

// Kind enumerates the component kinds.
type Kind int

const (
	KindMap           Kind = iota // scene root, owns layers
	KindGraphicsLayer             // layer of client-side graphics
	KindGraphic                   // geometry + symbol + attributes
	KindPolygon                   // ring geometry
	KindSimpleFill                // fill symbol with optional outline
	KindOutline                   // simple line symbol
	KindTextSymbol                // text symbol with optional font
	KindMapFont                   // font of a text symbol
	KindCustom                    // application-defined, generic children only
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindGraphicsLayer:
		return "graphics-layer"
	case KindGraphic:
		return "graphic"
	case KindPolygon:
		return "polygon"
	case KindSimpleFill:
		return "simple-fill-symbol"
	case KindOutline:
		return "outline"
	case KindTextSymbol:
		return "text-symbol"
	case KindMapFont:
		return "map-font"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// IsLayer reports whether k can be held in a map's layer collection.
func (k Kind) IsLayer() bool {
	return k == KindGraphicsLayer
}

// IsGeometry reports whether k can fill a graphic's geometry slot.
func (k Kind) IsGeometry() bool {
	return k == KindPolygon
}

// IsSymbol reports whether k can fill a graphic's symbol slot.
func (k Kind) IsSymbol() bool {
	switch k {
	case KindSimpleFill, KindOutline, KindTextSymbol:
		return true
	}
	return false
}

// QueueScope selects how updates are grouped into ordered queues.
type QueueScope int

const (
	// ScopeView uses one queue per scene, so every update reaches the engine
	// in mutation order.
	ScopeView QueueScope = iota
	// ScopeNode uses one queue per layer, shared by the layer and its
	// graphics. Different layers may interleave; a layer remove waits for
	// every queue since it shifts their positions.
	ScopeNode
)

func (q QueueScope) String() string {
	switch q {
	case ScopeView:
		return "view"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// ParseQueueScope reads "view" or "node".
func ParseQueueScope(token string) (QueueScope, error) {
	switch token {
	case "view":
		return ScopeView, nil
	case "node":
		return ScopeNode, nil
	}
	return 0, fmt.Errorf("scene: unknown queue scope %q", token)
}

// Options configures a Scene.
type Options struct {
	// RequireOutline makes an outline a required child of every simple fill
	// symbol reachable from the root.
	RequireOutline bool
	// StrictChildren rejects children that no specialised collection
	// accepts instead of keeping them in the generic child list.
	StrictChildren bool
	// QueueScope picks the dispatch queue key for updates.
	QueueScope QueueScope
}
