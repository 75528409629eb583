package scene

// Node is one component in the arena. Its parent is a lookup key, never an
// owning reference. Fields are unexported so that structural changes only
// happen through the registration protocol.
type Node struct {
	id       NodeID
	kind     Kind
	parent   NodeID
	children []NodeID // generic children, see RegisterChild
	data     NodeData
}

// ID returns the node's identity.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node's component kind.
func (n *Node) Kind() Kind { return n.kind }

// Parent returns the owning node, or ZeroID for a detached node or the root.
func (n *Node) Parent() NodeID { return n.parent }

// Children returns a copy of the generic child list.
func (n *Node) Children() []NodeID {
	return append([]NodeID(nil), n.children...)
}

// Data returns a deep copy of the node's kind-specific payload.
func (n *Node) Data() NodeData {
	return n.data.clone()
}
