package scene

import "errors"

var (
	// ErrNodeNotFound is returned for an ID that is not in the scene.
	ErrNodeNotFound = errors.New("scene: node not found")
	// ErrSelfParent is returned when a node is registered under itself.
	ErrSelfParent = errors.New("scene: node cannot be its own child")
	// ErrCycle is returned when a registration would make a node its own
	// ancestor.
	ErrCycle = errors.New("scene: registration would create a cycle")
	// ErrChildNotAccepted is returned when the parent has no place for the
	// child's kind.
	ErrChildNotAccepted = errors.New("scene: child kind not accepted")
	// ErrChangeNotApplicable is returned when a change does not apply to the
	// node's kind.
	ErrChangeNotApplicable = errors.New("scene: change not applicable")
	// ErrNoRecord is returned for kinds that have no wire form.
	ErrNoRecord = errors.New("scene: kind has no record")
	// ErrNameTaken is returned when a name is already bound to another node.
	ErrNameTaken = errors.New("scene: name already in use")
)
