// Package scene holds the live component tree of a map scene: an arena of
// nodes addressed by NodeID, the registration protocol that attaches and
// detaches children, change detection for property assignment, validation,
// and conversion of nodes into wire records.
//
// A Scene is owned by a single goroutine. Updates destined for the external
// engine are snapshotted on that goroutine and handed to a Dispatcher.
package scene
