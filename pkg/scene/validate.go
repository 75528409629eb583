package scene

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ValidationSeverity indicates whether a finding makes the scene invalid or
// is merely advisory.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // scene is invalid
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding. Missing is set when
// the finding is a required child that is absent.
type ValidationError struct {
	NodeID   NodeID
	Kind     Kind
	Missing  string
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Severity, e.Kind, e.NodeID.Short(), e.Message)
}

// ValidationErrors is a list of findings usable as an error.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	return strings.Join(lo.Map(es, func(e ValidationError, _ int) string { return e.Error() }), "; ")
}

// ValidationResult separates errors from warnings across all tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the result holds no errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// ValidateRequiredChildren checks id and every node below it for missing
// required children. It returns nil or a ValidationErrors naming each
// missing child and its owner.
func (s *Scene) ValidateRequiredChildren(id NodeID) error {
	if s.nodes[id] == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	var errs ValidationErrors
	s.requiredChildren(id, &errs)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (s *Scene) requiredChildren(id NodeID, errs *ValidationErrors) {
	n := s.nodes[id]
	if n == nil {
		return
	}
	missing := func(what string) {
		*errs = append(*errs, ValidationError{
			NodeID:   id,
			Kind:     n.kind,
			Missing:  what,
			Message:  fmt.Sprintf("required %s is missing", what),
			Severity: SeverityError,
		})
	}
	switch d := n.data.(type) {
	case *GraphicData:
		if d.Geometry.IsZero() {
			missing("geometry")
		}
	case *SimpleFillSymbolData:
		if s.opts.RequireOutline && d.Outline.IsZero() {
			missing("outline")
		}
	}
	for _, c := range s.childIDs(n) {
		if cn := s.nodes[c]; cn != nil && cn.parent == id {
			s.requiredChildren(c, errs)
		}
	}
}

// Validate runs every tier over the whole scene: structural consistency,
// required children reachable from the root, and geometry checks. It never
// mutates the scene.
func (s *Scene) Validate() ValidationResult {
	var all []ValidationError
	all = append(all, s.validateReferences()...)
	all = append(all, s.validateMembership()...)
	all = append(all, s.validateIndices()...)
	if err := s.ValidateRequiredChildren(s.root); err != nil {
		all = append(all, err.(ValidationErrors)...)
	}
	all = append(all, s.validateGeometry()...)

	var res ValidationResult
	for _, e := range all {
		if e.Severity == SeverityWarning {
			res.Warnings = append(res.Warnings, e)
		} else {
			res.Errors = append(res.Errors, e)
		}
	}
	return res
}

// sortedIDs returns node IDs in creation order so findings are stable.
func (s *Scene) sortedIDs() []NodeID {
	ids := lo.Keys(s.nodes)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// validateReferences checks that every referenced child exists.
func (s *Scene) validateReferences() []ValidationError {
	var errs []ValidationError
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		for _, c := range s.childIDs(n) {
			if s.nodes[c] == nil {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Kind:     n.kind,
					Message:  fmt.Sprintf("child reference %s does not exist", c.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateMembership checks that parent links and collections agree and
// that no node is held twice.
func (s *Scene) validateMembership() []ValidationError {
	var errs []ValidationError
	holders := make(map[NodeID][]NodeID)
	for _, id := range s.sortedIDs() {
		for _, c := range s.childIDs(s.nodes[id]) {
			holders[c] = append(holders[c], id)
		}
	}
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		held := holders[id]
		switch {
		case len(held) > 1:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Kind:     n.kind,
				Message:  fmt.Sprintf("held by %d collections", len(held)),
				Severity: SeverityError,
			})
		case len(held) == 1 && held[0] != n.parent:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Kind:     n.kind,
				Message:  fmt.Sprintf("held by %s but parent is %q", held[0].Short(), n.parent.Short()),
				Severity: SeverityError,
			})
		case len(held) == 0 && !n.parent.IsZero():
			errs = append(errs, ValidationError{
				NodeID:   id,
				Kind:     n.kind,
				Message:  fmt.Sprintf("parent %s does not hold it", n.parent.Short()),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateIndices checks that each layer's graphics are indexed 0..N-1 in
// collection order and that detached graphics carry -1.
func (s *Scene) validateIndices() []ValidationError {
	var errs []ValidationError
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		switch d := n.data.(type) {
		case *GraphicsLayerData:
			for i, g := range d.Graphics {
				gn := s.nodes[g]
				if gn == nil {
					continue
				}
				gd, ok := gn.data.(*GraphicData)
				if !ok {
					errs = append(errs, ValidationError{
						NodeID:   id,
						Kind:     n.kind,
						Message:  fmt.Sprintf("%s %s is not a graphic", gn.kind, g.Short()),
						Severity: SeverityError,
					})
					continue
				}
				if gd.Index != i {
					errs = append(errs, ValidationError{
						NodeID:   g,
						Kind:     KindGraphic,
						Message:  fmt.Sprintf("index %d at position %d", gd.Index, i),
						Severity: SeverityError,
					})
				}
			}
		case *GraphicData:
			if p := s.nodes[n.parent]; (p == nil || p.kind != KindGraphicsLayer) && d.Index != -1 {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Kind:     n.kind,
					Message:  fmt.Sprintf("not in a layer but has index %d", d.Index),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
