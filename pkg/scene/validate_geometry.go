package scene

import (
	"fmt"

	"github.com/chazu/geoscene/pkg/geom"
)

// ---------------------------------------------------------------------------
// Geometry tier
// ---------------------------------------------------------------------------

// validateGeometry checks polygon rings. An open ring is an error; empty
// polygons, degenerate rings and an extent that does not cover the rings
// are warnings.
func (s *Scene) validateGeometry() []ValidationError {
	var out []ValidationError
	for _, id := range s.sortedIDs() {
		d, ok := s.nodes[id].data.(*PolygonData)
		if !ok {
			continue
		}
		finding := func(sev ValidationSeverity, format string, args ...any) {
			out = append(out, ValidationError{
				NodeID:   id,
				Kind:     KindPolygon,
				Message:  fmt.Sprintf(format, args...),
				Severity: sev,
			})
		}

		if len(d.Rings) == 0 {
			finding(SeverityWarning, "polygon has no rings")
			continue
		}
		for i, r := range d.Rings {
			switch {
			case !r.Closed():
				finding(SeverityError, "ring %d is not closed", i)
			case r.Degenerate():
				finding(SeverityWarning, "ring %d encloses no area", i)
			}
		}
		if d.Extent != nil {
			box, ok := geom.Bounds(d.Rings)
			e := d.Extent
			if ok && (box.Min.X < e.XMin || box.Min.Y < e.YMin || box.Max.X > e.XMax || box.Max.Y > e.YMax) {
				finding(SeverityWarning, "extent does not cover rings (bounds %.4g,%.4g to %.4g,%.4g)",
					box.Min.X, box.Min.Y, box.Max.X, box.Max.Y)
			}
		}
	}
	return out
}
