package geom

import "testing"

func unitRing() Ring {
	return Ring{Pt(0, 0), Pt(1, 0), Pt(1, 1), Pt(0, 0)}
}

func TestRingsEqualStructural(t *testing.T) {
	a := []Ring{unitRing()}
	b := []Ring{unitRing()}
	if !RingsEqual(a, b) {
		t.Fatal("independently built identical rings should be equal")
	}

	b[0][2] = Pt(1, 2)
	if RingsEqual(a, b) {
		t.Fatal("changing one point should make the ring arrays unequal")
	}
}

func TestRingsEqualOrderAndLength(t *testing.T) {
	r1 := unitRing()
	r2 := Ring{Pt(5, 5), Pt(6, 5), Pt(6, 6), Pt(5, 5)}

	if RingsEqual([]Ring{r1, r2}, []Ring{r2, r1}) {
		t.Error("ring order must matter")
	}
	if RingsEqual([]Ring{r1}, []Ring{r1, r2}) {
		t.Error("different ring counts must not be equal")
	}
	if !RingsEqual(nil, []Ring{}) {
		t.Error("nil and empty ring arrays should be equal")
	}
}

func TestCloneRingsSeversAliasing(t *testing.T) {
	src := []Ring{unitRing()}
	dup := CloneRings(src)
	src[0][0] = Pt(9, 9)

	if dup[0][0] != Pt(0, 0) {
		t.Errorf("clone changed with source: got %v", dup[0][0])
	}
}

func TestRingClosed(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want bool
	}{
		{"closed", unitRing(), true},
		{"open", Ring{Pt(0, 0), Pt(1, 0), Pt(1, 1)}, false},
		{"empty", Ring{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ring.Closed(); got != tt.want {
				t.Errorf("Closed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsAndDegenerate(t *testing.T) {
	box, ok := Bounds([]Ring{unitRing(), {Pt(-2, 3)}})
	if !ok {
		t.Fatal("expected bounds")
	}
	if box.Min.X != -2 || box.Min.Y != 0 || box.Max.X != 1 || box.Max.Y != 3 {
		t.Errorf("bounds = %+v", box)
	}
	if _, ok := Bounds(nil); ok {
		t.Error("empty input should have no bounds")
	}

	if unitRing().Degenerate() {
		t.Error("unit triangle is not degenerate")
	}
	line := Ring{Pt(0, 0), Pt(1, 0), Pt(2, 0), Pt(0, 0)}
	if !line.Degenerate() {
		t.Error("collinear ring should be degenerate")
	}
}
