package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chazu/geoscene/pkg/config"
	"github.com/chazu/geoscene/pkg/wire"
)

// ---------------------------------------------------------------------------
// Result shape
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Warnings) != 0 {
		t.Errorf("expected 0 warnings for empty source, got %d", len(result.Warnings))
	}
	// Ensure slices are non-nil (JSON should serialize as [] not null).
	if result.Errors == nil {
		t.Error("Errors should be non-nil empty slice, got nil")
	}
	if result.Warnings == nil {
		t.Error("Warnings should be non-nil empty slice, got nil")
	}

	b, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"errors":[]`) {
		t.Errorf("errors should encode as [], got %s", b)
	}
}

func TestE2ECommentsOnly(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(";; nothing here\n; still nothing\n")
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp()

	source := "(+ 1 2)\n(graphics-layer \"test\""
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

func TestE2EUndefinedReference(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(graphics-layer "x" (graphic :geometry missingPolygon))`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for an undefined symbol")
	}
}

func TestE2EOpenRingIsAnError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`
(graphics-layer "x"
  (graphic :geometry (polygon (ring (pt 0 0) (pt 1 0) (pt 1 1)))))
`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for an open ring")
	}
	if !strings.Contains(result.Errors[0].Message, "not closed") {
		t.Errorf("message = %q", result.Errors[0].Message)
	}
}

func TestE2EEmptyPolygonIsAWarning(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(graphics-layer "x" (graphic :geometry (polygon)))`)
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for a polygon without rings")
	}
	if result.Scene == nil {
		t.Error("warnings should not suppress the scene")
	}
}

func TestE2ERequireOutlineFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("scene:\n  require_outline: true\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	app := NewAppWithConfig(cfg)

	source := `
(graphics-layer "x"
  (graphic :geometry (polygon (ring (pt 0 0) (pt 1 0) (pt 1 1) (pt 0 0)))
           :symbol (simple-fill :color (color 1 2 3))))
`
	if result := app.Evaluate(source); len(result.Errors) == 0 {
		t.Error("expected a missing outline error")
	}
	if result := NewApp().Evaluate(source); len(result.Errors) != 0 {
		t.Errorf("default settings should accept a fill without outline, got %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// Rapid evaluation (debounce simulation): no panics, no data races.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	// Simulates debounce: rapid sequential calls to Evaluate on the same App.
	// zygomys has global state that is not safe for concurrent sandbox
	// creation, so calls stay sequential as they are in production.
	app, mirror := startedApp(t)

	sources := []string{
		`(graphics-layer "a")`,
		`(graphics-layer "a") (graphics-layer "b")`,
		`(+ 1 2)`,
		``,
		`(graphics-layer "c" :opacity 0.5)`,
		`(graphics-layer "broken"`,
		`(graphics-layer "d") (graphics-layer "e")`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked: %v", i, r)
				}
			}()
			app.Evaluate(source)
		}()
	}
	drain(t, app.sched)

	// The last good source wins.
	layers := mirror.Layers()
	if len(layers) != 2 || layers[0].Title != "d" || layers[1].Title != "e" {
		t.Errorf("unexpected final layers %+v", layers)
	}
}

func TestE2EGraphicIndicesInRecord(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`
(def sq (ring (pt 0 0) (pt 1 0) (pt 1 1) (pt 0 0)))
(graphics-layer "x"
  (graphic :geometry (polygon sq))
  (graphic :geometry (polygon sq))
  (graphic :geometry (polygon sq)))
`)
	if len(result.Errors) != 0 {
		t.Fatalf("errors: %v", result.Errors)
	}
	layer := decodeMap(t, result.Scene).Layers[0].(wire.GraphicsLayerRecord)
	for i, g := range layer.Graphics {
		if g.Index == nil || *g.Index != i {
			t.Errorf("graphic %d has index %v", i, g.Index)
		}
	}
}
