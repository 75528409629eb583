// Package style defines the leaf style values shared by symbol components
// and their wire records.
package style

import (
	"encoding/json"
	"fmt"
	"math"
)

// FillStyle is the pattern used to fill a polygon.
type FillStyle int

const (
	FillBackwardDiagonal FillStyle = iota
	FillCross
	FillDiagonalCross
	FillForwardDiagonal
	FillHorizontal
	FillNone
	FillSolid
	FillVertical
)

// fillTokens is the fixed lexical mapping used on the wire.
var fillTokens = [...]string{
	FillBackwardDiagonal: "backward-diagonal",
	FillCross:            "cross",
	FillDiagonalCross:    "diagonal-cross",
	FillForwardDiagonal:  "forward-diagonal",
	FillHorizontal:       "horizontal",
	FillNone:             "none",
	FillSolid:            "solid",
	FillVertical:         "vertical",
}

func (s FillStyle) String() string {
	if s < 0 || int(s) >= len(fillTokens) {
		return fmt.Sprintf("FillStyle(%d)", int(s))
	}
	return fillTokens[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s FillStyle) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(fillTokens) {
		return nil, fmt.Errorf("style: invalid fill style %d", int(s))
	}
	return []byte(fillTokens[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *FillStyle) UnmarshalText(b []byte) error {
	v, err := ParseFillStyle(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseFillStyle maps a kebab-case token back to its FillStyle.
func ParseFillStyle(token string) (FillStyle, error) {
	for i, t := range fillTokens {
		if t == token {
			return FillStyle(i), nil
		}
	}
	return 0, fmt.Errorf("style: unknown fill style %q", token)
}

// LineStyle is the dash pattern of a line symbol.
type LineStyle int

const (
	LineDash LineStyle = iota
	LineDashDot
	LineDot
	LineLongDash
	LineNone
	LineShortDash
	LineSolid
)

var lineTokens = [...]string{
	LineDash:      "dash",
	LineDashDot:   "dash-dot",
	LineDot:       "dot",
	LineLongDash:  "long-dash",
	LineNone:      "none",
	LineShortDash: "short-dash",
	LineSolid:     "solid",
}

func (s LineStyle) String() string {
	if s < 0 || int(s) >= len(lineTokens) {
		return fmt.Sprintf("LineStyle(%d)", int(s))
	}
	return lineTokens[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s LineStyle) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(lineTokens) {
		return nil, fmt.Errorf("style: invalid line style %d", int(s))
	}
	return []byte(lineTokens[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LineStyle) UnmarshalText(b []byte) error {
	v, err := ParseLineStyle(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseLineStyle maps a kebab-case token back to its LineStyle.
func ParseLineStyle(token string) (LineStyle, error) {
	for i, t := range lineTokens {
		if t == token {
			return LineStyle(i), nil
		}
	}
	return 0, fmt.Errorf("style: unknown line style %q", token)
}

// Color is an RGBA color. Alpha is in [0, 1].
// It encodes as a four-element array [r, g, b, a].
type Color struct {
	R, G, B uint8
	A       float64
}

// RGBA builds a Color.
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// MarshalJSON implements json.Marshaler.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{float64(c.R), float64(c.G), float64(c.B), c.A})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Color) UnmarshalJSON(b []byte) error {
	var v []float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("style: color: %w", err)
	}
	if len(v) != 3 && len(v) != 4 {
		return fmt.Errorf("style: color needs 3 or 4 components, got %d", len(v))
	}
	var rgb [3]uint8
	for i, x := range v[:3] {
		if x < 0 || x > 255 || x != math.Trunc(x) {
			return fmt.Errorf("style: color component %d must be an integer in 0..255, got %v", i, x)
		}
		rgb[i] = uint8(x)
	}
	a := 1.0
	if len(v) == 4 {
		if a = v[3]; a < 0 || a > 1 {
			return fmt.Errorf("style: color alpha must be in 0..1, got %v", a)
		}
	}
	*c = RGBA(rgb[0], rgb[1], rgb[2], a)
	return nil
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%g)", c.R, c.G, c.B, c.A)
}

// Equal compares two optional values field-wise. Two nils are equal.
func Equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clone returns an owned copy of an optional value.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
