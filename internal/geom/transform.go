// Package geom maps between canvas display space and a target's native
// pixel space.
package geom

import (
	"fmt"
	"math"
)

// Point is a coordinate in either display or pixel space.
type Point struct {
	X float64
	Y float64
}

// Transform places a target's native pixel space onto the canvas:
// pixels are scaled, then rotated around the target origin, then translated.
type Transform struct {
	X        float64 // translation in display pixels
	Y        float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64 // degrees, clockwise
}

// Identity returns a transform that leaves pixel coordinates unchanged.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// DegenerateTransformError is returned when a transform cannot be inverted
// because one of its scale axes collapses to zero.
type DegenerateTransformError struct {
	Axis  string
	Scale float64
}

func (e *DegenerateTransformError) Error() string {
	return fmt.Sprintf("degenerate transform: scale%s is %g", e.Axis, e.Scale)
}

// affine is a 2x3 matrix in row-major order:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type affine struct {
	A, B, C float64
	D, E, F float64
}

func (m affine) apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}

func (m affine) multiply(o affine) affine {
	return affine{
		A: m.A*o.A + m.B*o.D,
		B: m.A*o.B + m.B*o.E,
		C: m.A*o.C + m.B*o.F + m.C,
		D: m.D*o.A + m.E*o.D,
		E: m.D*o.B + m.E*o.E,
		F: m.D*o.C + m.E*o.F + m.F,
	}
}

// invert returns the inverse matrix. ok is false when the determinant is
// effectively zero.
func (m affine) invert() (affine, bool) {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < 1e-12 {
		return affine{}, false
	}
	inv := 1.0 / det
	return affine{
		A: m.E * inv,
		B: -m.B * inv,
		C: (m.B*m.F - m.C*m.E) * inv,
		D: -m.D * inv,
		E: m.A * inv,
		F: (m.C*m.D - m.A*m.F) * inv,
	}, true
}

// Mapper converts coordinates between a target's pixel space and canvas
// display space. Build one per filter invocation and thread it through;
// the conversion is a fixed affine pair, never recomputed per pixel.
type Mapper struct {
	toDisplay affine
	toPixel   affine
}

// NewMapper builds the mapper for a display transform. A zero scale on
// either axis is rejected with a DegenerateTransformError.
func NewMapper(t Transform) (*Mapper, error) {
	if t.ScaleX == 0 {
		return nil, &DegenerateTransformError{Axis: "X", Scale: t.ScaleX}
	}
	if t.ScaleY == 0 {
		return nil, &DegenerateTransformError{Axis: "Y", Scale: t.ScaleY}
	}

	rad := t.Rotation * math.Pi / 180.0
	cos := math.Cos(rad)
	sin := math.Sin(rad)

	translate := affine{A: 1, C: t.X, E: 1, F: t.Y}
	rotate := affine{A: cos, B: -sin, D: sin, E: cos}
	scale := affine{A: t.ScaleX, E: t.ScaleY}

	fwd := translate.multiply(rotate).multiply(scale)
	inv, ok := fwd.invert()
	if !ok {
		return nil, &DegenerateTransformError{Axis: "XY", Scale: 0}
	}

	return &Mapper{toDisplay: fwd, toPixel: inv}, nil
}

// ToDisplay maps a pixel-space coordinate onto the canvas.
func (m *Mapper) ToDisplay(p Point) Point {
	return m.toDisplay.apply(p)
}

// ToPixel maps a display-space coordinate into the target's pixel space.
func (m *Mapper) ToPixel(p Point) Point {
	return m.toPixel.apply(p)
}
