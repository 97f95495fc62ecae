package geom

import (
	"errors"
	"math"
	"testing"
)

func TestMapperRoundTrip(t *testing.T) {
	transforms := []Transform{
		Identity(),
		{X: 120, Y: -40, ScaleX: 1, ScaleY: 1},
		{X: 10, Y: 20, ScaleX: 2.5, ScaleY: 0.5},
		{X: -33.2, Y: 7.9, ScaleX: 1.25, ScaleY: 3, Rotation: 30},
		{X: 0, Y: 0, ScaleX: 0.1, ScaleY: 0.1, Rotation: 271.5},
	}
	points := []Point{{0, 0}, {255, 0}, {0.5, 0.5}, {100.25, 99.75}, {-3, 12}}

	for _, tr := range transforms {
		m, err := NewMapper(tr)
		if err != nil {
			t.Fatalf("NewMapper(%+v): %v", tr, err)
		}
		for _, p := range points {
			got := m.ToPixel(m.ToDisplay(p))
			if math.Abs(got.X-p.X) > 1 || math.Abs(got.Y-p.Y) > 1 {
				t.Errorf("round trip %+v through %+v = %+v", p, tr, got)
			}
		}
	}
}

func TestMapperTranslateScale(t *testing.T) {
	m, err := NewMapper(Transform{X: 100, Y: 50, ScaleX: 2, ScaleY: 4})
	if err != nil {
		t.Fatal(err)
	}

	d := m.ToDisplay(Point{X: 10, Y: 10})
	if d.X != 120 || d.Y != 90 {
		t.Errorf("expected display (120,90), got (%g,%g)", d.X, d.Y)
	}

	p := m.ToPixel(Point{X: 120, Y: 90})
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-10) > 1e-9 {
		t.Errorf("expected pixel (10,10), got (%g,%g)", p.X, p.Y)
	}
}

func TestMapperRotation(t *testing.T) {
	// 90 degrees clockwise around the origin: pixel (1,0) lands at (0,1).
	m, err := NewMapper(Transform{ScaleX: 1, ScaleY: 1, Rotation: 90})
	if err != nil {
		t.Fatal(err)
	}

	d := m.ToDisplay(Point{X: 1, Y: 0})
	if math.Abs(d.X) > 1e-9 || math.Abs(d.Y-1) > 1e-9 {
		t.Errorf("expected display (0,1), got (%g,%g)", d.X, d.Y)
	}
}

func TestMapperDegenerateScale(t *testing.T) {
	for _, tr := range []Transform{
		{ScaleX: 0, ScaleY: 1},
		{ScaleX: 1, ScaleY: 0},
	} {
		_, err := NewMapper(tr)
		var degenerate *DegenerateTransformError
		if !errors.As(err, &degenerate) {
			t.Errorf("NewMapper(%+v): expected DegenerateTransformError, got %v", tr, err)
		}
	}
}
