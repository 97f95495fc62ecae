package selection

import (
	"image"
	"image/color"
	"testing"

	"github.com/paulmach/orb"
)

func TestSampleInsideAndOutside(t *testing.T) {
	m, err := New(image.Rect(10, 10, 14, 14))
	if err != nil {
		t.Fatal(err)
	}
	m.Set(11, 12, 200)

	if got := m.Sample(11.4, 12.9); got != 200 {
		t.Errorf("nearest-cell sample = %d, want 200", got)
	}
	if got := m.Sample(11.0, 12.0); got != 200 {
		t.Errorf("exact sample = %d, want 200", got)
	}
	for _, p := range [][2]float64{{9.9, 12}, {14.0, 12}, {11, 9.5}, {11, 14.2}, {-3, -3}} {
		if got := m.Sample(p[0], p[1]); got != 0 {
			t.Errorf("sample outside rect at %v = %d, want 0", p, got)
		}
	}
}

func TestDigestTracksGeometry(t *testing.T) {
	a, _ := New(image.Rect(0, 0, 4, 4))
	b, _ := New(image.Rect(0, 0, 4, 4))
	if a.Digest() != b.Digest() {
		t.Error("identical masks disagree on digest")
	}

	b.Set(1, 1, 255)
	if a.Digest() == b.Digest() {
		t.Error("coverage change did not change digest")
	}

	c, _ := New(image.Rect(1, 0, 5, 4))
	if a.Digest() == c.Digest() {
		t.Error("rectangle change did not change digest")
	}

	var none *Mask
	if none.Digest() != NoMaskDigest {
		t.Error("nil mask must digest to the sentinel")
	}
	if a.Digest() == NoMaskDigest {
		t.Error("real mask collided with the no-mask sentinel")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m, _ := New(image.Rect(0, 0, 2, 2))
	m.Set(0, 0, 100)

	c := m.Clone()
	c.Set(0, 0, 50)
	if m.At(0, 0) != 100 {
		t.Error("clone aliases the original coverage buffer")
	}
}

func TestFromGrayRoundTrip(t *testing.T) {
	img := image.NewGray(image.Rect(2, 3, 5, 6))
	img.SetGray(3, 4, color.Gray{Y: 77})

	m, err := FromGray(img)
	if err != nil {
		t.Fatal(err)
	}
	if m.At(3, 4) != 77 {
		t.Errorf("coverage at (3,4) = %d, want 77", m.At(3, 4))
	}
	if got := m.Gray().GrayAt(3, 4).Y; got != 77 {
		t.Errorf("Gray() round trip = %d, want 77", got)
	}
}

func TestFromImageRescales(t *testing.T) {
	// A 2x2 white image stretched onto an 8x8 rectangle selects everything.
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	m, err := FromImage(img, image.Rect(0, 0, 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if m.At(x, y) != 255 {
				t.Fatalf("coverage at (%d,%d) = %d, want 255", x, y, m.At(x, y))
			}
		}
	}
}

func TestFromPolygonSquare(t *testing.T) {
	poly := orb.Polygon{
		{{2, 2}, {10, 2}, {10, 10}, {2, 10}, {2, 2}},
	}
	m, err := FromPolygon(poly, image.Rect(0, 0, 12, 12))
	if err != nil {
		t.Fatal(err)
	}

	if m.At(6, 6) != 255 {
		t.Errorf("interior coverage = %d, want 255", m.At(6, 6))
	}
	if m.At(0, 0) != 0 {
		t.Errorf("exterior coverage = %d, want 0", m.At(0, 0))
	}
	if m.At(11, 11) != 0 {
		t.Errorf("exterior coverage = %d, want 0", m.At(11, 11))
	}
}

func TestFeatherSoftensEdge(t *testing.T) {
	m, _ := New(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			m.Set(x, y, 255)
		}
	}

	f := Feather(m, 2.0)
	if f.At(7, 8) >= 255 {
		t.Errorf("inside edge kept hard coverage %d", f.At(7, 8))
	}
	if f.At(8, 8) == 0 {
		t.Error("feather did not spread past the hard boundary")
	}
	if f.At(0, 8) != 255 {
		t.Errorf("deep interior changed to %d", f.At(0, 8))
	}
}

func TestFeatherZeroSigmaIsCopy(t *testing.T) {
	m, _ := New(image.Rect(0, 0, 4, 4))
	m.Set(2, 2, 99)

	f := Feather(m, 0)
	if f.Digest() != m.Digest() {
		t.Error("zero sigma feather changed the mask")
	}
}

func TestRoughenPerturbsOnlySelection(t *testing.T) {
	m, _ := New(image.Rect(0, 0, 16, 16))
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			m.Set(x, y, 200)
		}
	}

	r := Roughen(m, 8.0, 0.8, 42)
	changed := false
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if m.At(x, y) == 0 && r.At(x, y) != 0 {
				t.Fatalf("roughen grew the selection at (%d,%d)", x, y)
			}
			if r.At(x, y) != m.At(x, y) {
				changed = true
			}
		}
	}
	if !changed {
		t.Error("roughen left the mask untouched")
	}

	// Deterministic for a fixed seed.
	again := Roughen(m, 8.0, 0.8, 42)
	if r.Digest() != again.Digest() {
		t.Error("roughen is not deterministic for a fixed seed")
	}
}
