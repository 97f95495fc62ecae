package selection

import (
	"fmt"
	"image"
	"image/color"

	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// FromImage builds a mask from an arbitrary image interpreted as coverage
// (luminance, white = selected), rescaled onto the given display-space
// rectangle when the sizes differ.
func FromImage(img image.Image, rect image.Rectangle) (*Mask, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("mask rectangle %v is empty", rect)
	}

	gray := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	if img.Bounds().Dx() == rect.Dx() && img.Bounds().Dy() == rect.Dy() {
		draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)
	}

	m, err := New(rect)
	if err != nil {
		return nil, err
	}
	for y := 0; y < rect.Dy(); y++ {
		copy(m.Coverage[y*rect.Dx():(y+1)*rect.Dx()], gray.Pix[y*gray.Stride:])
	}
	return m, nil
}

// FromPolygon rasterizes a display-space polygon (outer ring plus optional
// holes) into an antialiased coverage mask over rect. Ring coordinates are
// absolute display coordinates.
func FromPolygon(poly orb.Polygon, rect image.Rectangle) (*Mask, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("mask rectangle %v is empty", rect)
	}
	if len(poly) == 0 {
		return New(rect)
	}

	ras := vector.NewRasterizer(rect.Dx(), rect.Dy())
	for _, ring := range poly {
		if len(ring) < 3 {
			continue
		}
		first := true
		for _, pt := range ring {
			fx := float32(pt[0] - float64(rect.Min.X))
			fy := float32(pt[1] - float64(rect.Min.Y))
			if first {
				ras.MoveTo(fx, fy)
				first = false
			} else {
				ras.LineTo(fx, fy)
			}
		}
		ras.ClosePath()
	}

	alpha := image.NewAlpha(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	ras.Draw(alpha, alpha.Bounds(), image.NewUniform(color.Alpha{A: 255}), image.Point{})

	m, err := New(rect)
	if err != nil {
		return nil, err
	}
	for y := 0; y < rect.Dy(); y++ {
		copy(m.Coverage[y*rect.Dx():(y+1)*rect.Dx()], alpha.Pix[y*alpha.Stride:])
	}
	return m, nil
}
