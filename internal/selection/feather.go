package selection

import (
	"image"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"
)

// Feather softens the mask's edges with a Gaussian blur so filter results
// blend into unselected content without visible seams. A sigma of zero
// returns an unchanged copy.
func Feather(m *Mask, sigma float32) *Mask {
	if m == nil {
		return nil
	}
	if sigma <= 0 {
		return m.Clone()
	}

	g := gift.New(gift.GaussianBlur(sigma))
	src := m.Gray()
	dst := image.NewGray(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	out, err := FromGray(dst)
	if err != nil {
		return m.Clone()
	}
	return out
}

// Roughen perturbs the mask's coverage with Perlin noise, giving the
// selection an organic, hand-torn edge. strength 0..1 scales the
// perturbation; scale controls the noise frequency (smaller means finer
// detail). Noise is sampled at absolute display coordinates so adjacent
// masks built from the same seed line up.
func Roughen(m *Mask, scale, strength float64, seed int64) *Mask {
	if m == nil {
		return nil
	}
	if strength == 0 || scale <= 0 {
		return m.Clone()
	}

	p := perlin.NewPerlin(2.0, 2.0, 3, seed)
	out := m.Clone()
	w := m.Rect.Dx()

	for y := 0; y < m.Rect.Dy(); y++ {
		for x := 0; x < w; x++ {
			cov := float64(m.Coverage[y*w+x])
			if cov == 0 {
				continue // never grow the selection past its rectangle contract
			}

			nx := float64(m.Rect.Min.X+x) / scale
			ny := float64(m.Rect.Min.Y+y) / scale
			// Noise2D is roughly -1..1; use it as a signed coverage delta.
			delta := p.Noise2D(nx, ny) * 128.0 * strength

			v := cov + delta
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			out.Coverage[y*w+x] = uint8(v)
		}
	}
	return out
}
