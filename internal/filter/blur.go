package filter

import "math"

// blurPasses is the number of successive box-blur rounds. Three box blurs
// approximate a Gaussian closely enough for a display filter.
const blurPasses = 3

// sharpenBlurHalfWidth is the fixed box half-width for the unsharp mask's
// internal blurred copy.
const sharpenBlurHalfWidth = 2

// boxRadius converts the user-facing radius percentage into a kernel
// half-width in pixels (0..10).
func boxRadius(radius float64) int {
	return int(math.Ceil(radius / 100.0 * 10.0))
}

func clampIndex(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// boxBlur runs blurPasses rounds of a separable box blur (horizontal then
// vertical) over all four channels. Edge pixels use clamped nearest-edge
// sampling. check, when non-nil, is consulted at every row boundary and
// aborts the blur when it returns an error.
func boxBlur(pix []uint8, w, h, r int, check RowCheck) ([]uint8, error) {
	src := make([]uint8, len(pix))
	copy(src, pix)
	if r <= 0 {
		return src, nil
	}
	dst := make([]uint8, len(pix))

	for pass := 0; pass < blurPasses; pass++ {
		if err := boxPassHorizontal(src, dst, w, h, r, check); err != nil {
			return nil, err
		}
		if err := boxPassVertical(dst, src, w, h, r, check); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func boxPassHorizontal(src, dst []uint8, w, h, r int, check RowCheck) error {
	window := float64(2*r + 1)
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return err
			}
		}
		row := y * w * 4
		for x := 0; x < w; x++ {
			var sum [4]float64
			for dx := -r; dx <= r; dx++ {
				o := row + clampIndex(x+dx, w-1)*4
				sum[0] += float64(src[o])
				sum[1] += float64(src[o+1])
				sum[2] += float64(src[o+2])
				sum[3] += float64(src[o+3])
			}
			o := row + x*4
			dst[o] = clampRound(sum[0] / window)
			dst[o+1] = clampRound(sum[1] / window)
			dst[o+2] = clampRound(sum[2] / window)
			dst[o+3] = clampRound(sum[3] / window)
		}
	}
	return nil
}

func boxPassVertical(src, dst []uint8, w, h, r int, check RowCheck) error {
	window := float64(2*r + 1)
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return err
			}
		}
		for x := 0; x < w; x++ {
			var sum [4]float64
			for dy := -r; dy <= r; dy++ {
				o := (clampIndex(y+dy, h-1)*w + x) * 4
				sum[0] += float64(src[o])
				sum[1] += float64(src[o+1])
				sum[2] += float64(src[o+2])
				sum[3] += float64(src[o+3])
			}
			o := (y*w + x) * 4
			dst[o] = clampRound(sum[0] / window)
			dst[o+1] = clampRound(sum[1] / window)
			dst[o+2] = clampRound(sum[2] / window)
			dst[o+3] = clampRound(sum[3] / window)
		}
	}
	return nil
}

// boxBlurMasked is boxBlur restricted to a coverage grid: samples with zero
// coverage are excluded from every averaging window, and zero-coverage
// centers pass through unchanged, so unselected content never bleeds into
// the selection. Since a nonzero-coverage center always contributes to its
// own window, the window is never empty where it matters; a fully excluded
// window degenerates to the untouched center pixel.
func boxBlurMasked(pix []uint8, w, h, r int, coverage []uint8, check RowCheck) ([]uint8, error) {
	src := make([]uint8, len(pix))
	copy(src, pix)
	if r <= 0 {
		return src, nil
	}
	dst := make([]uint8, len(pix))

	for pass := 0; pass < blurPasses; pass++ {
		if err := boxPassMasked(src, dst, w, h, r, coverage, check, true); err != nil {
			return nil, err
		}
		if err := boxPassMasked(dst, src, w, h, r, coverage, check, false); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func boxPassMasked(src, dst []uint8, w, h, r int, coverage []uint8, check RowCheck, horizontal bool) error {
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return err
			}
		}
		for x := 0; x < w; x++ {
			center := y*w + x
			o := center * 4
			if coverage[center] == 0 {
				copy(dst[o:o+4], src[o:o+4])
				continue
			}

			var sum [4]float64
			count := 0
			for d := -r; d <= r; d++ {
				var sample int
				if horizontal {
					sample = y*w + clampIndex(x+d, w-1)
				} else {
					sample = clampIndex(y+d, h-1)*w + x
				}
				if coverage[sample] == 0 {
					continue
				}
				so := sample * 4
				sum[0] += float64(src[so])
				sum[1] += float64(src[so+1])
				sum[2] += float64(src[so+2])
				sum[3] += float64(src[so+3])
				count++
			}
			n := float64(count)
			dst[o] = clampRound(sum[0] / n)
			dst[o+1] = clampRound(sum[1] / n)
			dst[o+2] = clampRound(sum[2] / n)
			dst[o+3] = clampRound(sum[3] / n)
		}
	}
	return nil
}

// sharpen applies the unsharp-mask law: detail is the difference between the
// buffer and a small fixed-radius blurred copy, amplified by strength. When
// coverage is non-nil the internal blur is mask-aware and zero-coverage
// pixels pass through unchanged. Alpha is never sharpened.
func sharpen(pix []uint8, w, h int, strength float64, coverage []uint8, check RowCheck) ([]uint8, error) {
	var blurred []uint8
	var err error
	if coverage != nil {
		blurred, err = boxBlurMasked(pix, w, h, sharpenBlurHalfWidth, coverage, check)
	} else {
		blurred, err = boxBlur(pix, w, h, sharpenBlurHalfWidth, check)
	}
	if err != nil {
		return nil, err
	}

	amount := 1.0 + 2.0*strength/100.0
	dst := make([]uint8, len(pix))
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			i := y*w + x
			o := i * 4
			if coverage != nil && coverage[i] == 0 {
				copy(dst[o:o+4], pix[o:o+4])
				continue
			}
			for c := 0; c < 3; c++ {
				v := float64(pix[o+c])
				dst[o+c] = clampRound(v + (v-float64(blurred[o+c]))*amount)
			}
			dst[o+3] = pix[o+3]
		}
	}
	return dst, nil
}
