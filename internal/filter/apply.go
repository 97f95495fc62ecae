package filter

import "fmt"

// RowCheck is consulted at pixel-row boundaries during filter passes.
// Returning an error aborts the pass; the engine uses it for cooperative
// cancellation and supersession checks.
type RowCheck func(row int) error

func checkBuffer(pix []uint8, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	if len(pix) != w*h*4 {
		return fmt.Errorf("buffer length %d does not match %dx%d", len(pix), w, h)
	}
	return nil
}

func copyBuffer(pix []uint8) []uint8 {
	out := make([]uint8, len(pix))
	copy(out, pix)
	return out
}

// Whole applies the Spec to an entire buffer with no selection active (fast
// path). The input is never mutated; a new buffer is returned. Zero-valued
// specs return an exact copy.
func Whole(pix []uint8, w, h int, spec Spec, check RowCheck) ([]uint8, error) {
	if err := checkBuffer(pix, w, h); err != nil {
		return nil, err
	}
	if spec.IsIdentity() {
		return copyBuffer(pix), nil
	}

	switch spec.Kind {
	case Blur:
		return boxBlur(pix, w, h, boxRadius(spec.Params.Radius), check)
	case Sharpen:
		return sharpen(pix, w, h, spec.Params.Strength, nil, check)
	}

	law := pixelLaw(spec)
	if law == nil {
		return nil, &UnsupportedKindError{Name: spec.Kind.String()}
	}

	dst := make([]uint8, len(pix))
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return nil, err
			}
		}
		row := y * w * 4
		for x := 0; x < w; x++ {
			o := row + x*4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = law(pix[o], pix[o+1], pix[o+2], pix[o+3])
		}
	}
	return dst, nil
}

// Masked applies the Spec under a per-pixel coverage grid (masked path).
// coverage holds one 0..255 value per pixel, already resolved from the
// selection mask into the target's pixel space. Pixels with zero coverage
// come back byte-identical and never reach the filter law; elsewhere the
// filtered value is blended with the original by the pixel's coverage.
func Masked(pix []uint8, w, h int, spec Spec, coverage []uint8, check RowCheck) ([]uint8, error) {
	if err := checkBuffer(pix, w, h); err != nil {
		return nil, err
	}
	if len(coverage) != w*h {
		return nil, fmt.Errorf("coverage length %d does not match %dx%d", len(coverage), w, h)
	}
	if spec.IsIdentity() {
		return copyBuffer(pix), nil
	}

	alphaInvariant := spec.Kind.AlphaInvariant()

	// Neighborhood kinds need the whole filtered buffer first so their
	// sampling windows can respect the mask; blending happens afterwards.
	if spec.Kind.Neighborhood() {
		var filtered []uint8
		var err error
		switch spec.Kind {
		case Blur:
			filtered, err = boxBlurMasked(pix, w, h, boxRadius(spec.Params.Radius), coverage, check)
		case Sharpen:
			filtered, err = sharpen(pix, w, h, spec.Params.Strength, coverage, check)
		}
		if err != nil {
			return nil, err
		}
		return blendBuffers(pix, filtered, w, h, coverage, alphaInvariant, check)
	}

	law := pixelLaw(spec)
	if law == nil {
		return nil, &UnsupportedKindError{Name: spec.Kind.String()}
	}

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
			cov := coverage[i]
			if cov == 0 {
				copy(dst[o:o+4], pix[o:o+4])
				continue
			}
			fr, fg, fb, fa := law(pix[o], pix[o+1], pix[o+2], pix[o+3])
			dst[o] = Blend(pix[o], fr, cov)
			dst[o+1] = Blend(pix[o+1], fg, cov)
			dst[o+2] = Blend(pix[o+2], fb, cov)
			if alphaInvariant {
				dst[o+3] = pix[o+3]
			} else {
				dst[o+3] = Blend(pix[o+3], fa, cov)
			}
		}
	}
	return dst, nil
}

func blendBuffers(orig, filtered []uint8, w, h int, coverage []uint8, alphaInvariant bool, check RowCheck) ([]uint8, error) {
	dst := make([]uint8, len(orig))
	for y := 0; y < h; y++ {
		if check != nil {
			if err := check(y); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			i := y*w + x
			o := i * 4
			cov := coverage[i]
			if cov == 0 {
				copy(dst[o:o+4], orig[o:o+4])
				continue
			}
			dst[o] = Blend(orig[o], filtered[o], cov)
			dst[o+1] = Blend(orig[o+1], filtered[o+1], cov)
			dst[o+2] = Blend(orig[o+2], filtered[o+2], cov)
			if alphaInvariant {
				dst[o+3] = orig[o+3]
			} else {
				dst[o+3] = Blend(orig[o+3], filtered[o+3], cov)
			}
		}
	}
	return dst, nil
}
