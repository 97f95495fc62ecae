package filter

import "math"

// luminance is the Rec. 709 luma of an RGB triple, in 0..255.
func luminance(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// clampRound clamps v to [0,255] and rounds to the nearest integer.
func clampRound(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// pixelFunc transforms a single non-premultiplied RGBA pixel.
type pixelFunc func(r, g, b, a uint8) (uint8, uint8, uint8, uint8)

// pixelLaw returns the per-pixel transform for a non-neighborhood spec.
// Blur and Sharpen have no per-pixel form; callers must route them through
// the buffer-level functions instead.
func pixelLaw(s Spec) pixelFunc {
	switch s.Kind {
	case Brightness:
		delta := s.Params.Adjustment / 100.0 * 255.0
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			return clampRound(float64(r) + delta),
				clampRound(float64(g) + delta),
				clampRound(float64(b) + delta),
				a
		}

	case Contrast:
		// The normalized factor is clamped short of +/-1 so the 259/(259-c)
		// denominator can neither blow up nor flip sign.
		c := s.Params.Adjustment / 100.0
		if c > 0.99 {
			c = 0.99
		}
		if c < -0.99 {
			c = -0.99
		}
		f := 259.0 * (c + 1.0) / (259.0 - c)
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			return clampRound(f*(float64(r)-128.0) + 128.0),
				clampRound(f*(float64(g)-128.0) + 128.0),
				clampRound(f*(float64(b)-128.0) + 128.0),
				a
		}

	case Saturation:
		f := 1.0 + s.Params.Adjustment/100.0
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			l := luminance(r, g, b)
			return clampRound(l + (float64(r)-l)*f),
				clampRound(l + (float64(g)-l)*f),
				clampRound(l + (float64(b)-l)*f),
				a
		}

	case HueRotate:
		shift := s.Params.Rotation / 360.0
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			h, sat, l := rgbToHSL(r, g, b)
			h += shift
			h -= math.Floor(h) // wrap into [0,1)
			nr, ng, nb := hslToRGB(h, sat, l)
			return nr, ng, nb, a
		}

	case Grayscale:
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			l := clampRound(luminance(r, g, b))
			return l, l, l, a
		}

	case Invert:
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			return 255 - r, 255 - g, 255 - b, a
		}

	case Sepia:
		t := s.Params.Intensity / 100.0
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			fr, fg, fb := float64(r), float64(g), float64(b)
			sr := 0.393*fr + 0.769*fg + 0.189*fb
			sg := 0.349*fr + 0.686*fg + 0.168*fb
			sb := 0.272*fr + 0.534*fg + 0.131*fb
			return clampRound(fr*(1.0-t) + sr*t),
				clampRound(fg*(1.0-t) + sg*t),
				clampRound(fb*(1.0-t) + sb*t),
				a
		}

	case Temperature:
		t := s.Params.Temperature / 100.0
		rf := 1.0 + 0.2*t
		bf := 1.0 - 0.2*t
		return func(r, g, b, a uint8) (uint8, uint8, uint8, uint8) {
			return clampRound(float64(r) * rf), g, clampRound(float64(b) * bf), a
		}
	}
	return nil
}
