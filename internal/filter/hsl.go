package filter

import "math"

// rgbToHSL converts 8-bit RGB to hue/saturation/lightness, each in [0,1].
func rgbToHSL(r, g, b uint8) (h, s, l float64) {
	fr := float64(r) / 255.0
	fg := float64(g) / 255.0
	fb := float64(b) / 255.0

	maxv := math.Max(fr, math.Max(fg, fb))
	minv := math.Min(fr, math.Min(fg, fb))
	l = (maxv + minv) / 2.0

	delta := maxv - minv
	if delta == 0 {
		return 0, 0, l
	}

	if l > 0.5 {
		s = delta / (2.0 - maxv - minv)
	} else {
		s = delta / (maxv + minv)
	}

	switch maxv {
	case fr:
		h = (fg - fb) / delta
		if fg < fb {
			h += 6.0
		}
	case fg:
		h = (fb-fr)/delta + 2.0
	case fb:
		h = (fr-fg)/delta + 4.0
	}
	h /= 6.0
	return h, s, l
}

// hslToRGB converts hue/saturation/lightness in [0,1] back to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l*255.0 + 0.5)
		return v, v, v
	}

	var q float64
	if l < 0.5 {
		q = l * (1.0 + s)
	} else {
		q = l + s - l*s
	}
	p := 2.0*l - q

	r = uint8(hueToChannel(p, q, h+1.0/3.0)*255.0 + 0.5)
	g = uint8(hueToChannel(p, q, h)*255.0 + 0.5)
	b = uint8(hueToChannel(p, q, h-1.0/3.0)*255.0 + 0.5)
	return r, g, b
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t += 1.0
	}
	if t > 1 {
		t -= 1.0
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6.0*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6.0
	}
	return p
}
