package filter

import "math"

// Blend combines an original and a filtered channel value by a selection
// coverage fraction. Coverage 0 returns the original exactly and 255 the
// filtered value exactly; intermediate coverages interpolate with rounding,
// which hides seams at feathered mask edges.
func Blend(original, filtered, coverage uint8) uint8 {
	switch coverage {
	case 0:
		return original
	case 255:
		return filtered
	}
	a := float64(coverage) / 255.0
	return uint8(math.Round(float64(original)*(1.0-a) + float64(filtered)*a))
}
