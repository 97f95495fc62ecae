package filter

import (
	"fmt"
	"strconv"
)

// Params carries the parameter record for a filter invocation. Each kind
// reads only the fields listed for it; the rest are ignored.
type Params struct {
	Adjustment  float64 // brightness, contrast, saturation: -100..100
	Rotation    float64 // hue-rotate: degrees, -360..360
	Intensity   float64 // sepia: 0..100 percent blend with the original
	Temperature float64 // temperature: -100 (cool) .. 100 (warm)
	Radius      float64 // blur: 0..100 percent of the maximum kernel
	Strength    float64 // sharpen: 0..100
}

// Spec is a validated filter request: a kind plus its parameter record.
type Spec struct {
	Kind   Kind
	Params Params
}

// InvalidParameterError reports a parameter outside its declared range.
type InvalidParameterError struct {
	Kind     Kind
	Param    string
	Value    float64
	Min, Max float64
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: parameter %s=%g outside [%g, %g]", e.Kind, e.Param, e.Value, e.Min, e.Max)
}

func checkRange(kind Kind, name string, value, min, max float64) error {
	if value < min || value > max {
		return &InvalidParameterError{Kind: kind, Param: name, Value: value, Min: min, Max: max}
	}
	return nil
}

// Validate range-checks the parameters the Spec's kind actually uses.
func (s Spec) Validate() error {
	switch s.Kind {
	case Brightness, Contrast, Saturation:
		return checkRange(s.Kind, "adjustment", s.Params.Adjustment, -100, 100)
	case HueRotate:
		return checkRange(s.Kind, "rotation", s.Params.Rotation, -360, 360)
	case Grayscale, Invert:
		return nil
	case Sepia:
		return checkRange(s.Kind, "intensity", s.Params.Intensity, 0, 100)
	case Temperature:
		return checkRange(s.Kind, "temperature", s.Params.Temperature, -100, 100)
	case Blur:
		return checkRange(s.Kind, "radius", s.Params.Radius, 0, 100)
	case Sharpen:
		return checkRange(s.Kind, "strength", s.Params.Strength, 0, 100)
	}
	return &UnsupportedKindError{Name: s.Kind.String()}
}

// IsIdentity reports whether the Spec is a no-op at its current parameters.
// Zero-valued adjustments short-circuit into an exact buffer copy so the
// identity contract holds byte for byte.
func (s Spec) IsIdentity() bool {
	switch s.Kind {
	case Brightness, Contrast, Saturation:
		return s.Params.Adjustment == 0
	case HueRotate:
		return s.Params.Rotation == 0
	case Sepia:
		return s.Params.Intensity == 0
	case Temperature:
		return s.Params.Temperature == 0
	case Blur:
		return boxRadius(s.Params.Radius) == 0
	case Sharpen:
		return s.Params.Strength == 0
	}
	return false
}

// CacheString serializes the parameters relevant to the Spec's kind into a
// canonical form usable as a cache key component.
func (s Spec) CacheString() string {
	switch s.Kind {
	case Brightness, Contrast, Saturation:
		return "adj=" + strconv.FormatFloat(s.Params.Adjustment, 'g', -1, 64)
	case HueRotate:
		return "rot=" + strconv.FormatFloat(s.Params.Rotation, 'g', -1, 64)
	case Grayscale, Invert:
		return ""
	case Sepia:
		return "int=" + strconv.FormatFloat(s.Params.Intensity, 'g', -1, 64)
	case Temperature:
		return "temp=" + strconv.FormatFloat(s.Params.Temperature, 'g', -1, 64)
	case Blur:
		return "radius=" + strconv.FormatFloat(s.Params.Radius, 'g', -1, 64)
	case Sharpen:
		return "strength=" + strconv.FormatFloat(s.Params.Strength, 'g', -1, 64)
	}
	return ""
}
