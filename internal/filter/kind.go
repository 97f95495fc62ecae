// Package filter implements the tonal and spatial adjustment algorithms and
// their selection-aware application.
package filter

import (
	"fmt"
	"strings"
)

// Kind identifies one filter algorithm. The set is closed: dispatch happens
// through exhaustive switches, so an unhandled kind is a compile-time smell
// rather than a runtime map miss.
type Kind uint8

const (
	Brightness Kind = iota
	Contrast
	Saturation
	HueRotate
	Grayscale
	Invert
	Sepia
	Temperature
	Blur
	Sharpen
)

var kindNames = [...]string{
	Brightness:  "brightness",
	Contrast:    "contrast",
	Saturation:  "saturation",
	HueRotate:   "hue-rotate",
	Grayscale:   "grayscale",
	Invert:      "invert",
	Sepia:       "sepia",
	Temperature: "temperature",
	Blur:        "blur",
	Sharpen:     "sharpen",
}

// String returns the canonical lower-case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kinds lists every supported filter kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// UnsupportedKindError reports a filter identifier outside the closed set.
type UnsupportedKindError struct {
	Name string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported filter kind %q", e.Name)
}

// ParseKind resolves a filter identifier from the invocation surface.
func ParseKind(name string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == needle {
			return Kind(i), nil
		}
	}
	return 0, &UnsupportedKindError{Name: name}
}

// Neighborhood reports whether the kind samples pixels around the center
// (and therefore needs mask-aware sampling on the masked path).
func (k Kind) Neighborhood() bool {
	return k == Blur || k == Sharpen
}

// AlphaInvariant reports whether the kind leaves the alpha channel untouched.
// For alpha-invariant kinds the blender passes the source alpha through
// instead of blending it.
func (k Kind) AlphaInvariant() bool {
	switch k {
	case Brightness, Contrast, Saturation, HueRotate, Grayscale, Invert, Sepia, Temperature, Sharpen:
		return true
	case Blur:
		return false
	}
	return false
}
