// Package selection holds the display-space coverage masks that constrain
// filter application, plus the host-side producers that build them.
package selection

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"math"
)

// NoMaskDigest is the fixed sentinel digest used when no selection is
// active ("apply to entire target").
const NoMaskDigest uint64 = 0

// Mask is an alpha-only coverage field over canvas display space: a bounding
// rectangle and a same-sized buffer of 0..255 coverage values. 0 excludes a
// cell entirely, 255 includes it fully, intermediate values are feathered
// edges. Every non-zero cell lies inside Rect by construction.
//
// Masks are produced by the selection subsystem and read-only to the filter
// engine.
type Mask struct {
	Rect     image.Rectangle
	Coverage []uint8
}

// New creates an all-zero mask over the given display-space rectangle.
func New(rect image.Rectangle) (*Mask, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("mask rectangle %v is empty", rect)
	}
	return &Mask{
		Rect:     rect,
		Coverage: make([]uint8, rect.Dx()*rect.Dy()),
	}, nil
}

// FromGray builds a mask from a grayscale coverage image, using the image's
// bounds as the display-space rectangle.
func FromGray(img *image.Gray) (*Mask, error) {
	m, err := New(img.Bounds())
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(m.Coverage[y*b.Dx():(y+1)*b.Dx()], img.Pix[y*img.Stride:])
	}
	return m, nil
}

// Sample returns the coverage at a display-space coordinate using
// nearest-cell lookup. Coordinates outside the bounding rectangle are 0.
// The mask is expected to be prefiltered, so no interpolation happens here.
func (m *Mask) Sample(x, y float64) uint8 {
	ix := int(math.Floor(x))
	iy := int(math.Floor(y))
	return m.At(ix, iy)
}

// At returns the coverage at integer display coordinates, 0 outside Rect.
func (m *Mask) At(ix, iy int) uint8 {
	if !(image.Point{X: ix, Y: iy}).In(m.Rect) {
		return 0
	}
	return m.Coverage[(iy-m.Rect.Min.Y)*m.Rect.Dx()+(ix-m.Rect.Min.X)]
}

// Set writes the coverage at integer display coordinates inside Rect.
func (m *Mask) Set(ix, iy int, v uint8) {
	if !(image.Point{X: ix, Y: iy}).In(m.Rect) {
		return
	}
	m.Coverage[(iy-m.Rect.Min.Y)*m.Rect.Dx()+(ix-m.Rect.Min.X)] = v
}

// Clone returns an independent copy. The engine snapshots the active mask at
// invocation start so later edits cannot affect in-flight work.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	cov := make([]uint8, len(m.Coverage))
	copy(cov, m.Coverage)
	return &Mask{Rect: m.Rect, Coverage: cov}
}

// Digest hashes the mask geometry (bounding rectangle plus coverage buffer)
// for use in result-cache keys.
func (m *Mask) Digest() uint64 {
	if m == nil {
		return NoMaskDigest
	}
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(m.Rect.Min.X)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(m.Rect.Min.Y)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(int32(m.Rect.Max.X)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(int32(m.Rect.Max.Y)))
	h.Write(buf[:])       // nolint:errcheck // fnv writes never fail
	h.Write(m.Coverage)   // nolint:errcheck
	return h.Sum64()
}

// Gray renders the mask as a grayscale image over its display rectangle.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(m.Rect)
	w := m.Rect.Dx()
	for y := 0; y < m.Rect.Dy(); y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w], m.Coverage[y*w:(y+1)*w])
	}
	return img
}
