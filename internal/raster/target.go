// Package raster holds the editable bitmap targets the filter engine
// operates on.
package raster

import (
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/rasterfilter/internal/geom"
)

// Channels is the number of 8-bit channels per pixel (RGBA).
const Channels = 4

// Target is a single editable bitmap: a non-premultiplied RGBA pixel buffer,
// a display transform placing it on the canvas, and a stable identity token.
//
// The buffer length always equals Width*Height*Channels. It is only ever
// replaced whole: external edits go through Replace, filter commits through
// Commit. Partial writes never happen.
type Target struct {
	id        string
	width     int
	height    int
	transform geom.Transform

	mu       sync.RWMutex
	pix      []uint8
	revision uint64
}

// New creates a target with a zeroed (transparent) pixel buffer.
func New(id string, width, height int, transform geom.Transform) (*Target, error) {
	if id == "" {
		return nil, fmt.Errorf("target id must not be empty")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("target %s: dimensions %dx%d must be positive", id, width, height)
	}
	return &Target{
		id:        id,
		width:     width,
		height:    height,
		transform: transform,
		pix:       make([]uint8, width*height*Channels),
	}, nil
}

// FromImage creates a target whose buffer is filled from an image.
func FromImage(id string, img image.Image, transform geom.Transform) (*Target, error) {
	bounds := img.Bounds()
	t, err := New(id, bounds.Dx(), bounds.Dy(), transform)
	if err != nil {
		return nil, err
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Bounds().Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				nrgba.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
			}
		}
	}
	if nrgba.Stride == t.width*Channels {
		copy(t.pix, nrgba.Pix[:t.width*t.height*Channels])
	} else {
		for y := 0; y < t.height; y++ {
			copy(t.pix[y*t.width*Channels:(y+1)*t.width*Channels], nrgba.Pix[y*nrgba.Stride:])
		}
	}
	return t, nil
}

// ID returns the target's identity token.
func (t *Target) ID() string { return t.id }

// Width returns the native pixel width.
func (t *Target) Width() int { return t.width }

// Height returns the native pixel height.
func (t *Target) Height() int { return t.height }

// Transform returns the display transform.
func (t *Target) Transform() geom.Transform {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.transform
}

// SetTransform updates the display transform. The pixel buffer is unaffected.
func (t *Target) SetTransform(tr geom.Transform) {
	t.mu.Lock()
	t.transform = tr
	t.mu.Unlock()
}

// Revision returns the external-edit revision counter. It advances on every
// Replace and never on Commit, so cached filter results computed from a given
// source buffer stay addressable until the document actually changes.
func (t *Target) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// Snapshot returns a copy of the current pixel buffer.
func (t *Target) Snapshot() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint8, len(t.pix))
	copy(out, t.pix)
	return out
}

// Replace swaps in a new pixel buffer as an external edit and bumps the
// revision. The buffer must match the target's native dimensions.
func (t *Target) Replace(pix []uint8) error {
	if err := t.swap(pix); err != nil {
		return err
	}
	t.mu.Lock()
	t.revision++
	t.mu.Unlock()
	return nil
}

// Commit swaps in a filter result. The revision is left alone: the result is
// a pure function of the revision it was computed from.
func (t *Target) Commit(pix []uint8) error {
	return t.swap(pix)
}

func (t *Target) swap(pix []uint8) error {
	if len(pix) != t.width*t.height*Channels {
		return fmt.Errorf("target %s: buffer length %d does not match %dx%d", t.id, len(pix), t.width, t.height)
	}
	next := make([]uint8, len(pix))
	copy(next, pix)
	t.mu.Lock()
	t.pix = next
	t.mu.Unlock()
	return nil
}

// Image returns the current buffer as an NRGBA image copy.
func (t *Target) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, t.Snapshot())
	return img
}
