package vision

import (
	"context"
	"errors"
	"image"
)

// ErrNoSubject is returned when no foreground instance was found.
var ErrNoSubject = errors.New("no subject found")

// Point is a normalized selection point with the origin at the bottom-left
// corner, matching the text-detection coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InstanceMap labels each pixel with a foreground instance. Label 0 is
// background; instances are numbered 1..Count. The map may be smaller than
// the image it was computed from.
type InstanceMap struct {
	Width, Height int
	Labels        []uint16
	Count         int
}

// Segmenter computes foreground instances.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*InstanceMap, error)
}

// InstanceAt returns the label under p, or 0 when p is nil, outside the
// image, or on background.
func (m *InstanceMap) InstanceAt(p *Point) int {
	if p == nil || m.Width == 0 || m.Height == 0 {
		return 0
	}
	if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
		return 0
	}
	x := min(int(p.X*float64(m.Width)), m.Width-1)
	y := min(int((1-p.Y)*float64(m.Height)), m.Height-1)
	return int(m.Labels[y*m.Width+x])
}

// Mask returns an alpha mask covering the instance under sel. If sel is nil
// or lands on background every instance is included.
func (m *InstanceMap) Mask(sel *Point) (*image.Alpha, error) {
	if m.Count == 0 {
		return nil, ErrNoSubject
	}
	want := m.InstanceAt(sel)
	a := image.NewAlpha(image.Rect(0, 0, m.Width, m.Height))
	for i, l := range m.Labels {
		if l == 0 || (want != 0 && int(l) != want) {
			continue
		}
		a.Pix[i] = 0xff
	}
	return a, nil
}
