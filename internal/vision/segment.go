package vision

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// BackgroundSegmenter treats pixels that differ from the average border
// color as foreground and labels their 4-connected components. It works well
// for a subject on a plain backdrop, which is what the bundled camera mode
// is mostly used for.
type BackgroundSegmenter struct {
	// MaxDimension bounds the working resolution; 0 means 512.
	MaxDimension int
	// Threshold is the per-channel sum distance from the background color
	// (0-765) above which a pixel is foreground; 0 means 96.
	Threshold int
	// MinAreaFraction drops components smaller than this share of the
	// working image; 0 means 0.002.
	MinAreaFraction float64
}

func (s BackgroundSegmenter) Segment(ctx context.Context, img image.Image) (*InstanceMap, error) {
	maxDim := s.MaxDimension
	if maxDim <= 0 {
		maxDim = 512
	}
	thr := s.Threshold
	if thr <= 0 {
		thr = 96
	}
	minFrac := s.MinAreaFraction
	if minFrac <= 0 {
		minFrac = 0.002
	}

	work := imaging.Clone(img)
	if b := work.Bounds(); b.Dx() > maxDim || b.Dy() > maxDim {
		work = imaging.Fit(work, maxDim, maxDim, imaging.Box)
	}
	w, h := work.Bounds().Dx(), work.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, ErrNoSubject
	}
	bg := borderColor(work)

	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := work.Pix[y*work.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			d := absDiff(p[0], bg[0]) + absDiff(p[1], bg[1]) + absDiff(p[2], bg[2])
			fg[y*w+x] = d > thr
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &InstanceMap{Width: w, Height: h, Labels: make([]uint16, w*h)}
	minArea := max(1, int(minFrac*float64(w*h)))
	queue := make([]int, 0, 256)
	for start := range fg {
		if !fg[start] || m.Labels[start] != 0 {
			continue
		}
		if m.Count == 0xffff-1 {
			break
		}
		label := uint16(m.Count + 1)
		queue = append(queue[:0], start)
		m.Labels[start] = label
		member := []int{start}
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				switch {
				case n == i-1 && x == 0, n == i+1 && x == w-1, n == i-w && y == 0, n == i+w && y == h-1:
					continue
				}
				if fg[n] && m.Labels[n] == 0 {
					m.Labels[n] = label
					queue = append(queue, n)
					member = append(member, n)
				}
			}
		}
		if len(member) < minArea {
			// Too small to be a subject; mark as visited background.
			for _, i := range member {
				m.Labels[i] = 0
				fg[i] = false
			}
			continue
		}
		m.Count++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if m.Count == 0 {
		return nil, ErrNoSubject
	}
	return m, nil
}

func borderColor(img *image.NRGBA) [3]int {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	var sum [3]int
	n := 0
	add := func(x, y int) {
		p := img.Pix[y*img.Stride+x*4:]
		sum[0] += int(p[0])
		sum[1] += int(p[1])
		sum[2] += int(p[2])
		n++
	}
	for x := 0; x < w; x++ {
		add(x, 0)
		add(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		add(w-1, y)
	}
	return [3]int{sum[0] / n, sum[1] / n, sum[2] / n}
}

func absDiff(a uint8, b int) int {
	d := int(a) - b
	if d < 0 {
		return -d
	}
	return d
}
