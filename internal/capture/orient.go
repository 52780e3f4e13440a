package capture

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalize rotates img clockwise by rotation degrees and mirrors it when
// mirrored is set. Unknown rotations are treated as 0.
func Normalize(img image.Image, rotation int, mirrored bool) image.Image {
	// imaging rotates counter-clockwise.
	switch ((rotation % 360) + 360) % 360 {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}
	if mirrored {
		img = imaging.FlipH(img)
	}
	return img
}
