// Package capture owns the camera device. All device operations run on a
// single worker goroutine so reconfiguration is serialized with frame
// delivery; frames fan out to any number of subscribers.
package capture

import (
	"context"
	"image"
	"time"
)

// Position is where a camera faces.
type Position string

const (
	PositionBack  Position = "back"
	PositionFront Position = "front"
)

// Device describes one physical camera.
type Device struct {
	ID       string
	Name     string
	Position Position
	// Rotation is the clockwise rotation in degrees (0, 90, 180, 270) needed
	// to bring sensor output upright.
	Rotation int
}

// Mirrored reports whether frames from d are horizontally flipped.
func (d Device) Mirrored() bool { return d.Position == PositionFront }

// Driver is the platform camera collaborator. Methods are only ever called
// from the Source worker goroutine.
type Driver interface {
	Authorize(ctx context.Context) error
	Devices(ctx context.Context) ([]Device, error)
	Configure(ctx context.Context, dev Device) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CapturePhoto(ctx context.Context) (image.Image, error)
}

// Frame is one captured photo. It is never mutated after delivery.
type Frame struct {
	Seq        uint64
	DeviceID   string
	Image      image.Image
	CapturedAt time.Time
}
