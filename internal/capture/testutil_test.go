package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// fakeDriver records calls and returns 4x2 frames whose red channel encodes
// the capture count.
type fakeDriver struct {
	mu         sync.Mutex
	devices    []Device
	authErr    error
	configured []string
	starts     int
	stops      int
	captures   int
}

func (f *fakeDriver) Authorize(context.Context) error { return f.authErr }

func (f *fakeDriver) Devices(context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeDriver) Configure(_ context.Context, dev Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = append(f.configured, dev.ID)
	return nil
}

func (f *fakeDriver) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeDriver) CapturePhoto(context.Context) (image.Image, error) {
	f.mu.Lock()
	f.captures++
	n := f.captures
	f.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.SetRGBA(0, 0, color.RGBA{R: uint8(n), A: 255})
	return img, nil
}

func (f *fakeDriver) snapshot() (configured []string, starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.configured...), f.starts, f.stops
}

var errDenied = errors.New("denied")

func recv(t *testing.T, sub *Subscription) Frame {
	t.Helper()
	select {
	case f, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return Frame{}
}

func expectNone(t *testing.T, sub *Subscription, within time.Duration) {
	t.Helper()
	select {
	case f := <-sub.C():
		t.Fatalf("unexpected frame %d", f.Seq)
	case <-time.After(within):
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
