package capture

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSource(t *testing.T, drv Driver) *Source {
	t.Helper()
	s := NewSource(Options{Driver: drv})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStartIsIdempotentAndConfiguresOnce(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back"}, {ID: "front", Position: PositionFront}}}
	s := newTestSource(t, drv)
	for i := 0; i < 3; i++ {
		if err := s.Start(testCtx(t)); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	configured, starts, _ := drv.snapshot()
	if len(configured) != 1 || starts != 1 {
		t.Fatalf("expected one configure and one start, got %v / %d", configured, starts)
	}

	if err := s.Stop(testCtx(t)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("restart: %v", err)
	}
	configured, starts, stops := drv.snapshot()
	if len(configured) != 1 || starts != 2 || stops != 1 {
		t.Fatalf("stop must keep configuration: %v starts=%d stops=%d", configured, starts, stops)
	}
}

func TestStartFailureProducesNoFrames(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back"}}, authErr: errDenied}
	s := newTestSource(t, drv)
	sub := s.Frames()
	if err := s.Start(testCtx(t)); !errors.Is(err, errDenied) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := s.Capture(testCtx(t)); err != nil {
		t.Fatalf("capture: %v", err)
	}
	expectNone(t, sub, 50*time.Millisecond)
}

func TestCaptureFansOutInOrder(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back"}}}
	s := newTestSource(t, drv)
	early := s.Frames()
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Capture(testCtx(t)); err != nil {
			t.Fatalf("capture: %v", err)
		}
	}
	// early is not read yet; frames must queue without blocking the source.
	for i := uint64(1); i <= 5; i++ {
		if f := recv(t, early); f.Seq != i || f.DeviceID != "back" {
			t.Fatalf("frame %d: got seq %d from %q", i, f.Seq, f.DeviceID)
		}
	}

	late := s.Frames()
	if err := s.Capture(testCtx(t)); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if f := recv(t, late); f.Seq != 6 {
		t.Fatalf("late subscriber should only see new frames, got %d", f.Seq)
	}
	if f := recv(t, early); f.Seq != 6 {
		t.Fatalf("early subscriber missed frame 6, got %d", f.Seq)
	}
}

func TestStoppedSourceDropsCapture(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back"}}}
	s := newTestSource(t, drv)
	sub := s.Frames()
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(testCtx(t)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_ = s.Capture(testCtx(t))
	expectNone(t, sub, 50*time.Millisecond)
}

func TestSwitchDeviceCyclesAndNormalizes(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back", Rotation: 90}, {ID: "front", Position: PositionFront}}}
	s := newTestSource(t, drv)
	sub := s.Frames()
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = s.Capture(testCtx(t))
	f := recv(t, sub)
	if b := f.Image.Bounds(); b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("90 degree device should yield a portrait frame, got %v", b)
	}

	if err := s.SwitchDevice(testCtx(t)); err != nil {
		t.Fatalf("switch: %v", err)
	}
	dev, err := s.Device(testCtx(t))
	if err != nil || dev.ID != "front" {
		t.Fatalf("expected front device, got %+v %v", dev, err)
	}
	_ = s.Capture(testCtx(t))
	f = recv(t, sub)
	if f.DeviceID != "front" || f.Seq != 2 {
		t.Fatalf("unexpected frame %+v", f)
	}
	// Front frames are mirrored: the marked pixel moves to the right edge.
	if r, _, _, _ := f.Image.At(3, 0).RGBA(); r == 0 {
		t.Fatalf("front camera frame not mirrored")
	}

	if err := s.SwitchDevice(testCtx(t)); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	configured, _, _ := drv.snapshot()
	if len(configured) != 3 || configured[2] != "back" {
		t.Fatalf("expected cycling back to the first device, got %v", configured)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	drv := &fakeDriver{devices: []Device{{ID: "back"}}}
	s := NewSource(Options{Driver: drv})
	sub := s.Frames()
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed")
	}
	if _, _, stops := drv.snapshot(); stops != 1 {
		t.Fatalf("close should stop the running device")
	}
	if err := s.Start(testCtx(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDirDriver(t *testing.T) {
	root := t.TempDir()
	writePNG := func(path string, w, h int) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		defer f.Close()
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	writePNG(filepath.Join(root, "a.png"), 6, 3)
	writePNG(filepath.Join(root, "b.png"), 5, 5)
	writePNG(filepath.Join(root, "selfie-front", "c.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := newTestSource(t, NewDirDriver(root))
	sub := s.Frames()
	if err := s.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	sizes := []image.Point{{6, 3}, {5, 5}, {6, 3}}
	for i, want := range sizes {
		_ = s.Capture(testCtx(t))
		f := recv(t, sub)
		if got := f.Image.Bounds().Size(); got != want || f.DeviceID != "default" {
			t.Fatalf("capture %d: got %v from %q, want %v", i, got, f.DeviceID, want)
		}
	}
	if err := s.SwitchDevice(testCtx(t)); err != nil {
		t.Fatalf("switch: %v", err)
	}
	_ = s.Capture(testCtx(t))
	if f := recv(t, sub); f.DeviceID != "selfie-front" {
		t.Fatalf("expected front device frame, got %q", f.DeviceID)
	}
}

func TestDirDriverMissingRoot(t *testing.T) {
	s := newTestSource(t, NewDirDriver(filepath.Join(t.TempDir(), "missing")))
	if err := s.Start(testCtx(t)); err == nil {
		t.Fatalf("expected start failure for missing directory")
	}
}
