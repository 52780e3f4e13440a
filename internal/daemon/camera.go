package daemon

import (
	"context"
	"fmt"
	"image"

	"lensd/internal/capture"
	"lensd/internal/vision"
	"lensd/pkg/types"
)

// Camera runs one of start, stop or switch on the capture source.
func (s *Service) Camera(ctx context.Context, action string) (types.CameraResponse, error) {
	if s.camera == nil {
		return types.CameraResponse{}, ErrNoCamera
	}
	var err error
	switch action {
	case "start":
		if err = s.camera.Start(ctx); err == nil {
			s.setRunning(true)
		}
	case "stop":
		if err = s.camera.Stop(ctx); err == nil {
			s.setRunning(false)
		}
	case "switch":
		err = s.camera.SwitchDevice(ctx)
	default:
		return types.CameraResponse{}, badRequest(fmt.Sprintf("unknown camera action %q", action))
	}
	if err != nil {
		return types.CameraResponse{}, err
	}
	resp := types.CameraResponse{Running: s.isRunning()}
	if dev, derr := s.camera.Device(ctx); derr == nil {
		resp.Device = dev.ID
	}
	return resp, nil
}

func (s *Service) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Capture takes one photo, renders its subject-focus view and detects its
// text. The photo becomes the one used by image translations with
// UseCapture and by Focus.
func (s *Service) Capture(ctx context.Context, langs []string) (types.CaptureResponse, error) {
	if s.camera == nil {
		return types.CaptureResponse{}, ErrNoCamera
	}
	if !s.isRunning() {
		return types.CaptureResponse{}, ErrCameraStopped
	}
	sub := s.camera.Frames()
	defer sub.Close()
	if err := s.camera.Capture(ctx); err != nil {
		return types.CaptureResponse{}, err
	}
	var f capture.Frame
	select {
	case fr, ok := <-sub.C():
		if !ok {
			return types.CaptureResponse{}, capture.ErrClosed
		}
		f = fr
	case <-ctx.Done():
		return types.CaptureResponse{}, ctx.Err()
	}

	s.mu.Lock()
	s.photo = &f
	s.mu.Unlock()

	b := f.Image.Bounds()
	resp := types.CaptureResponse{Seq: f.Seq, Device: f.DeviceID, Width: b.Dx(), Height: b.Dy()}
	if s.vision != nil {
		s.vision.Reset()
		s.vision.SetImage(f.Image)
		res, err := s.vision.RenderNow(ctx)
		if err != nil {
			return types.CaptureResponse{}, err
		}
		resp.Masked = res.Masked
		if res.Err != nil {
			resp.FocusError = res.Err.Error()
		}
	}
	blocks, err := s.text.Detect(ctx, f.Image, langs)
	if err != nil {
		return types.CaptureResponse{}, err
	}
	resp.Blocks = blocks
	s.log.Info().Str("event", "capture").Uint64("seq", f.Seq).Str("device", f.DeviceID).
		Bool("masked", resp.Masked).Int("blocks", len(blocks)).Send()
	return resp, nil
}

// Select moves the subject-focus selection point; nil focuses every
// subject. The render follows after the debounce window.
func (s *Service) Select(pt *types.Point) error {
	if s.vision == nil {
		return ErrNoCamera
	}
	if !s.hasPhoto() {
		return ErrNoPhoto
	}
	if pt == nil {
		s.vision.SetSelection(nil)
		return nil
	}
	if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
		return badRequest("point must be within 0..1")
	}
	s.vision.SetSelection(&vision.Point{X: pt.X, Y: pt.Y})
	return nil
}

// Focus returns the latest subject-focus render.
func (s *Service) Focus() (image.Image, error) {
	if s.vision == nil {
		return nil, ErrNoCamera
	}
	res, ok := s.vision.Latest()
	if !ok {
		return nil, ErrNoPhoto
	}
	return res.Image, nil
}

func (s *Service) hasPhoto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo != nil
}
