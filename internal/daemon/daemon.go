// Package daemon composes the orchestrator, camera, vision pipeline and text
// detection into the single service the local HTTP API talks to.
package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"lensd/internal/capture"
	"lensd/internal/inference"
	"lensd/internal/session"
	"lensd/internal/textdetect"
	"lensd/internal/vision"
	"lensd/pkg/types"
)

// History lists committed records. *store.Badger satisfies it.
type History interface {
	List(ctx context.Context) ([]types.TranslationRecord, error)
}

// Options wires the collaborators. Orchestrator and Text are required;
// Camera and Vision may be nil when the daemon runs without capture, and
// History may be nil when nothing is persisted.
type Options struct {
	Orchestrator *inference.Orchestrator
	Text         *textdetect.Service
	Camera       *capture.Source
	Vision       *vision.Pipeline
	History      History
	Logger       zerolog.Logger
}

// Service implements the operations exposed by the local API.
type Service struct {
	orch   *inference.Orchestrator
	text   *textdetect.Service
	camera *capture.Source
	vision *vision.Pipeline
	hist   History
	log    zerolog.Logger

	mu      sync.Mutex
	running bool
	photo   *capture.Frame
}

// New returns a Service over opts.
func New(opts Options) *Service {
	return &Service{
		orch:   opts.Orchestrator,
		text:   opts.Text,
		camera: opts.Camera,
		vision: opts.Vision,
		hist:   opts.History,
		log:    opts.Logger.With().Str("component", "daemon").Logger(),
	}
}

func (s *Service) ListModels() []types.Model { return s.orch.Models() }

func (s *Service) Status() types.StatusResponse {
	return statusFrom(s.orch.Snapshot(), s.orch.Uptime())
}

func (s *Service) Ready() bool { return s.orch.Ready() }

// Switch loads model and makes it active, waiting for the outcome. A newer
// switch that supersedes this one makes it return context.Canceled.
func (s *Service) Switch(ctx context.Context, model string) error {
	found := false
	for _, m := range s.orch.Models() {
		if m.ID == model {
			found = true
			break
		}
	}
	if !found {
		return session.ErrModelNotFound(model)
	}
	select {
	case err := <-s.orch.SwitchModel(session.ModelID(model)):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Discard(ctx context.Context) error { return s.orch.Discard(ctx) }

func (s *Service) Thread(ctx context.Context, id string) (types.TranslationRecord, error) {
	return s.orch.Thread(ctx, id)
}

// Threads lists committed records, newest first.
func (s *Service) Threads(ctx context.Context) ([]types.TranslationRecord, error) {
	if s.hist == nil {
		return []types.TranslationRecord{}, nil
	}
	recs, err := s.hist.List(ctx)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []types.TranslationRecord{}
	}
	return recs, nil
}

// DetectText decodes an encoded image and returns its text blocks.
func (s *Service) DetectText(ctx context.Context, data []byte, langs []string) ([]types.TextBlock, error) {
	return s.text.DetectBytes(ctx, data, langs)
}

// Events streams every orchestrator state change. The returned func
// unsubscribes and must be called.
func (s *Service) Events() (<-chan types.StatusEvent, func()) {
	src, unsub := s.orch.Subscribe()
	out := make(chan types.StatusEvent, 16)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- eventFrom(e, s.orch.Uptime()):
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return out, func() {
		once.Do(func() {
			close(stop)
			unsub()
		})
	}
}

// Close stops the camera and the orchestrator.
func (s *Service) Close() error {
	var errs []error
	if s.vision != nil {
		s.vision.Reset()
	}
	if s.camera != nil {
		if err := s.camera.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.orch.Close()
	return errors.Join(errs...)
}
