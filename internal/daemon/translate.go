package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"lensd/internal/inference"
	"lensd/internal/prompt"
	"lensd/pkg/types"
)

func (s *Service) input(req types.TranslateRequest) (inference.Input, error) {
	in := inference.Input{
		Kind:       prompt.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		ImageRef:   req.ImageRef,
	}
	if in.Kind == "" {
		in.Kind = prompt.KindText
	}
	switch in.Kind {
	case prompt.KindText, prompt.KindVoice, prompt.KindFollowUp:
	case prompt.KindImage:
		img, err := s.requestImage(req)
		if err != nil {
			return in, err
		}
		in.Image = img
	default:
		return in, badRequest(fmt.Sprintf("unknown kind %q", req.Kind))
	}
	return in, nil
}

func (s *Service) requestImage(req types.TranslateRequest) (image.Image, error) {
	if req.UseCapture {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.photo == nil {
			return nil, ErrNoPhoto
		}
		return s.photo.Image, nil
	}
	if len(req.Image) == 0 {
		return nil, badRequest("image is required")
	}
	img, err := imaging.Decode(bytes.NewReader(req.Image), imaging.AutoOrientation(true))
	if err != nil {
		return nil, badRequest("invalid image: " + err.Error())
	}
	return img, nil
}

// Translate submits req and writes one StatusEvent per state change of the
// request as NDJSON until it completes, fails, or stops being the current
// request. Errors detected before submission are returned without writing.
func (s *Service) Translate(ctx context.Context, req types.TranslateRequest, w io.Writer, flush func()) error {
	in, err := s.input(req)
	if err != nil {
		return err
	}

	events, unsub := s.orch.Subscribe()
	defer unsub()

	var r *inference.Request
	if in.Kind == prompt.KindVoice && req.AudioPath != "" {
		r, err = s.orch.SubmitAudio(ctx, req.AudioPath, in)
	} else {
		r, err = s.orch.Submit(ctx, in)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	write := func(e inference.Event) error {
		if err := enc.Encode(eventFrom(e, s.orch.Uptime())); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}
	started := false
	// handle writes e and reports whether the stream is over.
	handle := func(e inference.Event) (bool, error) {
		mine := e.Snapshot.RequestID == r.ID
		if !started {
			// Skip events queued before this submission.
			if !mine || e.Type != inference.EventSubmitted {
				return false, nil
			}
			started = true
		}
		if err := write(e); err != nil {
			return true, err
		}
		if !mine {
			return true, nil
		}
		switch e.Type {
		case inference.EventCompleted, inference.EventFailed, inference.EventAbandoned, inference.EventDiscarded:
			return true, nil
		}
		return false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if stop, err := handle(e); stop || err != nil {
				return err
			}
		case <-r.Done():
			// The request is over. Write what is still queued, then the
			// final state if no event ended the stream.
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return nil
					}
					if stop, err := handle(e); stop || err != nil {
						return err
					}
				default:
					snap := s.orch.Snapshot()
					if !started || snap.RequestID != r.ID {
						return nil
					}
					return write(inference.Event{Type: inference.EventState, Snapshot: snap})
				}
			}
		}
	}
}
