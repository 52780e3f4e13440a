// Package transcribe turns a recorded audio file into text. The recognition
// engine itself is a collaborator; Service only validates input and
// normalizes the transcript.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyTranscript is returned when the engine heard nothing.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrNoAudio is returned when the recording path is empty or missing.
	ErrNoAudio = errors.New("no audio recording")
)

// Engine recognizes speech in an audio file.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, language string) (string, error)
}

// Options configures a Service.
type Options struct {
	Engine Engine
	// Language is the recognition hint; empty means auto-detect.
	Language string
	Logger   zerolog.Logger
}

// Service wraps an Engine.
type Service struct {
	engine   Engine
	language string
	log      zerolog.Logger
}

// New returns a Service. A nil engine yields the stub engine.
func New(opts Options) *Service {
	eng := opts.Engine
	if eng == nil {
		eng = StubEngine{}
	}
	return &Service{
		engine:   eng,
		language: normaliseLanguage(opts.Language),
		log:      opts.Logger.With().Str("component", "transcribe").Logger(),
	}
}

// Transcribe returns the whitespace-normalized transcript of audioPath.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", ErrNoAudio
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	start := time.Now()
	raw, err := s.engine.Transcribe(ctx, audioPath, s.language)
	if err != nil {
		s.log.Error().Str("event", "transcribe_error").Str("path", audioPath).Err(err).Send()
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return "", ErrEmptyTranscript
	}
	s.log.Debug().Str("event", "transcribe_done").Int("chars", len(text)).Dur("dur", time.Since(start)).Send()
	return text, nil
}

func normaliseLanguage(lang string) string {
	if trimmed := strings.TrimSpace(lang); trimmed != "" {
		return trimmed
	}
	return "auto"
}
