package inference

import "errors"

var (
	// ErrNotReady is returned by Submit when no model session is active yet.
	ErrNotReady = errors.New("model not ready")
	// ErrEmptyInput is returned when a request carries nothing to translate.
	ErrEmptyInput = errors.New("empty input")
	// ErrNoThread is returned by a follow-up when there is no translation to follow up on.
	ErrNoThread = errors.New("no translation to follow up on")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrNoTranscriber is returned by SubmitAudio when no transcriber is configured.
	ErrNoTranscriber = errors.New("transcription not configured")
)

// IsNotReady reports whether err means "retry once a model is loaded".
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }
