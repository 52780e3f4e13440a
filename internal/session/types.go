package session

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"lensd/pkg/types"
)

// ModelID selects which bundled model asset to load.
type ModelID string

// ModelSession owns one loaded model handle and one conversation bound to it.
type ModelSession struct {
	ID       ModelID
	Model    types.Model
	Sampling SamplingConfig
	LoadedAt time.Time

	handle Handle
	conv   Conversation

	// genCh is size 1: single in-flight generation per session.
	genCh chan struct{}

	mu     sync.Mutex
	closed bool
}

func newModelSession(mdl types.Model, cfg SamplingConfig, h Handle, conv Conversation) *ModelSession {
	return &ModelSession{
		ID:       ModelID(mdl.ID),
		Model:    mdl,
		Sampling: cfg,
		LoadedAt: time.Now(),
		handle:   h,
		conv:     conv,
		genCh:    make(chan struct{}, 1),
	}
}

// Stats describes one finished generation.
type Stats struct {
	Tokens int
	// Duration is zero when the backend does not report one.
	Duration time.Duration
}

// Generate streams the response for prompt. It waits for any previous
// generation on the same session to return first. The token count of the
// full response is taken before the session is handed to the next caller,
// so the conversation is never used by two goroutines at once.
func (s *ModelSession) Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) (Stats, error) {
	if img != nil && !s.Sampling.Vision {
		return Stats{}, ErrVisionDisabled
	}
	select {
	case s.genCh <- struct{}{}:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	defer func() { <-s.genCh }()
	if s.isClosed() {
		return Stats{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	var full strings.Builder
	err := s.conv.Generate(ctx, prompt, img, func(frag string) error {
		full.WriteString(frag)
		return onFragment(frag)
	})
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	if full.Len() > 0 {
		st.Tokens = s.conv.TokenCount(full.String())
	}
	if d, ok := s.conv.LastGenerationDuration(); ok {
		st.Duration = d
	}
	return st, nil
}

// TokenCount returns the token count of text under this session's tokenizer.
// It waits for an in-flight generation to return.
func (s *ModelSession) TokenCount(text string) int {
	if text == "" {
		return 0
	}
	s.genCh <- struct{}{}
	defer func() { <-s.genCh }()
	if s.isClosed() {
		return 0
	}
	return s.conv.TokenCount(text)
}

func (s *ModelSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close waits for an in-flight generation to return, then frees the handle.
func (s *ModelSession) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.genCh <- struct{}{}
	defer func() { <-s.genCh }()
	if s.handle == nil {
		return nil
	}
	return s.handle.Close()
}
