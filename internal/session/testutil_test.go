package session

import (
	"context"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lensd/pkg/types"
)

// fakeBackend is a lightweight in-memory backend used for tests.
type fakeBackend struct {
	loadDelay time.Duration
	loadErr   error
	convErr   error
	loads     atomic.Int32
	closes    atomic.Int32
	fragments []string
}

type fakeHandle struct{ b *fakeBackend }

func (h *fakeHandle) Close() error {
	h.b.closes.Add(1)
	return nil
}

func (f *fakeBackend) Load(ctx context.Context, mdl types.Model) (Handle, error) {
	f.loads.Add(1)
	if f.loadDelay > 0 {
		select {
		case <-time.After(f.loadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &fakeHandle{b: f}, nil
}

func (f *fakeBackend) NewConversation(h Handle, cfg SamplingConfig) (Conversation, error) {
	if f.convErr != nil {
		return nil, f.convErr
	}
	return &fakeConversation{fragments: f.fragments}, nil
}

type fakeConversation struct {
	mu        sync.Mutex
	fragments []string
	last      time.Duration
}

func (c *fakeConversation) Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) error {
	start := time.Now()
	defer func() {
		c.mu.Lock()
		c.last = time.Since(start)
		c.mu.Unlock()
	}()
	for _, f := range c.fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFragment(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeConversation) TokenCount(text string) int { return len(strings.Fields(text)) }

func (c *fakeConversation) LastGenerationDuration() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.last > 0
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
