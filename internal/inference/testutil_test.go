package inference

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lensd/internal/prompt"
	"lensd/internal/session"
	"lensd/internal/store"
	"lensd/pkg/types"
)

// script describes how the fake model answers one prompt.
type script struct {
	fragments []string
	delay     time.Duration
	err       error
	// block keeps the stream open after the fragments until canceled.
	block bool
}

// fakeBackend implements session.Backend. Prompts containing "slow" stream
// forever; "broken" fails after one fragment; "paced" and image prompts
// stream slower than their flush interval; anything else says hello.
type fakeBackend struct {
	mu        sync.Mutex
	loadDelay map[string]time.Duration
	loadErr   map[string]error
	loads     atomic.Int32
	closes    atomic.Int32

	// tokenDelay slows TokenCount so overlapping use becomes visible.
	tokenDelay time.Duration
	// overlapped is set when one conversation is used by two callers at once.
	overlapped atomic.Bool
}

func (f *fakeBackend) Load(ctx context.Context, mdl types.Model) (session.Handle, error) {
	f.loads.Add(1)
	f.mu.Lock()
	d, err := f.loadDelay[mdl.ID], f.loadErr[mdl.ID]
	f.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &fakeHandle{b: f}, nil
}

func (f *fakeBackend) NewConversation(h session.Handle, cfg session.SamplingConfig) (session.Conversation, error) {
	return &fakeConversation{b: f}, nil
}

type fakeHandle struct{ b *fakeBackend }

func (h *fakeHandle) Close() error {
	h.b.closes.Add(1)
	return nil
}

func scriptFor(prompt string) script {
	switch {
	case strings.Contains(prompt, "slow"):
		return script{fragments: []string{"s", "l", "o", "w"}, delay: 5 * time.Millisecond, block: true}
	case strings.Contains(prompt, "broken"):
		return script{fragments: []string{"par"}, err: errors.New("decoder exploded")}
	case strings.Contains(prompt, "paced"):
		return script{fragments: []string{"Hel", "lo wor", "ld"}, delay: 45 * time.Millisecond}
	case strings.Contains(prompt, "in the image"):
		return script{fragments: []string{"Ex", "it ", "this ", "way"}, delay: 25 * time.Millisecond}
	default:
		return script{fragments: []string{"Hel", "lo wor", "ld"}, delay: time.Millisecond}
	}
}

type fakeConversation struct {
	b    *fakeBackend
	busy atomic.Int32
	mu   sync.Mutex
	last time.Duration
}

func (c *fakeConversation) enter() func() {
	if c.busy.Add(1) > 1 {
		c.b.overlapped.Store(true)
	}
	return func() { c.busy.Add(-1) }
}

func (c *fakeConversation) Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) error {
	defer c.enter()()
	sc := scriptFor(prompt)
	start := time.Now()
	defer func() {
		c.mu.Lock()
		c.last = time.Since(start)
		c.mu.Unlock()
	}()
	for _, frag := range sc.fragments {
		if sc.delay > 0 {
			select {
			case <-time.After(sc.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := onFragment(frag); err != nil {
			return err
		}
	}
	if sc.err != nil {
		return sc.err
	}
	if sc.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (c *fakeConversation) TokenCount(text string) int {
	defer c.enter()()
	if c.b.tokenDelay > 0 {
		time.Sleep(c.b.tokenDelay)
	}
	return len(strings.Fields(text))
}

func (c *fakeConversation) LastGenerationDuration() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.last > 0
}

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	recs    map[string]types.TranslationRecord
	inserts int
	fail    error
}

func newMemStore() *memStore { return &memStore{recs: make(map[string]types.TranslationRecord)} }

func (s *memStore) Insert(_ context.Context, rec types.TranslationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.inserts++
	s.recs[rec.ID] = rec.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *memStore) FetchThread(_ context.Context, id string) (types.TranslationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return types.TranslationRecord{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[id]
	return ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, string) (string, error) { return f.text, f.err }

type harness struct {
	o     *Orchestrator
	reg   *session.Registry
	be    *fakeBackend
	store *memStore
}

func testModels() []types.Model {
	return []types.Model{
		{ID: "m1", Path: "/m/m1.gguf"},
		{ID: "m2", Path: "/m/m2.gguf"},
		{ID: "m3", Path: "/m/m3.gguf"},
		{ID: "v1", Path: "/m/v1.gguf", Vision: true},
	}
}

// newHarness builds an orchestrator over a registry with the fake backend.
// mutate may adjust the config before construction.
func newHarness(t *testing.T, grace time.Duration, mutate func(*Config)) *harness {
	t.Helper()
	be := &fakeBackend{loadDelay: map[string]time.Duration{}, loadErr: map[string]error{}}
	reg := session.NewRegistry(session.RegistryConfig{Models: testModels(), Backend: be})
	st := newMemStore()
	cfg := Config{Sessions: reg, Store: st, DefaultModel: "m1", GracePeriod: grace}
	if mutate != nil {
		mutate(&cfg)
	}
	o := New(cfg)
	t.Cleanup(func() {
		o.Close()
		_ = reg.Close()
	})
	return &harness{o: o, reg: reg, be: be, store: st}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.o.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func textInput(s string) Input { return Input{Kind: prompt.KindText, Text: s, SourceLang: "ja"} }

// drain returns every event already queued on ch.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for switch result")
		return nil
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
