package daemon

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"lensd/internal/capture"
	"lensd/internal/inference"
	"lensd/internal/session"
	"lensd/internal/store"
	"lensd/internal/textdetect"
	"lensd/internal/vision"
	"lensd/pkg/types"
)

type fakeBackend struct {
	mu        sync.Mutex
	fragments []string
}

func (f *fakeBackend) setFragments(frags []string) {
	f.mu.Lock()
	f.fragments = frags
	f.mu.Unlock()
}

type fakeHandle struct{}

func (fakeHandle) Close() error { return nil }

func (f *fakeBackend) Load(ctx context.Context, mdl types.Model) (session.Handle, error) {
	return fakeHandle{}, nil
}

func (f *fakeBackend) NewConversation(h session.Handle, cfg session.SamplingConfig) (session.Conversation, error) {
	return &fakeConversation{b: f}, nil
}

type fakeConversation struct{ b *fakeBackend }

func (c *fakeConversation) Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) error {
	c.b.mu.Lock()
	frags := c.b.fragments
	c.b.mu.Unlock()
	for _, f := range frags {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFragment(f); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (c *fakeConversation) TokenCount(text string) int { return len(strings.Fields(text)) }

func (c *fakeConversation) LastGenerationDuration() (time.Duration, bool) { return 0, false }

// fakeRecognizer returns one line in the upper half of every image.
type fakeRecognizer struct{}

func (fakeRecognizer) Recognize(ctx context.Context, img image.Image, langs []string) ([]textdetect.Line, error) {
	return []textdetect.Line{{Text: "出口", Box: types.Rect{X: 0.1, Y: 0.7, Width: 0.3, Height: 0.05}, Confidence: 0.9}}, nil
}

func (fakeRecognizer) SupportedLanguages() []string { return []string{"ja", "en"} }

// subjectImage is a white frame with a dark square in the middle.
func subjectImage() image.Image {
	img := imaging.New(64, 48, color.White)
	for y := 16; y < 32; y++ {
		for x := 24; x < 40; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

type fixture struct {
	svc     *Service
	orch    *inference.Orchestrator
	backend *fakeBackend
}

func newFixture(t *testing.T, withCamera bool) *fixture {
	t.Helper()
	be := &fakeBackend{fragments: []string{"Hel", "lo wor", "ld"}}
	reg := session.NewRegistry(session.RegistryConfig{
		Models:  []types.Model{{ID: "m1", Path: "/models/m1.gguf", Vision: true}},
		Backend: be,
	})
	db, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	orch := inference.New(inference.Config{
		Sessions:          reg,
		Store:             db,
		GracePeriod:       20 * time.Millisecond,
		TextFlushInterval: time.Millisecond,
	})
	if err := orch.Start(testCtx(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	opts := Options{
		Orchestrator: orch,
		Text:         textdetect.New(textdetect.Options{Recognizer: fakeRecognizer{}}),
		History:      db,
	}
	if withCamera {
		dir := t.TempDir()
		if err := imaging.Save(subjectImage(), filepath.Join(dir, "a.png")); err != nil {
			t.Fatalf("save: %v", err)
		}
		opts.Camera = capture.NewSource(capture.Options{Driver: capture.NewDirDriver(dir)})
		opts.Vision = vision.NewPipeline(vision.Options{Debounce: 10 * time.Millisecond})
	}
	svc := New(opts)
	t.Cleanup(func() {
		_ = svc.Close()
		_ = reg.Close()
		_ = db.Close()
	})
	return &fixture{svc: svc, orch: orch, backend: be}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
