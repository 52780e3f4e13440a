//go:build llama

package session

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"

	"lensd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaBackend holds global config used to initialize model instances.
type llamaBackend struct {
	ctxSize   int
	threads   int
	maxTokens int
}

// NewLlamaBackend returns the go-llama.cpp backed model runtime.
func NewLlamaBackend(ctxSize, threads, maxTokens int) Backend {
	return &llamaBackend{ctxSize: ctxSize, threads: threads, maxTokens: maxTokens}
}

type llamaHandle struct {
	model *llama.LLama
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func (b *llamaBackend) Load(ctx context.Context, mdl types.Model) (Handle, error) {
	if strings.TrimSpace(mdl.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := llama.New(mdl.Path, llama.SetContext(b.ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: m}, nil
}

func (b *llamaBackend) NewConversation(h Handle, cfg SamplingConfig) (Conversation, error) {
	lh, ok := h.(*llamaHandle)
	if !ok || lh.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	return &llamaConversation{model: lh.model, threads: b.threads, maxTokens: b.maxTokens, cfg: cfg}, nil
}

// llamaConversation runs predictions on a loaded model.
type llamaConversation struct {
	model     *llama.LLama
	threads   int
	maxTokens int
	cfg       SamplingConfig

	mu      sync.Mutex
	lastDur time.Duration
	hasDur  bool
}

func (c *llamaConversation) Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) error {
	if img != nil {
		return ErrDependencyUnavailable("llama backend does not accept image input")
	}
	var cbErr error
	c.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onFragment(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	start := time.Now()
	_, err := c.model.Predict(prompt, c.predictOptions()...)
	c.mu.Lock()
	c.lastDur, c.hasDur = time.Since(start), true
	c.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if cbErr != nil {
		return cbErr
	}
	return err
}

func (c *llamaConversation) TokenCount(text string) int {
	n, _, err := c.model.TokenizeString(text, llama.SetThreads(max(1, c.threads)))
	if err != nil {
		return len(strings.Fields(text))
	}
	return int(n)
}

func (c *llamaConversation) LastGenerationDuration() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDur, c.hasDur
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts sampling config into go-llama.cpp options.
func (c *llamaConversation) predictOptions() []llama.PredictOption {
	return []llama.PredictOption{
		llama.SetTokens(zn(c.maxTokens, 512)),
		llama.SetThreads(max(1, c.threads)),
		llama.SetTopP(zf(c.cfg.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(c.cfg.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(c.cfg.Temperature, llama.DefaultOptions.Temperature)),
	}
}
