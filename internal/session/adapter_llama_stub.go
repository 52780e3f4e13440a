//go:build !llama

package session

// No-CGO stub for the llama backend, compiled when the 'llama' build tag is
// NOT set. The real backend lives in adapter_llama.go.

import (
	"context"

	"lensd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

type llamaBackend struct {
	ctxSize   int
	threads   int
	maxTokens int
}

// NewLlamaBackend returns a backend that refuses to load models because the
// llama runtime is not compiled into this binary.
func NewLlamaBackend(ctxSize, threads, maxTokens int) Backend {
	return &llamaBackend{ctxSize: ctxSize, threads: threads, maxTokens: maxTokens}
}

func (b *llamaBackend) Load(ctx context.Context, mdl types.Model) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (b *llamaBackend) NewConversation(h Handle, cfg SamplingConfig) (Conversation, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
