package session

import (
	"context"
	"image"
	"time"

	"lensd/pkg/types"
)

// Backend abstracts the on-device model runtime: it loads model assets and
// opens conversations on a loaded handle. Concrete implementations (e.g.
// llama.cpp) satisfy this interface.
type Backend interface {
	// Load reads a model asset into memory. It can take several seconds.
	Load(ctx context.Context, mdl types.Model) (Handle, error)
	// NewConversation opens a conversational context bound to h.
	NewConversation(h Handle, cfg SamplingConfig) (Conversation, error)
}

// Handle is a loaded model.
type Handle interface {
	// Close releases resources associated with the model.
	Close() error
}

// Conversation is one active conversational context on a loaded model.
type Conversation interface {
	// Generate streams text fragments for the prompt (and optional image)
	// through onFragment. Implementations must return when ctx is canceled
	// and stop as soon as onFragment returns an error.
	Generate(ctx context.Context, prompt string, img image.Image, onFragment func(string) error) error
	// TokenCount returns the number of model tokens in text.
	TokenCount(text string) int
	// LastGenerationDuration reports how long the previous Generate took, if known.
	LastGenerationDuration() (time.Duration, bool)
}

// SamplingConfig captures generation parameters bound to a conversation.
type SamplingConfig struct {
	TopK        int
	TopP        float32
	Temperature float32
	Vision      bool
}
