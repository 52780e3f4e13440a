package inference

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lensd/internal/prompt"
	"lensd/internal/session"
	"lensd/internal/store"
	"lensd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultGracePeriod        = 3 * time.Second
	defaultTextFlushInterval  = 30 * time.Millisecond
	defaultImageFlushInterval = 15 * time.Millisecond
	defaultTargetLang         = "en"
)

// SessionProvider hands out model sessions. *session.Registry satisfies it.
type SessionProvider interface {
	Acquire(ctx context.Context, id session.ModelID) (*session.ModelSession, error)
	Release(id session.ModelID) error
	CheckAssets() error
	Models() []types.Model
}

// Store is the persistence collaborator. *store.Badger satisfies it.
type Store interface {
	Insert(ctx context.Context, rec types.TranslationRecord) error
	Delete(ctx context.Context, id string) error
	FetchThread(ctx context.Context, id string) (types.TranslationRecord, error)
}

// Transcriber converts a recorded audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	Sessions SessionProvider
	Store    Store
	Prompts  prompt.Builder
	// Transcriber is optional; SubmitAudio fails without it.
	Transcriber Transcriber

	// DefaultModel is loaded by Start; empty means the first bundled asset.
	DefaultModel session.ModelID
	SourceLang   string
	TargetLang   string

	GracePeriod        time.Duration
	TextFlushInterval  time.Duration
	ImageFlushInterval time.Duration

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Prompts == nil {
		c.Prompts = prompt.Default
	}
	if c.Store == nil {
		c.Store = nopStore{}
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.TextFlushInterval <= 0 {
		c.TextFlushInterval = defaultTextFlushInterval
	}
	if c.ImageFlushInterval <= 0 {
		c.ImageFlushInterval = defaultImageFlushInterval
	}
	if c.TargetLang == "" {
		c.TargetLang = defaultTargetLang
	}
	return c
}

// nopStore drops records; used when no persistence is configured.
type nopStore struct{}

func (nopStore) Insert(context.Context, types.TranslationRecord) error { return nil }
func (nopStore) Delete(context.Context, string) error                 { return nil }
func (nopStore) FetchThread(context.Context, string) (types.TranslationRecord, error) {
	return types.TranslationRecord{}, store.ErrNotFound
}
