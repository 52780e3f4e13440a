package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lensd/pkg/types"
)

// Registry guarantees at most one ModelSession per ModelID. Sessions are
// created lazily on first Acquire and cached until Release or Close.
type Registry struct {
	mu       sync.Mutex
	sessions map[ModelID]*ModelSession
	closed   bool

	loads     singleflight.Group
	models    []types.Model
	backend   Backend
	sampling  SamplingConfig
	publisher EventPublisher
	log       zerolog.Logger

	loadsTotal uint64
}

// NewRegistry constructs a Registry from cfg.
func NewRegistry(cfg RegistryConfig) *Registry {
	cfg = cfg.withDefaults()
	models := make([]types.Model, len(cfg.Models))
	copy(models, cfg.Models)
	return &Registry{
		sessions:  make(map[ModelID]*ModelSession),
		models:    models,
		backend:   cfg.Backend,
		sampling:  cfg.Sampling,
		publisher: cfg.Publisher,
		log:       cfg.Logger.With().Str("component", "session.registry").Logger(),
	}
}

// Models returns a copy of the bundled assets.
func (r *Registry) Models() []types.Model {
	out := make([]types.Model, len(r.models))
	copy(out, r.models)
	return out
}

// CheckAssets reports ErrNoModelAssets when nothing can ever be loaded.
func (r *Registry) CheckAssets() error {
	if len(r.models) == 0 {
		return ErrNoModelAssets
	}
	return nil
}

// Lookup finds an asset by id.
func (r *Registry) Lookup(id ModelID) (types.Model, bool) {
	for _, mdl := range r.models {
		if ModelID(mdl.ID) == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// Cached returns the session for id if it is already loaded.
func (r *Registry) Cached(id ModelID) (*ModelSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// LoadsTotal returns how many backend loads have completed successfully.
func (r *Registry) LoadsTotal() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadsTotal
}

// Acquire returns the session for id, loading it on first use. Concurrent
// callers for the same id share a single load. If ctx is canceled the caller
// stops waiting but the shared load keeps running for the other waiters, and
// its result is still cached.
func (r *Registry) Acquire(ctx context.Context, id ModelID) (*ModelSession, error) {
	r.publisher.Publish(Event{Name: "acquire_start", ModelID: id, Fields: map[string]any{}})
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	mdl, ok := r.Lookup(id)
	if !ok {
		r.log.Info().Str("event", "acquire_model_not_found").Str("model", string(id)).Send()
		return nil, ErrModelNotFound(string(id))
	}

	ch := r.loads.DoChan(string(id), func() (any, error) {
		return r.load(context.WithoutCancel(ctx), mdl)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ModelSession), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs inside the singleflight group, so at most one load per id is in
// flight. The cache is re-checked first: a load that finished just before
// this call started must not be repeated.
func (r *Registry) load(ctx context.Context, mdl types.Model) (*ModelSession, error) {
	id := ModelID(mdl.ID)
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	if r.backend == nil {
		return nil, ErrDependencyUnavailable("model backend not configured")
	}
	start := time.Now()
	r.log.Info().Str("event", "load_start").Str("model", mdl.ID).Str("path", mdl.Path).Send()
	r.publisher.Publish(Event{Name: "load_start", ModelID: id, Fields: map[string]any{"path": mdl.Path}})

	h, err := r.backend.Load(ctx, mdl)
	if err != nil {
		r.loadFailed(id, err)
		return nil, fmt.Errorf("load %s: %w", mdl.ID, err)
	}
	cfg := r.sampling
	cfg.Vision = mdl.Vision
	conv, err := r.backend.NewConversation(h, cfg)
	if err != nil {
		_ = h.Close()
		r.loadFailed(id, err)
		return nil, fmt.Errorf("open conversation %s: %w", mdl.ID, err)
	}
	s := newModelSession(mdl, cfg, h, conv)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = s.close()
		return nil, ErrClosed
	}
	r.sessions[id] = s
	r.loadsTotal++
	r.mu.Unlock()

	dur := time.Since(start)
	r.log.Info().Str("event", "load_ready").Str("model", mdl.ID).Dur("dur", dur).Send()
	r.publisher.Publish(Event{Name: "load_ready", ModelID: id, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
	return s, nil
}

func (r *Registry) loadFailed(id ModelID, err error) {
	r.log.Error().Str("event", "load_error").Str("model", string(id)).Err(err).Send()
	r.publisher.Publish(Event{Name: "load_error", ModelID: id, Fields: map[string]any{"error": err.Error()}})
}

// Release closes and forgets the session for id. It is how a session is
// replaced when the user switches models. Releasing an unknown id is a no-op.
func (r *Registry) Release(id ModelID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.log.Info().Str("event", "release").Str("model", string(id)).Send()
	r.publisher.Publish(Event{Name: "release", ModelID: id, Fields: map[string]any{}})
	return s.close()
}

// Close releases every session. Acquire fails with ErrClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[ModelID]*ModelSession)
	r.mu.Unlock()
	var errs []error
	for _, s := range sessions {
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
