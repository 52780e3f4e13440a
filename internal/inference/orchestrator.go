package inference

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lensd/internal/prompt"
	"lensd/internal/session"
	"lensd/pkg/types"
)

// Phase represents the lifecycle state of the orchestrator.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseReady    Phase = "ready"
	PhaseError    Phase = "error"
	PhaseCritical Phase = "critical"
)

// Metrics describes the last completed generation.
type Metrics struct {
	Tokens   int
	Duration time.Duration
	// TokensPerSecond is nil when the duration is unknown or zero.
	TokensPerSecond *float64
}

// Snapshot is a read-only projection of the orchestrator state.
type Snapshot struct {
	Phase     Phase
	ModelID   session.ModelID
	LoadingID session.ModelID
	Err       string
	RequestID string
	Streaming bool
	Committed bool
	// Record is a copy of the current transient or committed record.
	Record  *types.TranslationRecord
	Metrics *Metrics
}

// Translation is the observable translated text of the current record.
func (s Snapshot) Translation() string {
	if s.Record == nil {
		return ""
	}
	return s.Record.TranslatedText
}

// Request is one in-flight prompt submission.
type Request struct {
	ID   string
	Kind prompt.Kind

	ctx      context.Context
	cancel   context.CancelFunc
	streamed chan struct{}
	done     chan struct{}

	// Guarded by Orchestrator.mu.
	record    types.TranslationRecord
	streaming bool
	committed bool
	discarded bool
}

// Streamed is closed once the model stream has ended, for any reason.
func (r *Request) Streamed() <-chan struct{} { return r.streamed }

// Done is closed once the request reached a terminal state: committed,
// superseded, discarded, abandoned or failed.
func (r *Request) Done() <-chan struct{} { return r.done }

// Orchestrator owns the active model session and the single active Request.
type Orchestrator struct {
	mu      sync.Mutex
	active  *session.ModelSession
	current *Request
	metrics *Metrics
	err     string
	crit    string
	closed  bool

	loadingID    session.ModelID
	switchCancel context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc

	sessions    SessionProvider
	store       Store
	prompts     prompt.Builder
	transcriber Transcriber
	cfg         Config
	bus         *bus
	log         zerolog.Logger
	startTime   time.Time
}

// New constructs an Orchestrator. Sessions is required.
func New(cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	log := cfg.Logger.With().Str("component", "inference").Logger()
	return &Orchestrator{
		baseCtx:     ctx,
		baseCancel:  cancel,
		sessions:    cfg.Sessions,
		store:       cfg.Store,
		prompts:     cfg.Prompts,
		transcriber: cfg.Transcriber,
		cfg:         cfg,
		bus:         newBus(log),
		log:         log,
		startTime:   time.Now(),
	}
}

// Start validates that model assets exist and loads the default model. A
// missing asset list puts the orchestrator in the critical phase, from which
// it does not recover.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.sessions.CheckAssets(); err != nil {
		o.mu.Lock()
		o.crit = err.Error()
		o.publishLocked(EventState)
		o.mu.Unlock()
		o.log.Error().Str("event", "critical").Err(err).Send()
		return err
	}
	id := o.cfg.DefaultModel
	if id == "" {
		id = session.ModelID(o.sessions.Models()[0].ID)
	}
	select {
	case err := <-o.SwitchModel(id):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels all in-flight work. The orchestrator cannot be reused.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.baseCancel()
}

// Uptime reports how long the orchestrator has existed.
func (o *Orchestrator) Uptime() time.Duration { return time.Since(o.startTime) }

// Ready reports whether a session is active and Submit will be accepted.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil && o.crit == "" && !o.closed
}

// Models lists the bundled model assets.
func (o *Orchestrator) Models() []types.Model { return o.sessions.Models() }

// Snapshot returns a read-only view of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe registers for state-change events. The returned func must be
// called to unsubscribe; it closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.bus.subscribe()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{LoadingID: o.loadingID, Err: o.err}
	if o.active != nil {
		s.ModelID = o.active.ID
	}
	if o.metrics != nil {
		m := *o.metrics
		s.Metrics = &m
	}
	if req := o.current; req != nil {
		rec := req.record.Clone()
		s.Record = &rec
		s.RequestID = req.ID
		s.Streaming = req.streaming
		s.Committed = req.committed
	}
	switch {
	case o.crit != "":
		s.Phase = PhaseCritical
		s.Err = o.crit
	case o.loadingID != "":
		s.Phase = PhaseLoading
	case o.active != nil:
		s.Phase = PhaseReady
	case o.err != "":
		s.Phase = PhaseError
	default:
		s.Phase = PhaseIdle
	}
	return s
}

func (o *Orchestrator) publishLocked(t EventType) {
	o.bus.publish(Event{Type: t, Snapshot: o.snapshotLocked()})
}
