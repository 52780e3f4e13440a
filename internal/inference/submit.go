package inference

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"

	"lensd/internal/prompt"
	"lensd/internal/session"
	"lensd/pkg/types"
)

// Input is one user request.
type Input struct {
	Kind       prompt.Kind
	Text       string
	SourceLang string
	TargetLang string
	Image      image.Image
	ImageRef   string
}

func (in Input) modality() types.Modality {
	switch in.Kind {
	case prompt.KindVoice:
		return types.ModalityVoice
	case prompt.KindImage:
		return types.ModalityImage
	default:
		return types.ModalityText
	}
}

func (in Input) validate() error {
	switch in.Kind {
	case prompt.KindImage:
		if in.Image == nil || in.Image.Bounds().Empty() {
			return ErrEmptyInput
		}
	case prompt.KindText, prompt.KindVoice, prompt.KindFollowUp:
		if strings.TrimSpace(in.Text) == "" {
			return ErrEmptyInput
		}
	default:
		return fmt.Errorf("unknown input kind %q", in.Kind)
	}
	return nil
}

// Submit builds the prompt for in, cancels any still-active request, and
// starts streaming a new one. It returns immediately; progress is observed
// through Subscribe and Snapshot. Without an active session it is a no-op
// returning ErrNotReady.
//
// The request outlives ctx: ctx is only checked before anything starts.
// Requests end when superseded, discarded, or at Close.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (*Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	sess := o.active
	if sess == nil || o.crit != "" {
		return nil, ErrNotReady
	}
	prev := o.current
	if in.Kind == prompt.KindFollowUp && prev == nil {
		return nil, ErrNoThread
	}
	if prev != nil {
		prev.cancel()
	}

	srcLang := firstNonEmpty(in.SourceLang, o.cfg.SourceLang)
	dstLang := firstNonEmpty(in.TargetLang, o.cfg.TargetLang)
	now := time.Now()
	params := prompt.Params{Kind: in.Kind, SourceText: in.Text, SourceLang: srcLang, TargetLang: dstLang}

	var rec types.TranslationRecord
	if in.Kind == prompt.KindFollowUp {
		// Follow-ups extend the same thread, so the previous record is
		// carried over and will be committed with the new reply.
		rec = prev.record.Clone()
		params.SourceText = rec.SourceText
		params.SourceLang = firstNonEmpty(rec.SourceLang, srcLang)
		params.TargetLang = firstNonEmpty(rec.TargetLang, dstLang)
		params.Translation = rec.TranslatedText
		rec.Messages = append(rec.Messages, types.ChatMessage{Role: types.RoleUser, Text: in.Text, CreatedAt: now})
		params.History = rec.Messages
		rec.Messages = append(rec.Messages, types.ChatMessage{Role: types.RoleAssistant, CreatedAt: now})
	} else {
		rec = types.TranslationRecord{
			ID:         uuid.NewString(),
			SourceText: in.Text,
			SourceLang: srcLang,
			TargetLang: dstLang,
			Modality:   in.modality(),
			CreatedAt:  now,
			ImageRef:   in.ImageRef,
		}
	}
	promptText := o.prompts.Build(params)

	reqCtx, cancel := context.WithCancel(o.baseCtx)
	req := &Request{
		ID:        rec.ID,
		Kind:      in.Kind,
		ctx:       reqCtx,
		cancel:    cancel,
		streamed:  make(chan struct{}),
		done:      make(chan struct{}),
		record:    rec,
		streaming: true,
	}
	o.current = req
	o.metrics = nil
	o.err = ""
	o.publishLocked(EventSubmitted)
	o.log.Info().Str("event", "submit").Str("request", req.ID).Str("kind", string(in.Kind)).Str("model", string(sess.ID)).Send()

	interval := o.cfg.TextFlushInterval
	if in.Kind == prompt.KindImage {
		interval = o.cfg.ImageFlushInterval
	}
	go o.run(req, sess, promptText, in.Image, interval)
	return req, nil
}

// run streams one request. It is the task boundary: panics and errors are
// translated here before they reach observable state.
func (o *Orchestrator) run(req *Request, sess *session.ModelSession, promptText string, img image.Image, interval time.Duration) {
	defer close(req.done)
	streamedClosed := false
	closeStreamed := func() {
		if !streamedClosed {
			streamedClosed = true
			close(req.streamed)
		}
	}
	defer closeStreamed()
	defer func() {
		if r := recover(); r != nil {
			closeStreamed()
			o.fail(req, fmt.Errorf("generation panic: %v", r))
		}
	}()

	start := time.Now()
	buf := NewStreamBuffer(interval, start)
	stats, err := sess.Generate(req.ctx, promptText, img, func(frag string) error {
		if err := req.ctx.Err(); err != nil {
			return err
		}
		buf.Append(frag)
		if now := time.Now(); buf.Due(now) {
			if !o.flush(req, buf.Drain(now)) {
				return context.Canceled
			}
		}
		return nil
	})
	closeStreamed()

	if req.ctx.Err() != nil {
		o.abandon(req)
		return
	}
	if err != nil {
		o.flush(req, buf.Drain(time.Now()))
		o.fail(req, err)
		return
	}
	if !o.flush(req, buf.Drain(time.Now())) {
		o.abandon(req)
		return
	}

	m := computeMetrics(stats, time.Since(start))
	if !o.complete(req, m) {
		o.abandon(req)
		return
	}
	o.awaitCommit(req)
}

func computeMetrics(st session.Stats, elapsed time.Duration) Metrics {
	m := Metrics{Tokens: st.Tokens, Duration: st.Duration}
	if m.Duration <= 0 {
		m.Duration = elapsed
	}
	if m.Duration > 0 {
		tps := float64(m.Tokens) / m.Duration.Seconds()
		m.TokensPerSecond = &tps
	}
	return m
}

// flush appends text to the observable record. It reports false when req
// was canceled or superseded, in which case nothing is changed.
func (o *Orchestrator) flush(req *Request, text string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req.ctx.Err() != nil || o.current != req {
		return false
	}
	if text == "" {
		return true
	}
	if req.Kind == prompt.KindFollowUp {
		last := len(req.record.Messages) - 1
		req.record.Messages[last].Text += text
	} else {
		req.record.TranslatedText += text
	}
	o.publishLocked(EventFlush)
	return true
}

func (o *Orchestrator) complete(req *Request, m Metrics) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req.ctx.Err() != nil || o.current != req {
		return false
	}
	req.streaming = false
	o.metrics = &m
	o.publishLocked(EventCompleted)

	generationsTotal.WithLabelValues(string(req.Kind), "completed").Inc()
	tokensTotal.Add(float64(m.Tokens))
	generationDuration.WithLabelValues(string(req.Kind)).Observe(m.Duration.Seconds())
	o.log.Info().Str("event", "generation_done").Str("request", req.ID).Int("tokens", m.Tokens).Dur("dur", m.Duration).Send()
	return true
}

// fail surfaces a generation error as an assistant-role error message on the
// record. The record is not committed.
func (o *Orchestrator) fail(req *Request, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	generationsTotal.WithLabelValues(string(req.Kind), "failed").Inc()
	o.log.Error().Str("event", "generation_error").Str("request", req.ID).Err(err).Send()
	if req.ctx.Err() != nil || o.current != req {
		return
	}
	req.streaming = false
	if n := len(req.record.Messages); n > 0 && req.record.Messages[n-1].Role == types.RoleAssistant && req.record.Messages[n-1].Text == "" {
		req.record.Messages = req.record.Messages[:n-1]
	}
	req.record.Messages = append(req.record.Messages, types.ChatMessage{
		Role:      types.RoleAssistant,
		Text:      "Generation failed: " + err.Error(),
		IsError:   true,
		CreatedAt: time.Now(),
	})
	o.publishLocked(EventFailed)
}

// abandon drops a canceled request. If it is still the current one (canceled
// by a model switch rather than a newer submit), the transient record goes too.
func (o *Orchestrator) abandon(req *Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	generationsTotal.WithLabelValues(string(req.Kind), "canceled").Inc()
	o.log.Debug().Str("event", "generation_canceled").Str("request", req.ID).Send()
	if o.current == req {
		o.current = nil
		o.publishLocked(EventAbandoned)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
