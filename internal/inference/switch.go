package inference

import (
	"context"

	"lensd/internal/session"
)

// SwitchModel cancels any in-flight load and streaming generation, then
// acquires the session for id in the background. The returned channel
// receives the outcome and is closed. Only the most recent call is applied:
// an earlier load that finishes afterwards finds its token canceled, releases
// its session and reports context.Canceled. On failure the previous session
// stays active and the error is kept in the snapshot.
//
// A request that finished streaming and is waiting out its grace period is
// not affected; its commit proceeds.
func (o *Orchestrator) SwitchModel(id session.ModelID) <-chan error {
	res := make(chan error, 1)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		res <- ErrClosed
		close(res)
		return res
	}
	if o.switchCancel != nil {
		o.switchCancel()
	}
	if cur := o.current; cur != nil && cur.streaming {
		cur.cancel()
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.switchCancel = cancel
	o.loadingID = id
	o.err = ""
	o.publishLocked(EventState)
	o.mu.Unlock()

	o.log.Info().Str("event", "switch_start").Str("model", string(id)).Send()
	go o.runSwitch(ctx, cancel, id, res)
	return res
}

func (o *Orchestrator) runSwitch(ctx context.Context, cancel context.CancelFunc, id session.ModelID, res chan<- error) {
	defer close(res)
	// Wait for the load even when superseded, so a session that finishes
	// loading after losing the race can be released instead of leaking.
	sess, err := o.sessions.Acquire(context.WithoutCancel(ctx), id)

	o.mu.Lock()
	if ctx.Err() != nil {
		// Superseded by a newer SwitchModel (or Close).
		orphan := err == nil && o.loadingID != id && (o.active == nil || o.active.ID != id)
		o.mu.Unlock()
		if orphan {
			_ = o.sessions.Release(id)
		}
		modelSwitchesTotal.WithLabelValues("superseded").Inc()
		o.log.Debug().Str("event", "switch_superseded").Str("model", string(id)).Send()
		res <- context.Canceled
		return
	}
	cancel()
	o.switchCancel = nil
	o.loadingID = ""
	if err != nil {
		o.err = "model load failed: " + err.Error()
		o.publishLocked(EventState)
		o.mu.Unlock()
		modelSwitchesTotal.WithLabelValues("error").Inc()
		o.log.Error().Str("event", "switch_error").Str("model", string(id)).Err(err).Send()
		res <- err
		return
	}
	prev := o.active
	o.active = sess
	o.publishLocked(EventState)
	o.mu.Unlock()

	if prev != nil && prev.ID != sess.ID {
		if rerr := o.sessions.Release(prev.ID); rerr != nil {
			o.log.Warn().Str("event", "release_error").Str("model", string(prev.ID)).Err(rerr).Send()
		}
	}
	modelSwitchesTotal.WithLabelValues("applied").Inc()
	o.log.Info().Str("event", "switch_ready").Str("model", string(id)).Send()
	res <- nil
}
