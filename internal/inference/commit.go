package inference

import (
	"context"
	"errors"
	"time"

	"lensd/internal/store"
	"lensd/pkg/types"
)

// awaitCommit persists req once it has survived the grace period. A request
// canceled during the wait (superseded, discarded, switched away from, or the
// orchestrator closed) is never written.
func (o *Orchestrator) awaitCommit(req *Request) {
	t := time.NewTimer(o.cfg.GracePeriod)
	defer t.Stop()
	select {
	case <-t.C:
	case <-req.ctx.Done():
		commitsTotal.WithLabelValues("skipped").Inc()
		o.log.Debug().Str("event", "commit_skipped").Str("request", req.ID).Send()
		return
	}

	o.mu.Lock()
	if req.ctx.Err() != nil || o.current != req {
		o.mu.Unlock()
		commitsTotal.WithLabelValues("skipped").Inc()
		return
	}
	rec := req.record.Clone()
	o.mu.Unlock()

	err := o.store.Insert(context.WithoutCancel(req.ctx), rec)

	o.mu.Lock()
	if err != nil {
		if o.current == req {
			o.err = "save failed: " + err.Error()
			o.publishLocked(EventState)
		}
		o.mu.Unlock()
		commitsTotal.WithLabelValues("error").Inc()
		o.log.Error().Str("event", "commit_error").Str("request", req.ID).Err(err).Send()
		return
	}
	req.committed = true
	discarded := req.discarded
	if o.current == req {
		o.publishLocked(EventCommitted)
	}
	o.mu.Unlock()

	if discarded {
		// Discard raced with the insert; undo it.
		if derr := o.store.Delete(context.WithoutCancel(req.ctx), rec.ID); derr != nil {
			o.log.Warn().Str("event", "discard_delete_error").Str("request", req.ID).Err(derr).Send()
		}
		commitsTotal.WithLabelValues("discarded").Inc()
		return
	}
	commitsTotal.WithLabelValues("ok").Inc()
	o.log.Info().Str("event", "commit").Str("request", req.ID).Str("modality", string(rec.Modality)).Send()
}

// Discard drops the current translation. A request still streaming or in its
// grace period is canceled and never persisted; one already committed is
// deleted from the store. A follow-up shares its thread's id, so discarding
// one before its commit drops only the new reply and leaves the stored
// thread as it was. With nothing current it is a no-op.
func (o *Orchestrator) Discard(ctx context.Context) error {
	o.mu.Lock()
	req := o.current
	if req == nil {
		o.mu.Unlock()
		return nil
	}
	req.discarded = true
	req.cancel()
	o.current = nil
	o.metrics = nil
	committed := req.committed
	o.publishLocked(EventDiscarded)
	o.mu.Unlock()

	o.log.Info().Str("event", "discard").Str("request", req.ID).Bool("committed", committed).Send()
	if committed {
		return o.store.Delete(ctx, req.ID)
	}
	return nil
}

// Thread loads a persisted translation and its follow-up messages.
func (o *Orchestrator) Thread(ctx context.Context, id string) (types.TranslationRecord, error) {
	rec, err := o.store.FetchThread(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.log.Error().Str("event", "thread_fetch_error").Str("id", id).Err(err).Send()
	}
	return rec, err
}
