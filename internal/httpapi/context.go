package httpapi

import (
	"context"
)

// Option configures NewMux.
type Option func(*muxOptions)

type muxOptions struct {
	base context.Context
}

func newMuxOptions(opts []Option) muxOptions {
	o := muxOptions{base: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBaseContext ties long-lived responses to ctx: when it is canceled,
// translation streams stop and event sockets are closed. A nil ctx keeps the
// default, which is never canceled.
func WithBaseContext(ctx context.Context) Option {
	return func(o *muxOptions) {
		if ctx != nil {
			o.base = ctx
		}
	}
}

// withBase derives a context from the request context that is also canceled
// when base is done. The returned cancel func must be called when the handler
// ends.
func withBase(req, base context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
