package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"lensd/pkg/types"
)

// translateHandler streams NDJSON status events for one translation.
func translateHandler(svc Service, base context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TranslateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		// Status and error mapping only apply until the first line is written;
		// Translate returns pre-submission errors without writing.
		sw := &startedWriter{w: w}
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		start := time.Now()
		writer := io.Writer(sw)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(sw, &loggingLineWriter{})
		}
		if lvl >= LevelInfo {
			z := logger().Info().Str("path", r.URL.Path).Str("kind", req.Kind)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("translate start")
		}
		// Shutdown cancels the stream as well as a client disconnect.
		ctx, cancel := withBase(r.Context(), base)
		defer cancel()

		status := http.StatusOK
		err := svc.Translate(ctx, req, writer, flush)
		switch {
		case err == nil:
		case r.Context().Err() != nil || base.Err() != nil:
			// Client went away or the server is shutting down.
			return
		case sw.started:
			// Headers are gone; the stream simply ends.
			logError(r, "translate stream", err)
		default:
			status = writeServiceError(w, r, err)
		}
		if lvl >= LevelInfo {
			z := logger().Info().Int("status", status).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			if err != nil {
				z = z.Err(err)
			}
			z.Msg("translate end")
		}
	}
}

// startedWriter sets the NDJSON content type on the first write.
type startedWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *startedWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		s.w.Header().Set("Content-Type", "application/x-ndjson")
	}
	return s.w.Write(p)
}
