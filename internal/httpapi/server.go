package httpapi

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lensd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Switch(ctx context.Context, model string) error
	Translate(ctx context.Context, req types.TranslateRequest, w io.Writer, flush func()) error
	Discard(ctx context.Context) error
	Thread(ctx context.Context, id string) (types.TranslationRecord, error)
	Threads(ctx context.Context) ([]types.TranslationRecord, error)
	DetectText(ctx context.Context, data []byte, langs []string) ([]types.TextBlock, error)
	Camera(ctx context.Context, action string) (types.CameraResponse, error)
	Capture(ctx context.Context, langs []string) (types.CaptureResponse, error)
	Select(pt *types.Point) error
	Focus() (image.Image, error)
	Events() (<-chan types.StatusEvent, func())
}

// NewMux builds the API router over svc.
func NewMux(svc Service, opts ...Option) http.Handler {
	o := newMuxOptions(opts)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Event streams must not sit behind the compressor.
	r.Get("/events", eventsHandler(svc, o.base))
	r.Post("/translate", translateHandler(svc, o.base))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, svc.Status())
		})

		r.Post("/switch", func(w http.ResponseWriter, r *http.Request) {
			var req types.SwitchRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Model) == "" {
				writeJSONError(w, http.StatusBadRequest, "model is required")
				return
			}
			if err := svc.Switch(r.Context(), req.Model); err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, svc.Status())
		})

		r.Post("/discard", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.Discard(r.Context()); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/threads", func(w http.ResponseWriter, r *http.Request) {
			recs, err := svc.Threads(r.Context())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, types.ThreadsResponse{Threads: recs})
		})

		r.Get("/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
			rec, err := svc.Thread(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, rec)
		})

		r.Post("/detect-text", func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
			data, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "image body too large or unreadable")
				return
			}
			blocks, err := svc.DetectText(r.Context(), data, queryLangs(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, types.TextDetectResponse{Blocks: blocks})
		})

		r.Post("/camera/{action}", func(w http.ResponseWriter, r *http.Request) {
			resp, err := svc.Camera(r.Context(), chi.URLParam(r, "action"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, resp)
		})

		r.Post("/capture", func(w http.ResponseWriter, r *http.Request) {
			resp, err := svc.Capture(r.Context(), queryLangs(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, resp)
		})

		r.Post("/selection", func(w http.ResponseWriter, r *http.Request) {
			var req types.SelectionRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if err := svc.Select(req.Point); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})

		r.Get("/focus", func(w http.ResponseWriter, r *http.Request) {
			img, err := svc.Focus()
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			if err := imaging.Encode(w, img, imaging.PNG); err != nil {
				logError(r, "focus encode", err)
			}
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// decodeJSON enforces the JSON content type and body limit. It writes the
// error response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report them as plain bad requests.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryLangs reads ?lang=ja,en (or repeated lang params).
func queryLangs(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["lang"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
