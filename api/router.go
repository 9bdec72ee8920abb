package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filegate/filegate/pkg/clientip"
	"github.com/filegate/filegate/pkg/cors"
	"github.com/filegate/filegate/pkg/requestid"
)

// Config holds the HTTP surface configuration loaded from the environment.
type Config struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"` // CORS origin allow-list.
}

// NewRouter assembles the gateway routes with the standard middleware
// stack: request IDs, CORS, access logging, and panic recovery.
func NewRouter(h *Handler, cfg Config, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(cors.Middleware(cors.Config{AllowOrigins: cfg.AllowedOrigins}))
	r.Use(accessLog(log))
	r.Use(recoverPanics(log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/upload", h.Upload)
		r.Get("/files/{filename}", h.ServeFile)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.InfoContext(r.Context(), "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.String("client_ip", clientip.FromRequest(r)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// recoverPanics converts handler panics into the generic 500 envelope.
// The panic value never reaches the client.
func recoverPanics(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "handler panic",
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
					)
					writeError(w, http.StatusInternalServerError, msgUploadInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
