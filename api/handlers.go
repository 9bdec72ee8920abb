package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filegate/filegate/pkg/clientip"
	"github.com/filegate/filegate/pkg/logger"
	"github.com/filegate/filegate/storage"
	"github.com/filegate/filegate/upload"
)

// multipartOverhead is the slack added on top of the file size ceiling
// for multipart boundaries and part headers.
const multipartOverhead = 10 << 10

// HealthCheck is a named readiness probe reported by the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the upload gateway endpoints.
type Handler struct {
	pipeline *upload.Pipeline
	store    *storage.LocalStorage
	checks   []HealthCheck
	log      *slog.Logger

	extNotAllowedMsg string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger supplies the handler logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHealthCheck registers a readiness probe with the health endpoint.
func WithHealthCheck(name string, check func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) {
		h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
	}
}

// NewHandler wires the endpoints to the pipeline and its backing store.
func NewHandler(pipeline *upload.Pipeline, store *storage.LocalStorage, opts ...HandlerOption) *Handler {
	h := &Handler{
		pipeline: pipeline,
		store:    store,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.extNotAllowedMsg = fmt.Sprintf("File type not allowed. Allowed types: %s",
		strings.Join(pipeline.Policy().AllowedExtensions(), ", "))
	return h
}

type healthResponse struct {
	Status            string            `json:"status"`
	Timestamp         time.Time         `json:"timestamp"`
	MaxFileSize       int64             `json:"max_file_size"`
	AllowedExtensions []string          `json:"allowed_extensions"`
	AllowedMIMETypes  []string          `json:"allowed_mime_types"`
	Checks            map[string]string `json:"checks,omitempty"`
}

// Health reports service status and the effective upload policy so
// clients can validate before sending bytes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:            "ok",
		Timestamp:         time.Now().UTC(),
		MaxFileSize:       h.pipeline.MaxFileSize(),
		AllowedExtensions: h.pipeline.Policy().AllowedExtensions(),
		AllowedMIMETypes:  h.pipeline.Policy().AllowedMIMETypes(),
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := c.Check(r.Context()); err != nil {
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				h.log.WarnContext(r.Context(), "health check failed",
					slog.String("check", c.Name), logger.Error(err))
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

type uploadResult struct {
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MIMEType   string    `json:"mime_type"`
	Hash       string    `json:"hash"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Upload accepts one multipart file under the "file" field, runs it
// through the validation pipeline, and returns the stored file's
// metadata. The request body is capped slightly above the file size
// ceiling so oversized transfers fail at the transport layer.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.pipeline.MaxFileSize()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, msgFileTooLarge)
			return
		}
		status, msg := h.uploadErrorStatus(upload.ErrNoFile)
		writeError(w, status, msg)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgNoFilename)
		return
	}

	sf, err := h.pipeline.Process(ctx, header.Filename, file)
	if err != nil {
		status, msg := h.uploadErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.ErrorContext(ctx, "upload failed",
				slog.String("filename", header.Filename), logger.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	writeData(w, uploadResult{
		URL:        "/api/files/" + sf.Name,
		Name:       sf.OriginalName,
		Size:       sf.Size,
		MIMEType:   sf.MIMEType,
		Hash:       sf.Hash,
		UploadedAt: sf.UploadedAt,
	})
}

// uploadErrorStatus maps a pipeline rejection to its HTTP status and
// client message. Unknown errors, scanner outages included, collapse to
// a generic 500 so no internal detail leaks.
func (h *Handler) uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, upload.ErrNoFile):
		return http.StatusBadRequest, msgNoFile
	case errors.Is(err, upload.ErrNoFilename):
		return http.StatusBadRequest, msgNoFilename
	case errors.Is(err, upload.ErrExtensionNotAllowed):
		return http.StatusBadRequest, h.extNotAllowedMsg
	case errors.Is(err, upload.ErrMIMETypeNotAllowed):
		return http.StatusBadRequest, msgMIMENotAllowed
	case errors.Is(err, upload.ErrExtensionMismatch):
		return http.StatusBadRequest, msgExtMismatch
	case errors.Is(err, upload.ErrUndetectableType):
		return http.StatusBadRequest, msgUnverifiedType
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusBadRequest, msgFileTooLarge
	case errors.Is(err, upload.ErrThreatDetected):
		return http.StatusBadRequest, msgScanFailed
	case errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest, msgInvalidPath
	default:
		return http.StatusInternalServerError, msgUploadInternal
	}
}

// ServeFile streams a stored file back to the client. The requested
// name is re-sanitized and resolved through the path guard, so names
// escaping the storage root are denied rather than served. Responses
// carry hardening headers and an attachment disposition so browsers
// never render stored content inline.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requested := chi.URLParam(r, "filename")

	name := upload.SanitizeFilename(requested)

	f, err := h.store.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		h.log.WarnContext(ctx, "retrieval denied",
			slog.String("requested", requested),
			slog.String("sanitized", name),
			slog.String("client_ip", clientip.FromRequest(r)))
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	case err != nil:
		h.log.ErrorContext(ctx, "retrieval failed",
			slog.String("requested", requested), logger.Error(err))
		writeError(w, http.StatusInternalServerError, msgServeInternal)
		return
	}
	defer func() { _ = f.Close() }()

	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("X-Frame-Options", "DENY")
	headers.Set("Content-Security-Policy", "default-src 'none'")
	headers.Set("Content-Type", "application/octet-stream")
	headers.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if _, err := io.Copy(w, f); err != nil {
		h.log.ErrorContext(ctx, "file stream interrupted",
			slog.String("name", name), logger.Error(err))
	}
}
