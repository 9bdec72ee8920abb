package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/filegate/filegate/scan"
	"github.com/filegate/filegate/storage"
)

// DefaultMaxFileSize is the hard size ceiling applied when none is
// configured: 10 MiB.
const DefaultMaxFileSize int64 = 10 << 20

// Config holds pipeline configuration loaded from the environment.
type Config struct {
	Dir         string `env:"UPLOAD_DIR" envDefault:"./uploads"`      // Storage root directory.
	MaxFileSize int64  `env:"MAX_FILE_SIZE" envDefault:"10485760"`    // Hard size ceiling in bytes.
	PolicyFile  string `env:"ALLOWED_TYPES_FILE"`                     // Optional YAML allow-list; built-in default when empty.
}

// StoredFile describes a fully accepted upload. Its existence implies
// every pipeline stage passed in order.
type StoredFile struct {
	Name         string    // Generated storage name, unique, never reused.
	OriginalName string    // Client-supplied filename, informational only.
	Extension    string    // Lower-cased extension the policy validated.
	Size         int64     // Size re-measured on disk.
	MIMEType     string    // Content-sniffed MIME type.
	Hash         string    // Lowercase hex SHA-256 of the stored bytes.
	Path         string    // Absolute path inside the storage root.
	UploadedAt   time.Time // Acceptance time, UTC.
}

// Pipeline validates and stores untrusted uploads. It holds no mutable
// state across invocations and is safe for concurrent use.
type Pipeline struct {
	store   *storage.LocalStorage
	policy  *Policy
	scanner scan.Scanner
	maxSize int64
	log     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxFileSize overrides the default size ceiling.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Pipeline) {
		if bytes > 0 {
			p.maxSize = bytes
		}
	}
}

// WithLogger supplies the logger used for security-relevant events.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPipeline assembles a pipeline over the given store, policy, and
// scanner.
func NewPipeline(store *storage.LocalStorage, policy *Policy, scanner scan.Scanner, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		policy:  policy,
		scanner: scanner,
		maxSize: DefaultMaxFileSize,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxFileSize returns the effective size ceiling in bytes.
func (p *Pipeline) MaxFileSize() int64 {
	return p.maxSize
}

// Policy returns the active type policy.
func (p *Pipeline) Policy() *Policy {
	return p.policy
}

// Process runs the full validation pipeline on one upload: extension
// pre-check, storage name assignment, path-confined write, size
// re-measurement, content sniffing, type cross-validation, threat scan,
// and integrity hashing, in that order. On any failure after bytes hit
// disk, the file is removed before the error is returned; no partial
// upload ever remains observable.
func (p *Pipeline) Process(ctx context.Context, originalName string, r io.Reader) (*StoredFile, error) {
	if originalName == "" {
		return nil, ErrNoFilename
	}

	// Cheap rejection before any bytes are written. Once the file is on
	// disk, truth is re-derived from content, never from this check.
	if err := p.policy.CheckExtension(originalName); err != nil {
		return nil, err
	}

	name := NewStorageName(originalName)

	// The write never exceeds the ceiling by more than one byte; the
	// re-measure below turns that overflow into a rejection.
	limited := io.LimitReader(r, p.maxSize+1)

	path, _, err := p.store.Save(ctx, name, limited)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			p.log.WarnContext(ctx, "path traversal attempt blocked",
				slog.String("filename", originalName),
				slog.String("storage_name", name),
			)
		}
		return nil, err
	}

	// Scoped ownership of the stored file: released on every exit path
	// unless the upload is promoted to accepted.
	accepted := false
	defer func() {
		if accepted {
			return
		}
		if err := p.store.Delete(name); err != nil {
			p.log.ErrorContext(ctx, "failed to clean up rejected upload",
				slog.String("storage_name", name),
				slog.Any("error", err),
			)
		}
	}()

	size, err := p.store.Size(name)
	if err != nil {
		return nil, err
	}
	if size > p.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, p.maxSize)
	}

	mimeType, err := DetectMIMEType(path)
	if err != nil {
		return nil, err
	}

	if err := p.policy.Validate(originalName, mimeType); err != nil {
		p.log.WarnContext(ctx, "upload rejected by type policy",
			slog.String("filename", originalName),
			slog.String("sniffed_mime", mimeType),
			slog.Any("error", err),
		)
		return nil, err
	}

	verdict, err := p.scanner.Scan(ctx, path)
	if err != nil {
		return nil, errors.Join(ErrScanUnavailable, err)
	}
	if !verdict.Clean {
		p.log.ErrorContext(ctx, "malicious file detected",
			slog.String("filename", originalName),
			slog.String("storage_name", name),
			slog.Any("threats", verdict.Threats),
		)
		return nil, fmt.Errorf("%w: %v", ErrThreatDetected, verdict.Threats)
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	accepted = true

	sf := &StoredFile{
		Name:         name,
		OriginalName: originalName,
		// The policy validated the original filename's extension; the
		// generated name can lose it for dotfile inputs like ".txt".
		Extension:    normalizeExt(filepath.Ext(originalName)),
		Size:         size,
		MIMEType:     mimeType,
		Hash:         hash,
		Path:         path,
		UploadedAt:   time.Now().UTC(),
	}

	p.log.InfoContext(ctx, "file accepted",
		slog.String("storage_name", sf.Name),
		slog.Int64("size", sf.Size),
		slog.String("mime_type", sf.MIMEType),
		slog.String("hash", sf.Hash),
	)

	return sf, nil
}
