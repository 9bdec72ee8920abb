// Package scan defines the threat-scanning contract used by the upload
// pipeline and provides its bindings: a no-op scanner, a clamd network
// binding, and a Redis-backed verdict cache.
//
// The pipeline treats a Scanner as an opaque verdict source: a file is
// either clean or unclean with a non-empty list of threat identifiers.
// Scanner failures are distinct from unclean verdicts.
package scan

import (
	"context"
	"time"
)

// Verdict is the outcome of scanning one file. It is produced per
// attempt and never persisted with the file.
type Verdict struct {
	Clean   bool     `json:"clean"`
	Threats []string `json:"threats,omitempty"`
}

// Scanner checks a file on disk for threats. Implementations may call
// out to an external process or network service and must honor the
// context deadline.
type Scanner interface {
	Scan(ctx context.Context, path string) (Verdict, error)
}

// Config holds scanner configuration loaded from the environment.
type Config struct {
	Backend      string        `env:"SCANNER_BACKEND" envDefault:"noop"`     // "noop" or "clamd".
	ClamdAddr    string        `env:"CLAMD_ADDR" envDefault:"127.0.0.1:3310"` // clamd TCP address.
	Timeout      time.Duration `env:"SCAN_TIMEOUT" envDefault:"30s"`         // Per-scan deadline.
	CacheEnabled bool          `env:"SCAN_CACHE_ENABLED" envDefault:"false"` // Cache verdicts in Redis by content digest.
	CacheTTL     time.Duration `env:"SCAN_CACHE_TTL" envDefault:"24h"`       // Cached verdict lifetime.
}

// NoopScanner reports every file clean. It is the default binding when
// no scan engine is configured, and the test double.
type NoopScanner struct{}

// Scan implements Scanner.
func (NoopScanner) Scan(_ context.Context, _ string) (Verdict, error) {
	return Verdict{Clean: true}, nil
}
