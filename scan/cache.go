package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "scan:verdict:"

// CachedScanner wraps another Scanner with a Redis verdict cache keyed
// by content digest, so repeated content skips the engine. The cache is
// best effort: any Redis failure falls through to the inner scanner.
type CachedScanner struct {
	inner  Scanner
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

// NewCachedScanner wraps inner with a verdict cache. A non-positive ttl
// defaults to 24 hours. A nil logger discards cache diagnostics.
func NewCachedScanner(inner Scanner, client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *CachedScanner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CachedScanner{inner: inner, client: client, ttl: ttl, log: log}
}

// Scan implements Scanner.
func (s *CachedScanner) Scan(ctx context.Context, path string) (Verdict, error) {
	digest, err := contentDigest(path)
	if err != nil {
		// Cannot key the cache, scan directly.
		return s.inner.Scan(ctx, path)
	}
	key := cacheKeyPrefix + digest

	if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var v Verdict
		if json.Unmarshal(data, &v) == nil {
			s.log.DebugContext(ctx, "scan verdict served from cache", slog.String("digest", digest))
			return v, nil
		}
	} else if err != redis.Nil {
		s.log.WarnContext(ctx, "verdict cache read failed", slog.Any("error", err))
	}

	verdict, err := s.inner.Scan(ctx, path)
	if err != nil {
		return verdict, err
	}

	if data, err := json.Marshal(verdict); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.log.WarnContext(ctx, "verdict cache write failed", slog.Any("error", err))
		}
	}

	return verdict, nil
}

func contentDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
