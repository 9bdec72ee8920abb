// Package clientip extracts the originating client address from HTTP
// requests, honoring common reverse proxy headers. Used for
// security-relevant log records on upload and retrieval.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the client IP, preferring proxy headers over the
// socket address: X-Forwarded-For (first valid entry), then X-Real-IP,
// then RemoteAddr. Invalid header values are skipped rather than
// trusted.
func FromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for entry := range strings.SplitSeq(forwarded, ",") {
			if ip := parseIP(entry); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes one address, returning "" when it
// does not parse.
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
