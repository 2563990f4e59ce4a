package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared key for requests with no identifying header.
const UnknownClient = "unknown"

// ClientIP returns the caller identity used as the rate limit key: the
// edge-injected CF-Connecting-IP header, else the first X-Forwarded-For
// entry, else UnknownClient.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return UnknownClient
}
