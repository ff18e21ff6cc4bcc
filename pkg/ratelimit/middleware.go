package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts the throttling key from a request. An empty key skips
// the limiter.
type KeyFunc func(r *http.Request) string

// KeyByIP keys requests by remote address, trusting RemoteAddr as already
// rewritten by a real-ip middleware.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429.
func Middleware(l *Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key != "" && !l.Allow(key) {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"too_many_requests","message":"Too Many Requests"}}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
