package mid

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/resilience"
)

// ClientIP returns the caller's address. With trustProxy the first
// X-Forwarded-For hop wins.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit returns middleware that rejects clients over their budget with
// 429 and sets the RateLimit-Limit/Remaining/Reset headers on every response.
func RateLimit(l *resilience.KeyedLimiter, trustProxy bool, m *metrics.Metrics, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			d := l.Allow(ip)

			reset := int(math.Ceil(d.Reset.Seconds()))
			w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))

			if !d.Allowed {
				m.Limited()
				log.Warn("rate limited", "ip", ip, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()))
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
