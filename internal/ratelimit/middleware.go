package ratelimit

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ibn-labs/fulcrum/internal/httputil"
	"github.com/ibn-labs/fulcrum/internal/telemetry"
)

const (
	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Limits are the per-client request limits enforced by Middleware, read per
// request so config reloads apply immediately.
type Limits struct {
	Enabled bool
	Limit   int64
	Window  time.Duration
}

// Middleware returns chi middleware enforcing a per-client-IP request rate.
// Clients are keyed by remote address; X-Forwarded-For is trusted only for
// its first hop.
func Middleware(limiter *Limiter, limits func() Limits, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := limits()
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			reqID := w.Header().Get("X-Request-ID")

			client := clientIP(r)
			result, _ := limiter.Check(r.Context(), fmt.Sprintf("rpm:%s", client), cfg.Limit, cfg.Window)

			w.Header().Set(headerRateLimitRequests, strconv.FormatInt(cfg.Limit, 10))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"client", client,
					"limit", cfg.Limit,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit(client)
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d requests per %s. Retry after %s", cfg.Limit, cfg.Window, result.ResetAt.Format(time.RFC3339)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
