package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/ytaudio/internal/adapter/http/ratelimit"
	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
)

const APIKeyHeader = "X-API-Key"

type AuthService interface {
	Verify(key string) error
}

// APIKeyMiddleware rejects requests without a valid X-API-Key. Clients that
// fail too often are locked out before the key is even compared.
func APIKeyMiddleware(authSvc AuthService, limiter *ratelimit.FailureLimiter, behindProxy bool, m *metrics.Metrics, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIP(r, behindProxy)

		if blocked, remaining := limiter.Blocked(clientID); blocked {
			m.Rejected("blocked")
			setRetryAfter(w, remaining)
			writeError(w, http.StatusTooManyRequests, errorResponse{
				Error:    msgTooManyFailures,
				Category: domain.CategoryUnauthorized,
			})
			return
		}

		if err := authSvc.Verify(r.Header.Get(APIKeyHeader)); err != nil {
			m.Rejected("unauthorized")
			if blocked, _ := limiter.RecordFailure(clientID); blocked {
				logger.Warn.Printf("client %s blocked after repeated auth failures", logger.SanitizeForLog(clientID))
			}
			writeError(w, http.StatusUnauthorized, errorResponse{
				Error:    msgUnauthorized,
				Category: domain.CategoryUnauthorized,
			})
			return
		}

		limiter.Reset(clientID)
		next(w, r)
	}
}

// clientIP prefers the first X-Forwarded-For hop when a trusted proxy sits
// in front, and the socket address otherwise.
func clientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
