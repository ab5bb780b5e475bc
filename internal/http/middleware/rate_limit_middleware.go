package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/observability"
)

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// LocalFixedWindowLimiter counts hits per key in fixed windows. Expired windows are evicted
// by Sweep, usually driven from RunSweeper.
type LocalFixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

type fixedWindow struct {
	start time.Time
	end   time.Time
	hits  int
}

func NewLocalFixedWindowLimiter() *LocalFixedWindowLimiter {
	return &LocalFixedWindowLimiter{windows: make(map[string]*fixedWindow), now: time.Now}
}

func (l *LocalFixedWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.end) {
		start := now.Truncate(policy.Window)
		w = &fixedWindow{start: start, end: start.Add(policy.Window)}
		l.windows[key] = w
	}
	if w.hits >= policy.Limit {
		return Decision{Allowed: false, RetryAfter: w.end.Sub(now), Remaining: 0, ResetAt: w.end}, nil
	}
	w.hits++
	return Decision{Allowed: true, Remaining: policy.Limit - w.hits, ResetAt: w.end}, nil
}

// Sweep drops every window that has ended by now and reports how many were removed.
func (l *LocalFixedWindowLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, w := range l.windows {
		if !now.Before(w.end) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

func (l *LocalFixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *LocalFixedWindowLimiter) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(l.now()); n > 0 {
				slog.Debug("rate limit windows swept", "removed", n)
			}
		}
	}
}

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	backend string
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalFixedWindowLimiter(), limit, window, FailClosed, "api", "local")
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope, backend string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if backend == "" {
		backend = "local"
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(RateLimitPolicy{Limit: limit, Window: window}),
		mode:    mode,
		scope:   scope,
		backend: backend,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := rl.limiter.Allow(r.Context(), rl.scope+":"+clientIPKey(r), rl.policy)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error", rl.backend)
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"backend", rl.backend,
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				writeRateLimitHeaders(w.Header(), rl.policy.Limit, 0, time.Now().Add(rl.policy.Window))
				w.Header().Set("Retry-After", retryAfterHeader(rl.policy.Window))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			writeRateLimitHeaders(w.Header(), rl.policy.Limit, decision.Remaining, decision.ResetAt)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny", rl.backend)
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow", rl.backend)
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPKey(r *http.Request) string {
	if ip := parseRequestIP(r); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}

// parseRequestIP reads RemoteAddr. ClientIP has already replaced it when a trusted proxy forwarded the request.
func parseRequestIP(r *http.Request) net.IP {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func retryAfterHeader(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", max(limit, 0)))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(remaining, 0)))
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}

func normalizePolicy(policy RateLimitPolicy) RateLimitPolicy {
	if policy.Limit <= 0 {
		policy.Limit = 1
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}
	return policy
}
