package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"prelaunch/internal/ratelimit/metrics"
	"prelaunch/internal/ratelimit/models"
	"prelaunch/pkg/platform/httputil"
	"prelaunch/pkg/platform/privacy"
	"prelaunch/pkg/requestcontext"
)

// BucketStore answers sliding window checks.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// HeaderStatus is set to "degraded" while the fallback store answers.
const HeaderStatus = "X-RateLimit-Status"

type Middleware struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *storeBreaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback answers checks from store while the primary is failing.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

// WithLimit sets hits allowed per window for one client IP.
func WithLimit(limit int, window time.Duration) Option {
	return func(m *Middleware) {
		m.limit = limit
		m.window = window
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithBreakerThresholds overrides the 5 failures / 3 successes defaults.
func WithBreakerThresholds(failures, successes int) Option {
	return func(m *Middleware) {
		m.breaker = newStoreBreaker(failures, successes)
	}
}

func New(primary BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: newStoreBreaker(5, 3),
		limit:   10,
		window:  time.Minute,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP within scope. Limiter failures
// let the request through.
func (m *Middleware) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded, err := m.check(ctx, models.NewIPKey(scope, ip))
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.IncrementDenied(scope)
				}
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit, m.window)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IncrementStoreErrors()
		}
		useFallback := m.breaker.primaryFailed()
		m.setCircuitGauge(useFallback)
		if useFallback && m.fallback != nil {
			result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
			return result, true, err
		}
		return nil, false, err
	}

	useFallback := m.breaker.primaryAnswered()
	m.setCircuitGauge(useFallback)
	if useFallback && m.fallback != nil {
		// Still recovering: keep counting in the fallback.
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}
	return result, false, nil
}

func (m *Middleware) setCircuitGauge(open bool) {
	if m.metrics != nil {
		m.metrics.SetCircuitOpen(open)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Muitas tentativas. Tente novamente em instantes.",
		RetryAfter: result.RetryAfter,
	})
}
