package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"prelaunch/internal/ratelimit/metrics"
	"prelaunch/internal/ratelimit/models"
	"prelaunch/internal/ratelimit/store/bucket"
	"prelaunch/pkg/requestcontext"
)

type flakyStore struct {
	err   error
	calls int
	inner *bucket.InMemoryBucketStore
}

func (f *flakyStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.Allow(ctx, key, limit, window)
}

type RateLimitSuite struct {
	suite.Suite
	logger  *slog.Logger
	metrics *metrics.Metrics
	next    http.Handler
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
}

func (s *RateLimitSuite) do(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/registrations", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func (s *RateLimitSuite) TestLimitsPerIP() {
	mw := New(bucket.New(), s.logger, WithLimit(2, time.Minute), WithMetrics(s.metrics))
	h := mw.RateLimit("signup")(s.next)

	s.Equal(http.StatusCreated, s.do(h, "203.0.113.1").Code)
	rr := s.do(h, "203.0.113.1")
	s.Equal(http.StatusCreated, rr.Code)
	s.Equal("2", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = s.do(h, "203.0.113.1")
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("60", rr.Header().Get("Retry-After"))
	s.Contains(rr.Body.String(), "rate_limit_exceeded")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Denied.WithLabelValues("signup")))

	s.Equal(http.StatusCreated, s.do(h, "203.0.113.2").Code)
}

func (s *RateLimitSuite) TestDisabled() {
	mw := New(bucket.New(), s.logger, WithLimit(1, time.Minute), WithDisabled(true))
	h := mw.RateLimit("signup")(s.next)
	for range 5 {
		s.Equal(http.StatusCreated, s.do(h, "203.0.113.1").Code)
	}
}

func (s *RateLimitSuite) TestFailsOpenWithoutFallback() {
	primary := &flakyStore{err: errors.New("redis down")}
	mw := New(primary, s.logger, WithLimit(1, time.Minute), WithMetrics(s.metrics))
	h := mw.RateLimit("signup")(s.next)

	for range 3 {
		rr := s.do(h, "203.0.113.1")
		s.Equal(http.StatusCreated, rr.Code)
		s.Empty(rr.Header().Get("X-RateLimit-Limit"))
	}
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.StoreErrors))
}

func (s *RateLimitSuite) TestFallbackAfterBreakerOpens() {
	primary := &flakyStore{err: errors.New("redis down"), inner: bucket.New()}
	mw := New(primary, s.logger,
		WithLimit(1, time.Minute),
		WithFallback(bucket.New()),
		WithBreakerThresholds(2, 2),
		WithMetrics(s.metrics),
	)
	h := mw.RateLimit("signup")(s.next)

	// First failure: breaker still closed, fail open.
	rr := s.do(h, "203.0.113.1")
	s.Equal(http.StatusCreated, rr.Code)
	s.Empty(rr.Header().Get(HeaderStatus))

	// Second failure opens the breaker; the fallback counts the hit.
	rr = s.do(h, "203.0.113.1")
	s.Equal(http.StatusCreated, rr.Code)
	s.Equal("degraded", rr.Header().Get(HeaderStatus))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitOpen))

	rr = s.do(h, "203.0.113.1")
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal("degraded", rr.Header().Get(HeaderStatus))

	// Primary recovers: one success keeps the fallback, the second closes.
	primary.err = nil
	rr = s.do(h, "203.0.113.9")
	s.Equal("degraded", rr.Header().Get(HeaderStatus))
	rr = s.do(h, "203.0.113.8")
	s.Empty(rr.Header().Get(HeaderStatus))
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.CircuitOpen))
}

func (s *RateLimitSuite) TestStoreBreaker() {
	s.Run("trips after consecutive failures", func() {
		b := newStoreBreaker(2, 1)
		s.False(b.primaryFailed())
		s.True(b.primaryFailed())
		s.True(b.isTripped())
		s.False(b.primaryAnswered())
		s.False(b.isTripped())
	})

	s.Run("a success between failures resets the streak", func() {
		b := newStoreBreaker(2, 1)
		s.False(b.primaryFailed())
		s.False(b.primaryAnswered())
		s.False(b.primaryFailed())
		s.False(b.isTripped())
	})

	s.Run("a failure while recovering restarts recovery", func() {
		b := newStoreBreaker(1, 2)
		s.True(b.primaryFailed())
		s.True(b.primaryAnswered())
		s.True(b.primaryFailed())
		s.True(b.primaryAnswered())
		s.False(b.primaryAnswered())
	})
}
