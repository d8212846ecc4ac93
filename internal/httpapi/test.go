package httpapi

import (
	"net/http"
)

// MockLimiterFactory is a stub for LimiterFactory interface.
type MockLimiterFactory struct{}

// MockLimiter is a stub for Limiter interface.
type MockLimiter struct {
	RateLimitFn func() error
}

// RateLimit mock.
func (m *MockLimiter) RateLimit(r *http.Request) error {
	if m.RateLimitFn != nil {
		return m.RateLimitFn()
	}
	return nil
}

// NewLimiter mock.
func (m *MockLimiterFactory) NewLimiter(prefix string, per Window, max int64) Limiter {
	return &MockLimiter{}
}
