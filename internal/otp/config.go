package otp

import (
	"time"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

const (
	defaultLength = 6
	defaultExpiry = time.Minute * 10
	defaultIssuer = "authsteps"
)

// NewService returns a new OTP validator.
func NewService(options ...ConfigOption) *Service {
	s := Service{
		logger:     log.NewNopLogger(),
		codeLength: defaultLength,
		codeExpiry: defaultExpiry,
		totpIssuer: defaultIssuer,
	}

	for _, opt := range options {
		opt(&s)
	}

	return &s
}

// ConfigOption configures the validator.
type ConfigOption func(*Service)

// WithLogger configures the validator with a logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithCache configures the validator with a keyed cache holding issued
// codes and enrolled TOTP secrets.
func WithCache(cache auth.RevocationCache) ConfigOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCodeLength configures the validator with a length for random
// code generation.
func WithCodeLength(length int) ConfigOption {
	return func(s *Service) {
		s.codeLength = length
	}
}

// WithCodeExpiry configures how long an issued code stays valid.
func WithCodeExpiry(expiry time.Duration) ConfigOption {
	return func(s *Service) {
		s.codeExpiry = expiry
	}
}

// WithIssuer configures the validator with a TOTP issuing domain.
func WithIssuer(issuer string) ConfigOption {
	return func(s *Service) {
		s.totpIssuer = issuer
	}
}
