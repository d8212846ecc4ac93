package sessionapi

import (
	"time"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

const defaultTokenExpiry = time.Hour * 2
const defaultIssuer = "authsteps"

// NewService returns a new implementation of auth.SessionAPI.
func NewService(options ...ConfigOption) auth.SessionAPI {
	s := service{
		logger:      log.NewNopLogger(),
		issuer:      defaultIssuer,
		tokenExpiry: defaultTokenExpiry,
	}

	for _, opt := range options {
		opt(&s)
	}

	return &s
}

// ConfigOption configures the service.
type ConfigOption func(*service)

// WithLogger configures the service with a logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(s *service) {
		s.logger = l
	}
}

// WithTokenService configures the service with a TokenService.
func WithTokenService(tokenSvc auth.TokenService) ConfigOption {
	return func(s *service) {
		s.token = tokenSvc
	}
}

// WithSecret configures the service with a JWT signing secret.
func WithSecret(secret string) ConfigOption {
	return func(s *service) {
		s.secret = []byte(secret)
	}
}

// WithIssuer configures the service with a JWT issuer name.
func WithIssuer(issuer string) ConfigOption {
	return func(s *service) {
		s.issuer = issuer
	}
}

// WithTokenExpiry configures the service with an access token lifetime.
func WithTokenExpiry(expiry time.Duration) ConfigOption {
	return func(s *service) {
		s.tokenExpiry = expiry
	}
}
