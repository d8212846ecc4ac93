// Package issuer binds a verified identity to a signed access token
// backed by a fresh refresh token.
package issuer

import (
	"time"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

const (
	defaultTokenExpiry = time.Hour * 2
	defaultIssuer      = "authsteps"
)

// NewService returns a new implementation of auth.IssuanceService.
func NewService(options ...ConfigOption) auth.IssuanceService {
	s := service{
		logger:      log.NewNopLogger(),
		tokenExpiry: defaultTokenExpiry,
		issuer:      defaultIssuer,
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

// WithRepoManager configures the service with a new RepositoryManager.
func WithRepoManager(repoMngr auth.RepositoryManager) ConfigOption {
	return func(s *service) {
		s.repoMngr = repoMngr
	}
}

// WithTokenService configures the service with the refresh token
// lifecycle manager.
func WithTokenService(tokens auth.TokenService) ConfigOption {
	return func(s *service) {
		s.tokens = tokens
	}
}

// WithEvents configures the service with an audit event publisher.
func WithEvents(events auth.EventRepository) ConfigOption {
	return func(s *service) {
		s.events = events
	}
}

// WithNotifier configures the service with a notification delivery
// service.
func WithNotifier(notifier auth.NotificationService) ConfigOption {
	return func(s *service) {
		s.notifier = notifier
	}
}

// WithProfileUpdater configures the service with a profile store
// receiving verified identity attributes.
func WithProfileUpdater(profiles ProfileUpdater) ConfigOption {
	return func(s *service) {
		s.profiles = profiles
	}
}

// WithSecret configures the service with a secret value for signing
// functions.
func WithSecret(secret string) ConfigOption {
	return func(s *service) {
		s.secret = []byte(secret)
	}
}

// WithSalt configures the salt mixed into stable identifiers.
func WithSalt(salt string) ConfigOption {
	return func(s *service) {
		s.salt = salt
	}
}

// WithIssuer is the issuer identity for the JWT token.
func WithIssuer(issuer string) ConfigOption {
	return func(s *service) {
		s.issuer = issuer
	}
}

// WithTokenExpiry defines how long signed access tokens are valid for.
// The default value is 2 hours.
func WithTokenExpiry(expiresIn time.Duration) ConfigOption {
	return func(s *service) {
		s.tokenExpiry = expiresIn
	}
}
