// Package token manages the lifecycle of refresh tokens: issuance,
// rotation, revocation, and the scheduled expiry sweep.
package token

import (
	"time"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

const (
	defaultUserLifetime            = time.Hour * 24 * 30
	defaultPortalUserLifetime      = time.Hour * 2
	defaultEResidentLifetime       = time.Hour * 24 * 30
	defaultPartnerLifetime         = time.Hour * 24 * 365
	defaultAcquirerLifetime        = time.Hour * 24 * 365
	defaultServiceEntranceLifetime = time.Hour * 12
	defaultTemporaryLifetime       = time.Minute * 15

	// expireBatchSize bounds memory and per batch lock duration during
	// the expiry sweep.
	expireBatchSize = 1000

	tokenValueLength = 44
)

func defaultLifetimes() map[auth.SessionType]time.Duration {
	return map[auth.SessionType]time.Duration{
		auth.SessionUser:            defaultUserLifetime,
		auth.SessionPortalUser:      defaultPortalUserLifetime,
		auth.SessionEResident:       defaultEResidentLifetime,
		auth.SessionPartner:         defaultPartnerLifetime,
		auth.SessionAcquirer:        defaultAcquirerLifetime,
		auth.SessionServiceEntrance: defaultServiceEntranceLifetime,
		auth.SessionTemporary:       defaultTemporaryLifetime,
	}
}

// NewService returns a new implementation of auth.TokenService.
func NewService(options ...ConfigOption) auth.TokenService {
	s := service{
		logger:    log.NewNopLogger(),
		lifetimes: defaultLifetimes(),
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

// WithRevocationCache configures the service with a cache holding
// revoked token values until their natural expiry.
func WithRevocationCache(cache auth.RevocationCache) ConfigOption {
	return func(s *service) {
		s.cache = cache
	}
}

// WithLifetime overrides the default token lifetime of a session type.
func WithLifetime(sessionType auth.SessionType, lifetime time.Duration) ConfigOption {
	return func(s *service) {
		s.lifetimes[sessionType] = lifetime
	}
}
