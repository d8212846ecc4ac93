package orchestrator

import (
	"time"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/strategy"
)

const defaultAdmissionTTL = 3 * time.Minute

// NewService returns a new implementation of auth.StepService.
func NewService(options ...ConfigOption) auth.StepService {
	s := service{
		logger:       log.NewNopLogger(),
		admissionTTL: defaultAdmissionTTL,
	}

	for _, opt := range options {
		opt(&s)
	}

	return &s
}

// ConfigOption configures the service.
type ConfigOption func(*service)

// WithLogger configures the service with a Logger.
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

// WithStrategies configures the service with a strategy registry.
func WithStrategies(registry *strategy.Registry) ConfigOption {
	return func(s *service) {
		s.strategies = registry
	}
}

// WithChecks configures the service with a CheckService for schema
// pre condition checks.
func WithChecks(checks auth.CheckService) ConfigOption {
	return func(s *service) {
		s.checks = checks
	}
}

// WithAdmissionTTL configures the window within which a completed
// process admits a client into another schema.
func WithAdmissionTTL(ttl time.Duration) ConfigOption {
	return func(s *service) {
		s.admissionTTL = ttl
	}
}
