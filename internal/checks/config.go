package checks

import (
	"context"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

const defaultMinimumAge = 14

// DocumentChecker reports whether the registry holds a usable identity
// document for a taxpayer number.
type DocumentChecker interface {
	HasDocument(ctx context.Context, itn string) (bool, error)
}

// ResidencyChecker reports whether an e-residency is still active.
type ResidencyChecker interface {
	IsResidencyActive(ctx context.Context, itn string) (bool, error)
}

// NewService returns a new implementation of auth.CheckService.
func NewService(options ...ConfigOption) auth.CheckService {
	s := service{
		logger:     log.NewNopLogger(),
		minimumAge: defaultMinimumAge,
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

// WithDocumentChecker configures the document possession provider.
func WithDocumentChecker(documents DocumentChecker) ConfigOption {
	return func(s *service) {
		s.documents = documents
	}
}

// WithResidencyChecker configures the residency status provider.
func WithResidencyChecker(residency ResidencyChecker) ConfigOption {
	return func(s *service) {
		s.residency = residency
	}
}

// WithMinimumAge configures the minimum client age. The default is 14.
func WithMinimumAge(age int) ConfigOption {
	return func(s *service) {
		s.minimumAge = age
	}
}
