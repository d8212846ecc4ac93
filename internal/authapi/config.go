package authapi

import (
	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
)

// NewService returns a new implementation of auth.AuthAPI.
func NewService(options ...ConfigOption) auth.AuthAPI {
	s := service{
		logger: log.NewNopLogger(),
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

// WithStepService configures the service with a step orchestrator.
func WithStepService(steps auth.StepService) ConfigOption {
	return func(s *service) {
		s.steps = steps
	}
}

// WithIssuanceService configures the service with a token issuer.
func WithIssuanceService(issuer auth.IssuanceService) ConfigOption {
	return func(s *service) {
		s.issuer = issuer
	}
}

// WithOTP configures the service with a single use code generator.
func WithOTP(otp CodeGenerator) ConfigOption {
	return func(s *service) {
		s.otp = otp
	}
}

// WithNotificationService configures the service with a delivery
// pipeline for issued codes.
func WithNotificationService(notifier auth.NotificationService) ConfigOption {
	return func(s *service) {
		s.notifier = notifier
	}
}
