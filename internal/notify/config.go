package notify

import (
	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/kafka"
)

// NewService returns a new implementation of auth.NotificationService.
func NewService(client *kafka.Client, options ...ConfigOption) auth.NotificationService {
	s := service{
		logger: log.NewNopLogger(),
		writer: client.NotificationWriter,
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
