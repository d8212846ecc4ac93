// Package sweeper periodically expires overdue refresh tokens.
package sweeper

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	auth "github.com/eidcore/authsteps"
)

const defaultInterval = time.Minute * 10

// Sweeper runs the token expiry sweep on a fixed interval.
type Sweeper struct {
	logger   log.Logger
	tokens   auth.TokenService
	interval time.Duration
}

// New returns a new Sweeper.
func New(tokens auth.TokenService, options ...ConfigOption) *Sweeper {
	s := Sweeper{
		logger:   log.NewNopLogger(),
		tokens:   tokens,
		interval: defaultInterval,
	}

	for _, opt := range options {
		opt(&s)
	}

	return &s
}

// ConfigOption configures the sweeper.
type ConfigOption func(*Sweeper)

// WithLogger configures the sweeper with a logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(s *Sweeper) {
		s.logger = l
	}
}

// WithInterval configures the sweep interval. The default is 10 minutes.
func WithInterval(interval time.Duration) ConfigOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// Run sweeps until the context is canceled. A failed sweep is logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.tokens.CheckExpiration(ctx)
	if err != nil {
		level.Error(s.logger).Log(
			"source", "Sweeper.Run",
			"message", "token expiry sweep failed",
			"error", err,
		)
		return
	}

	if count > 0 {
		level.Info(s.logger).Log(
			"source", "Sweeper.Run",
			"message", "token expiry sweep completed",
			"count", count,
		)
	}
}
