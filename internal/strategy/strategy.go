// Package strategy provides the per schema verification strategies
// consumed by the step orchestrator. Provider specific checks (bank
// handshakes, chip cryptography, signature validation, code delivery)
// sit behind small provider interfaces; a strategy only decides which
// conditions a verified step achieves and which result codes its
// outcomes map to.
package strategy

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// Registry resolves schema codes to strategies. Externally facing
// codes may alias canonical schema codes.
type Registry struct {
	logger     log.Logger
	strategies map[auth.SchemaCode]auth.Strategy
	aliases    map[auth.SchemaCode]auth.SchemaCode
}

// NewRegistry returns a Registry serving the provided strategies.
func NewRegistry(logger log.Logger, strategies ...auth.Strategy) *Registry {
	r := Registry{
		logger:     logger,
		strategies: make(map[auth.SchemaCode]auth.Strategy, len(strategies)),
		aliases: map[auth.SchemaCode]auth.SchemaCode{
			// Legacy client facing codes kept for compatibility.
			"login":        auth.SchemaAuthorization,
			"cabinet":      auth.SchemaPortalAuthorization,
			"prolongation": auth.SchemaProlong,
		},
	}

	for _, s := range strategies {
		r.strategies[s.SchemaCode()] = s
	}

	return &r
}

// Resolve maps an externally facing code to a canonical schema code
// and its strategy.
func (r *Registry) Resolve(code auth.SchemaCode) (auth.Strategy, auth.SchemaCode, error) {
	canonical := code
	if target, ok := r.aliases[code]; ok {
		canonical = target
	}

	s, ok := r.strategies[canonical]
	if !ok {
		return nil, "", errors.Wrapf(
			auth.ErrBadRequest("unknown authentication schema"),
			"no strategy registered for code %s", code,
		)
	}

	return s, canonical, nil
}

// base carries the declarative portion of a strategy.
type base struct {
	code              auth.SchemaCode
	userRequired      bool
	completeOnSuccess bool
	codes             map[auth.Status]map[auth.Method]auth.ProcessCode
	endedChainCode    auth.ProcessCode
	attemptsHook      func(ctx context.Context, user *auth.User, headers auth.Headers)
}

func (b *base) SchemaCode() auth.SchemaCode { return b.code }
func (b *base) IsUserRequired() bool        { return b.userRequired }
func (b *base) CompleteOnSuccess() bool     { return b.completeOnSuccess }
func (b *base) EndedChainCode() auth.ProcessCode {
	return b.endedChainCode
}

func (b *base) ProcessCodes() map[auth.Status]map[auth.Method]auth.ProcessCode {
	return b.codes
}

func (b *base) OnAttemptsExceeded(ctx context.Context, user *auth.User, headers auth.Headers) {
	if b.attemptsHook != nil {
		b.attemptsHook(ctx, user, headers)
	}
}

func rejected(err error, code auth.ProcessCode, reason string) error {
	return errors.Wrap(auth.ErrAccessDenied{Reason: reason, Result: code}, err.Error())
}
