package strategy

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

// SignatureProvider validates a qualified electronic signature.
type SignatureProvider interface {
	ConfirmSignature(ctx context.Context, requestID, mobileUID string) error
}

// Signing is the strategy for qualified signature sessions. Exhausted
// attempts revoke the admission shortcut granted by a prior
// authorization, forcing a full re-authorization.
type Signing struct {
	base
	signature SignatureProvider
}

// NewSigning returns the signing strategy. The hook is invoked when a
// client exhausts their attempts and is expected to revoke prior
// admissions.
func NewSigning(signature SignatureProvider, onAttemptsExceeded func(ctx context.Context, user *auth.User, headers auth.Headers)) *Signing {
	return &Signing{
		base: base{
			code:              auth.SchemaSigning,
			userRequired:      true,
			completeOnSuccess: true,
			codes: map[auth.Status]map[auth.Method]auth.ProcessCode{
				auth.StatusProcessing: {
					auth.MethodQES: auth.ProcessCodeWaitingVerify,
				},
				auth.StatusSuccess: {
					auth.MethodQES: auth.ProcessCodeSuccess,
				},
				auth.StatusCompleted: {
					auth.MethodQES: auth.ProcessCodeSuccess,
				},
			},
			attemptsHook: onAttemptsExceeded,
		},
		signature: signature,
	}
}

// Verify validates the submitted signature.
func (s *Signing) Verify(ctx context.Context, in auth.VerifyInput) ([]auth.Condition, error) {
	if in.Method != auth.MethodQES {
		return nil, auth.ErrAccessDenied{
			Reason: "method is not supported by the signing schema",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	if err := s.signature.ConfirmSignature(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
		return nil, rejected(err, auth.ProcessCodeAuthFailed, "signature was not confirmed")
	}

	return []auth.Condition{auth.ConditionSignature}, nil
}
