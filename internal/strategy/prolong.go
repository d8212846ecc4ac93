package strategy

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

// Prolong is the strategy for re-authorizing an expired session. A
// recently completed authorization admits the client without steps;
// otherwise a fresh photo identification is required.
type Prolong struct {
	base
	photo PhotoProvider
}

// NewProlong returns the session prolongation strategy.
func NewProlong(photo PhotoProvider) *Prolong {
	return &Prolong{
		base: base{
			code:              auth.SchemaProlong,
			userRequired:      true,
			completeOnSuccess: true,
			codes: map[auth.Status]map[auth.Method]auth.ProcessCode{
				auth.StatusProcessing: {
					auth.MethodPhotoID: auth.ProcessCodeWaitingVerify,
				},
				auth.StatusSuccess: {
					auth.MethodPhotoID: auth.ProcessCodeSuccess,
				},
				auth.StatusCompleted: {
					auth.MethodPhotoID: auth.ProcessCodeSuccess,
				},
			},
			endedChainCode: auth.ProcessCodeVerificationRequired,
		},
		photo: photo,
	}
}

// Verify confirms the fresh photo identification.
func (s *Prolong) Verify(ctx context.Context, in auth.VerifyInput) ([]auth.Condition, error) {
	if in.Method != auth.MethodPhotoID {
		return nil, auth.ErrAccessDenied{
			Reason: "method is not supported by the prolong schema",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	if err := s.photo.ConfirmPhoto(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
		return nil, rejected(err, auth.ProcessCodeVerificationRequired, "photo identification was not confirmed")
	}

	return []auth.Condition{auth.ConditionPhoto}, nil
}
