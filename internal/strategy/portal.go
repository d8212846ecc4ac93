package strategy

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

// OTPVerifier validates a one time code delivered out of band.
type OTPVerifier interface {
	ValidateOTP(ctx context.Context, identifier, code string) error
}

// Portal is the strategy for web cabinet authorization. The client is
// already identified and confirms the login with a one time code
// delivered to their registered contact.
type Portal struct {
	base
	otp OTPVerifier
}

// NewPortal returns the portal authorization strategy.
func NewPortal(otp OTPVerifier) *Portal {
	return &Portal{
		base: base{
			code:              auth.SchemaPortalAuthorization,
			userRequired:      true,
			completeOnSuccess: true,
			codes: map[auth.Status]map[auth.Method]auth.ProcessCode{
				auth.StatusProcessing: {
					auth.MethodOTP: auth.ProcessCodeWaitingVerify,
				},
				auth.StatusSuccess: {
					auth.MethodOTP: auth.ProcessCodeSuccess,
				},
				auth.StatusCompleted: {
					auth.MethodOTP: auth.ProcessCodeSuccess,
				},
			},
		},
		otp: otp,
	}
}

// Verify validates the submitted one time code.
func (s *Portal) Verify(ctx context.Context, in auth.VerifyInput) ([]auth.Condition, error) {
	if in.Method != auth.MethodOTP {
		return nil, auth.ErrAccessDenied{
			Reason: "method is not supported by the portal schema",
			Result: auth.ProcessCodeAuthFailed,
		}
	}

	if in.User == nil {
		return nil, auth.ErrBadRequest("user is required for portal authorization")
	}

	if err := s.otp.ValidateOTP(ctx, in.User.Identifier, in.Params["otp"]); err != nil {
		return nil, rejected(err, auth.ProcessCodeAuthFailed, "one time code was not confirmed")
	}

	return []auth.Condition{auth.ConditionOTPConfirmed}, nil
}
