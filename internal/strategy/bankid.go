package strategy

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

// BankProvider confirms a completed bank login handshake. The OAuth
// negotiation itself happens between the client and the bank gateway;
// we only confirm the result by request ID.
type BankProvider interface {
	ConfirmAuth(ctx context.Context, requestID, mobileUID string) (*auth.User, error)
}

// PhotoProvider confirms a completed photo identification.
type PhotoProvider interface {
	ConfirmPhoto(ctx context.Context, requestID, mobileUID string) error
}

// BankID is the strategy for the primary device authorization schema.
// A client authorizes through a bank login and confirms liveness with
// a photo of their face.
type BankID struct {
	base
	bank  BankProvider
	photo PhotoProvider
}

// NewBankID returns the authorization strategy.
func NewBankID(bank BankProvider, photo PhotoProvider) *BankID {
	return &BankID{
		base: base{
			code: auth.SchemaAuthorization,
			codes: map[auth.Status]map[auth.Method]auth.ProcessCode{
				auth.StatusProcessing: {
					auth.MethodBankID:  auth.ProcessCodeWaitingVerify,
					auth.MethodPhotoID: auth.ProcessCodeWaitingVerify,
				},
				auth.StatusSuccess: {
					auth.MethodBankID:  auth.ProcessCodeSuccess,
					auth.MethodPhotoID: auth.ProcessCodeSuccess,
				},
			},
			endedChainCode: auth.ProcessCodeWaitingPeriodExpired,
		},
		bank:  bank,
		photo: photo,
	}
}

// Verify confirms the provider side result of one step.
func (s *BankID) Verify(ctx context.Context, in auth.VerifyInput) ([]auth.Condition, error) {
	switch in.Method {
	case auth.MethodBankID:
		if _, err := s.bank.ConfirmAuth(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
			return nil, rejected(err, auth.ProcessCodeAuthFailed, "bank authorization was not confirmed")
		}
		return []auth.Condition{auth.ConditionBankAuth}, nil

	case auth.MethodPhotoID:
		if err := s.photo.ConfirmPhoto(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
			return nil, rejected(err, auth.ProcessCodeAuthFailed, "photo identification was not confirmed")
		}
		return []auth.Condition{auth.ConditionPhoto}, nil
	}

	return nil, auth.ErrAccessDenied{
		Reason: "method is not supported by the authorization schema",
		Result: auth.ProcessCodeAuthFailed,
	}
}
