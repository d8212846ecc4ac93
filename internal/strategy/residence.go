package strategy

import (
	"context"

	auth "github.com/eidcore/authsteps"
)

// ChipProvider confirms a completed NFC read of a chipped identity
// document.
type ChipProvider interface {
	ConfirmChipRead(ctx context.Context, requestID, mobileUID string) (*auth.User, error)
}

// Residence is the strategy for residence permit holders. A client
// proves possession of their chipped permit with an NFC read and
// confirms liveness with a photo.
type Residence struct {
	base
	chip  ChipProvider
	photo PhotoProvider
}

// NewResidence returns the residence permit strategy.
func NewResidence(chip ChipProvider, photo PhotoProvider) *Residence {
	return &Residence{
		base: base{
			code: auth.SchemaResidencePermit,
			codes: map[auth.Status]map[auth.Method]auth.ProcessCode{
				auth.StatusProcessing: {
					auth.MethodNFC:     auth.ProcessCodeWaitingVerify,
					auth.MethodPhotoID: auth.ProcessCodeWaitingVerify,
				},
				auth.StatusSuccess: {
					auth.MethodNFC:     auth.ProcessCodeSuccess,
					auth.MethodPhotoID: auth.ProcessCodeSuccess,
				},
			},
			endedChainCode: auth.ProcessCodeDocumentNotFound,
		},
		chip:  chip,
		photo: photo,
	}
}

// Verify confirms the provider side result of one step.
func (s *Residence) Verify(ctx context.Context, in auth.VerifyInput) ([]auth.Condition, error) {
	switch in.Method {
	case auth.MethodNFC:
		if _, err := s.chip.ConfirmChipRead(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
			return nil, rejected(err, auth.ProcessCodeAuthFailed, "document chip read was not confirmed")
		}
		return []auth.Condition{auth.ConditionChipRead}, nil

	case auth.MethodPhotoID:
		if err := s.photo.ConfirmPhoto(ctx, in.RequestID, in.Headers.MobileUID); err != nil {
			return nil, rejected(err, auth.ProcessCodeAuthFailed, "photo identification was not confirmed")
		}
		return []auth.Condition{auth.ConditionPhoto}, nil
	}

	return nil, auth.ErrAccessDenied{
		Reason: "method is not supported by the residence permit schema",
		Result: auth.ProcessCodeAuthFailed,
	}
}
