// Package checks runs schema declared pre condition checks before a
// client is offered authentication methods.
package checks

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

type service struct {
	logger     log.Logger
	repoMngr   auth.RepositoryManager
	documents  DocumentChecker
	residency  ResidencyChecker
	minimumAge int
}

// Run executes one pre condition check. A business rejection is
// reported as access denied with the check's result code; anything
// else is an infrastructure failure.
func (s *service) Run(ctx context.Context, code auth.CheckCode, in auth.CheckInput) error {
	switch code {
	case auth.CheckMinimumAge:
		return s.checkMinimumAge(in)
	case auth.CheckDocumentPossession:
		return s.checkDocumentPossession(ctx, in)
	case auth.CheckResidencyActive:
		return s.checkResidencyActive(ctx, in)
	case auth.CheckDuplicateIdentity:
		return s.checkDuplicateIdentity(ctx, in)
	default:
		return errors.Errorf("unknown check code %s", code)
	}
}

func (s *service) checkMinimumAge(in auth.CheckInput) error {
	if in.User == nil || in.User.BirthDay == "" {
		return nil
	}

	birthDay, err := parseBirthDay(in.User.BirthDay)
	if err != nil {
		return errors.Wrapf(err, "cannot parse birth day %q", in.User.BirthDay)
	}

	if age(birthDay, time.Now()) < s.minimumAge {
		return auth.ErrAccessDenied{
			Reason: "client is below the minimum age",
			Result: auth.ProcessCodeUserTooYoung,
		}
	}

	return nil
}

func (s *service) checkDocumentPossession(ctx context.Context, in auth.CheckInput) error {
	if in.User == nil || in.User.ITN == "" {
		return nil
	}

	hasDocument, err := s.documents.HasDocument(ctx, in.User.ITN)
	if err != nil {
		return err
	}
	if !hasDocument {
		return auth.ErrAccessDenied{
			Reason: "no usable identity document",
			Result: auth.ProcessCodeDocumentNotFound,
		}
	}

	return nil
}

func (s *service) checkResidencyActive(ctx context.Context, in auth.CheckInput) error {
	if in.User == nil || in.User.ITN == "" {
		return nil
	}

	active, err := s.residency.IsResidencyActive(ctx, in.User.ITN)
	if err != nil {
		return err
	}
	if !active {
		return auth.ErrAccessDenied{
			Reason: "e-residency has been terminated",
			Result: auth.ProcessCodeResidencyTerminated,
		}
	}

	return nil
}

// checkDuplicateIdentity rejects an identity already holding an active
// session on a different device.
func (s *service) checkDuplicateIdentity(ctx context.Context, in auth.CheckInput) error {
	if in.User == nil || in.User.Identifier == "" {
		return nil
	}

	tokens, err := s.repoMngr.RefreshToken().ByUserIdentifier(ctx, in.User.Identifier)
	if err != nil {
		return err
	}

	for _, token := range tokens {
		if token.MobileUID != "" && token.MobileUID != in.Headers.MobileUID && !token.IsExpired() {
			return auth.ErrAccessDenied{
				Reason: "identity is already bound to another device",
				Result: auth.ProcessCodeDuplicateIdentity,
			}
		}
	}

	return nil
}

func parseBirthDay(value string) (time.Time, error) {
	layouts := []string{"02.01.2006", "2006-01-02"}

	var err error
	for _, layout := range layouts {
		var t time.Time
		t, err = time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, err
}

func age(birthDay, now time.Time) int {
	years := now.Year() - birthDay.Year()
	if now.YearDay() < birthDay.YearDay() {
		years--
	}
	return years
}
