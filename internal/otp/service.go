// Package otp issues and validates one time codes for the portal
// authorization flow.
package otp

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/crypto"
)

const (
	codeKeyPrefix = "otp-code:"
	totpKeyPrefix = "totp-secret:"

	// totpSecretExpiry bounds how long an enrolled secret is kept
	// before the user must re-enroll.
	totpSecretExpiry = time.Hour * 24 * 365
)

// Service issues single use codes and validates both issued codes and
// TOTP tokens of enrolled users.
type Service struct {
	logger     log.Logger
	cache      auth.RevocationCache
	codeLength int
	codeExpiry time.Duration
	totpIssuer string
}

// Generate issues a random single use code for a user. Only the hash
// of the code is stored; the plain code is handed to the delivery
// pipeline.
func (s *Service) Generate(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", auth.ErrBadRequest("identifier is required")
	}

	code, err := randomDigits(s.codeLength)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate code")
	}

	err = s.cache.Set(ctx, codeKeyPrefix+identifier, crypto.Hash(code), s.codeExpiry)
	if err != nil {
		return "", errors.Wrap(err, "failed to store code")
	}

	return code, nil
}

// EnrollTOTP provisions a TOTP secret for a user and returns the
// provisioning URL for an authenticator app.
func (s *Service) EnrollTOTP(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", auth.ErrBadRequest("identifier is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: identifier,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to generate TOTP secret")
	}

	err = s.cache.Set(ctx, totpKeyPrefix+identifier, key.Secret(), totpSecretExpiry)
	if err != nil {
		return "", errors.Wrap(err, "failed to store TOTP secret")
	}

	return key.URL(), nil
}

// ValidateOTP accepts either the single use code issued for the user
// or a TOTP token from an enrolled authenticator app. An issued code
// is consumed on first successful use.
func (s *Service) ValidateOTP(ctx context.Context, identifier, code string) error {
	if identifier == "" || code == "" {
		return auth.ErrBadRequest("identifier and code are required")
	}

	if s.isIssuedCodeValid(ctx, identifier, code) {
		// Consume the code; failure to remove it only shortens the
		// replay window to the code TTL.
		_ = s.cache.Del(ctx, codeKeyPrefix+identifier)
		return nil
	}

	if s.isTOTPValid(ctx, identifier, code) {
		return nil
	}

	return auth.ErrAccessDenied{
		Reason: "incorrect code provided",
		Result: auth.ProcessCodeAuthFailed,
	}
}

func (s *Service) isIssuedCodeValid(ctx context.Context, identifier, code string) bool {
	hash, err := s.cache.Get(ctx, codeKeyPrefix+identifier)
	if err != nil {
		return false
	}
	return hash == crypto.Hash(code)
}

func (s *Service) isTOTPValid(ctx context.Context, identifier, code string) bool {
	secret, err := s.cache.Get(ctx, totpKeyPrefix+identifier)
	if err != nil {
		return false
	}
	return totp.Validate(code, secret)
}

// randomDigits draws a code from a CSPRNG so issued codes are not
// predictable from issuance time.
func randomDigits(length int) (string, error) {
	b, err := crypto.Bytes(length)
	if err != nil {
		return "", err
	}

	for i, c := range b {
		b[i] = '0' + c%10
	}
	return string(b), nil
}
