// Package sessionapi provides an HTTP API for session lifecycle management.
package sessionapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
)

type service struct {
	logger      log.Logger
	token       auth.TokenService
	secret      []byte
	issuer      string
	tokenExpiry time.Duration
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type revokeResponse struct {
	Count int64 `json:"count"`
}

// Refresh rotates the caller's refresh token and signs a fresh access
// token against the rotated value.
func (s *service) Refresh(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeRefreshRequest(r)
	if err != nil {
		return nil, err
	}

	rotated, err := s.token.Refresh(
		ctx,
		req.RefreshToken,
		req.SessionType,
		&auth.TokenOptions{ProlongLifetime: req.ProlongLifetime},
		httpapi.DeviceHeaders(r),
	)
	if err != nil {
		return nil, err
	}

	signed, err := s.sign(rotated)
	if err != nil {
		return nil, err
	}

	return &refreshResponse{
		Token:        signed,
		RefreshToken: rotated.Value,
	}, nil
}

// Logout revokes the caller's mobile session.
func (s *service) Logout(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return s.logout(r, s.token.Logout)
}

// LogoutPortal revokes the caller's web cabinet session.
func (s *service) LogoutPortal(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return s.logout(r, s.token.LogoutPortal)
}

// ServiceLogout revokes the caller's service office entrance session.
func (s *service) ServiceLogout(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return s.logout(r, s.token.ServiceLogout)
}

// RevokeSessions removes every session matching a device, user, or
// partner entity. One selector must be provided.
func (s *service) RevokeSessions(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeRevokeRequest(r)
	if err != nil {
		return nil, err
	}

	var count int64
	switch {
	case req.MobileUID != "":
		count, err = s.token.RemoveByMobileUID(ctx, req.MobileUID)
	case req.UserIdentifier != "":
		count, err = s.token.RemoveByUserIdentifier(ctx, req.UserIdentifier)
	default:
		count, err = s.token.RemoveByEntityID(ctx, req.EntityID)
	}
	if err != nil {
		return nil, err
	}

	return &revokeResponse{Count: count}, nil
}

func (s *service) logout(r *http.Request, revoke func(ctx context.Context, value string, headers auth.Headers) error) (interface{}, error) {
	ctx := r.Context()

	claims, err := httpapi.GetClaims(r)
	if err != nil {
		return nil, err
	}

	if err = revoke(ctx, claims.RefreshToken, httpapi.DeviceHeaders(r)); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *service) sign(refreshToken *auth.RefreshToken) (string, error) {
	claims := auth.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(s.tokenExpiry).Unix(),
			IssuedAt:  time.Now().Unix(),
			Id:        refreshToken.ID,
			Issuer:    s.issuer,
		},
		Identifier:   refreshToken.UserIdentifier,
		SessionType:  refreshToken.SessionType,
		RefreshToken: refreshToken.Value,
		MobileUID:    refreshToken.MobileUID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign JWT token")
	}

	return signed, nil
}
