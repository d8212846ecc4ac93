package sessionapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	auth "github.com/eidcore/authsteps"
)

type refreshRequest struct {
	RefreshToken    string           `json:"refresh_token"`
	SessionType     auth.SessionType `json:"session_type"`
	ProlongLifetime bool             `json:"prolong_lifetime"`
}

type revokeRequest struct {
	MobileUID      string `json:"mobile_uid"`
	UserIdentifier string `json:"user_identifier"`
	EntityID       string `json:"entity_id"`
}

func decodeRefreshRequest(r *http.Request) (*refreshRequest, error) {
	var req refreshRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		return nil, auth.ErrBadRequest("refresh token must be provided")
	}
	if req.SessionType == "" {
		req.SessionType = auth.SessionUser
	}

	return &req, nil
}

func decodeRevokeRequest(r *http.Request) (*revokeRequest, error) {
	var req revokeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	if req.MobileUID == "" && req.UserIdentifier == "" && req.EntityID == "" {
		return nil, auth.ErrBadRequest("a device, user, or entity selector must be provided")
	}

	return &req, nil
}
