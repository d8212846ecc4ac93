package authsteps

import (
	"github.com/dgrijalva/jwt-go"
)

// AccessClaims is the payload of a signed access token. The embedded
// refresh token value ties the short lived wrapper to its revocable
// backing credential.
type AccessClaims struct {
	jwt.StandardClaims

	Identifier   string      `json:"identifier"`
	SessionType  SessionType `json:"session_type"`
	RefreshToken string      `json:"refresh_token"`
	MobileUID    string      `json:"mobile_uid,omitempty"`
}
