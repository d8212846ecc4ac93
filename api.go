package authsteps

import (
	"net/http"
)

// AuthAPI provides the HTTP surface of the step orchestrator.
type AuthAPI interface {
	GetAuthMethods(w http.ResponseWriter, r *http.Request) (interface{}, error)
	SetStepMethod(w http.ResponseWriter, r *http.Request) (interface{}, error)
	VerifyAuthMethod(w http.ResponseWriter, r *http.Request) (interface{}, error)
	SendOTPCode(w http.ResponseWriter, r *http.Request) (interface{}, error)
	IssueToken(w http.ResponseWriter, r *http.Request) (interface{}, error)
}

// SessionAPI provides the HTTP surface of the token lifecycle.
type SessionAPI interface {
	Refresh(w http.ResponseWriter, r *http.Request) (interface{}, error)
	Logout(w http.ResponseWriter, r *http.Request) (interface{}, error)
	LogoutPortal(w http.ResponseWriter, r *http.Request) (interface{}, error)
	ServiceLogout(w http.ResponseWriter, r *http.Request) (interface{}, error)
	RevokeSessions(w http.ResponseWriter, r *http.Request) (interface{}, error)
}
