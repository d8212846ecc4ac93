package sessionapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
	"github.com/eidcore/authsteps/internal/test"
)

var testSecret = []byte("swordfish")

func setupTestRouter(tokenSvc *test.TokenService) *mux.Router {
	router := mux.NewRouter()
	svc := NewService(
		WithTokenService(tokenSvc),
		WithSecret(string(testSecret)),
	)

	cache := &test.RevocationCache{
		GetFn: func(key string) (string, error) {
			return "", errors.New("not found")
		},
	}

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	SetupHTTPHandler(svc, router, logger, &httpapi.MockLimiterFactory{}, testSecret, cache)
	return router
}

func signedToken(t *testing.T, sessionType auth.SessionType) string {
	t.Helper()

	claims := auth.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
			Id:        "token-id",
			Issuer:    "authsteps",
		},
		Identifier:   "user.c0ffee",
		SessionType:  sessionType,
		RefreshToken: "refresh-value",
		MobileUID:    "device-1",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatal("failed to sign token:", err)
	}
	return signed
}

func TestSessionAPI_Refresh(t *testing.T) {
	tt := []struct {
		name       string
		body       string
		statusCode int
		refreshFn  func() (*auth.RefreshToken, error)
	}{
		{
			name:       "Rotates and re-signs",
			body:       `{"refresh_token":"refresh-value","session_type":"user"}`,
			statusCode: http.StatusOK,
			refreshFn: func() (*auth.RefreshToken, error) {
				return &auth.RefreshToken{
					ID:             "token-id",
					Value:          "rotated-value",
					SessionType:    auth.SessionUser,
					UserIdentifier: "user.c0ffee",
					MobileUID:      "device-1",
				}, nil
			},
		},
		{
			name:       "Rejects missing token",
			body:       `{}`,
			statusCode: http.StatusBadRequest,
			refreshFn: func() (*auth.RefreshToken, error) {
				return &auth.RefreshToken{}, nil
			},
		},
		{
			name:       "Rejects stale value",
			body:       `{"refresh_token":"refresh-value"}`,
			statusCode: http.StatusUnauthorized,
			refreshFn: func() (*auth.RefreshToken, error) {
				return nil, auth.ErrInvalidToken{Reason: "refresh token is no longer current"}
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			tokenSvc := &test.TokenService{RefreshFn: tc.refreshFn}
			router := setupTestRouter(tokenSvc)

			req, err := http.NewRequest(
				"POST",
				"/api/v1/sessions/refresh",
				bytes.NewBufferString(tc.body),
			)
			if err != nil {
				t.Fatal("failed to create request:", err)
			}
			req.Header.Set("Mobile-Uid", "device-1")

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.statusCode {
				t.Fatal("status code does not match", cmp.Diff(rr.Code, tc.statusCode))
			}
			if tc.statusCode != http.StatusOK {
				return
			}

			var resp refreshResponse
			if err = json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal("failed to decode response:", err)
			}

			if resp.RefreshToken != "rotated-value" {
				t.Error("refresh token does not match", cmp.Diff(
					resp.RefreshToken, "rotated-value",
				))
			}

			claims := auth.AccessClaims{}
			_, err = jwt.ParseWithClaims(resp.Token, &claims, func(t *jwt.Token) (interface{}, error) {
				return testSecret, nil
			})
			if err != nil {
				t.Fatal("failed to parse signed token:", err)
			}
			if claims.RefreshToken != "rotated-value" {
				t.Error("claims refresh token does not match", cmp.Diff(
					claims.RefreshToken, "rotated-value",
				))
			}
		})
	}
}

func TestSessionAPI_Logout(t *testing.T) {
	tt := []struct {
		name       string
		path       string
		authorized bool
		statusCode int
	}{
		{
			name:       "Revokes mobile session",
			path:       "/api/v1/sessions/logout",
			authorized: true,
			statusCode: http.StatusOK,
		},
		{
			name:       "Revokes portal session",
			path:       "/api/v1/sessions/portal/logout",
			authorized: true,
			statusCode: http.StatusOK,
		},
		{
			name:       "Revokes service session",
			path:       "/api/v1/sessions/service/logout",
			authorized: true,
			statusCode: http.StatusOK,
		},
		{
			name:       "Rejects unauthenticated request",
			path:       "/api/v1/sessions/logout",
			authorized: false,
			statusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			tokenSvc := &test.TokenService{
				LogoutFn:        func() error { return nil },
				LogoutPortalFn:  func() error { return nil },
				ServiceLogoutFn: func() error { return nil },
			}
			router := setupTestRouter(tokenSvc)

			req, err := http.NewRequest("POST", tc.path, bytes.NewBufferString(`{}`))
			if err != nil {
				t.Fatal("failed to create request:", err)
			}
			if tc.authorized {
				req.Header.Set("Authorization", "Bearer "+signedToken(t, auth.SessionUser))
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.statusCode {
				t.Error("status code does not match", cmp.Diff(rr.Code, tc.statusCode))
			}
		})
	}
}

func TestSessionAPI_RevokeSessions(t *testing.T) {
	tt := []struct {
		name       string
		body       string
		statusCode int
		calls      func(svc *test.TokenService) int
	}{
		{
			name:       "Revokes by device",
			body:       `{"mobile_uid":"device-1"}`,
			statusCode: http.StatusOK,
			calls:      func(svc *test.TokenService) int { return svc.Calls.RemoveByMobileUID },
		},
		{
			name:       "Revokes by user",
			body:       `{"user_identifier":"user.c0ffee"}`,
			statusCode: http.StatusOK,
			calls:      func(svc *test.TokenService) int { return svc.Calls.RemoveByUserIdentifier },
		},
		{
			name:       "Revokes by entity",
			body:       `{"entity_id":"entity-1"}`,
			statusCode: http.StatusOK,
			calls:      func(svc *test.TokenService) int { return svc.Calls.RemoveByEntityID },
		},
		{
			name:       "Rejects empty selector",
			body:       `{}`,
			statusCode: http.StatusBadRequest,
			calls:      func(svc *test.TokenService) int { return 0 },
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			tokenSvc := &test.TokenService{
				RemoveByMobileUIDFn:      func() (int64, error) { return 2, nil },
				RemoveByUserIdentifierFn: func() (int64, error) { return 2, nil },
				RemoveByEntityIDFn:       func() (int64, error) { return 2, nil },
			}
			router := setupTestRouter(tokenSvc)

			req, err := http.NewRequest(
				"POST",
				"/api/v1/sessions/revoke",
				bytes.NewBufferString(tc.body),
			)
			if err != nil {
				t.Fatal("failed to create request:", err)
			}
			req.Header.Set("Authorization", "Bearer "+signedToken(t, auth.SessionUser))

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.statusCode {
				t.Fatal("status code does not match", cmp.Diff(rr.Code, tc.statusCode))
			}
			if tc.statusCode != http.StatusOK {
				return
			}

			if tc.calls(tokenSvc) != 1 {
				t.Error("TokenService call count mismatch", cmp.Diff(
					tc.calls(tokenSvc), 1,
				))
			}

			var resp revokeResponse
			if err = json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal("failed to decode response:", err)
			}
			if resp.Count != 2 {
				t.Error("count does not match", cmp.Diff(resp.Count, int64(2)))
			}
		})
	}
}
