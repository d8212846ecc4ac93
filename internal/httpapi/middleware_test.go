package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/test"
)

func signedToken(t *testing.T, secret []byte, refreshToken string) string {
	t.Helper()

	claims := auth.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
			Id:        "token-id",
			Issuer:    "authsteps",
		},
		Identifier:   "user.c0ffee",
		SessionType:  auth.SessionUser,
		RefreshToken: refreshToken,
		MobileUID:    "device-1",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatal("failed to sign token:", err)
	}
	return signed
}

func TestHTTPAPI_AuthMiddleware(t *testing.T) {
	secret := []byte("swordfish")

	handler := func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		return []byte(`{"foo":"bar"}`), nil
	}

	tt := []struct {
		name       string
		bearer     string
		cacheGetFn func() (string, error)
		errCode    auth.ErrCode
	}{
		{
			name:    "Missing bearer failure",
			bearer:  "",
			errCode: auth.EInvalidToken,
			cacheGetFn: func() (string, error) {
				return "", errors.New("not found")
			},
		},
		{
			name:    "Wrong signature failure",
			bearer:  "Bearer " + signedToken(t, []byte("wrong-secret"), "refresh-1"),
			errCode: auth.EInvalidToken,
			cacheGetFn: func() (string, error) {
				return "", errors.New("not found")
			},
		},
		{
			name:    "Revoked token failure",
			bearer:  "Bearer " + signedToken(t, secret, "refresh-1"),
			errCode: auth.EInvalidToken,
			cacheGetFn: func() (string, error) {
				return "user", nil
			},
		},
		{
			name:    "Successful request",
			bearer:  "Bearer " + signedToken(t, secret, "refresh-1"),
			errCode: "",
			cacheGetFn: func() (string, error) {
				return "", errors.New("not found")
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cache := &test.RevocationCache{
				GetFn: func(key string) (string, error) {
					return tc.cacheGetFn()
				},
			}

			w := httptest.NewRecorder()
			r, err := http.NewRequest("GET", "", bytes.NewBuffer([]byte("{}")))
			if err != nil {
				t.Fatal("failed to create mock request:", err)
			}
			if tc.bearer != "" {
				r.Header.Set("Authorization", tc.bearer)
			}

			h := AuthMiddleware(handler, secret, cache)
			v, err := h(w, r)

			if tc.errCode == "" {
				if err != nil {
					t.Fatal("expected nil error:", err)
				}
				b, ok := v.([]byte)
				if !ok || !bytes.Equal(b, []byte(`{"foo":"bar"}`)) {
					t.Errorf("response does not match, got '%v'", v)
				}
				return
			}

			if code := auth.ErrorCode(err); code != tc.errCode {
				t.Errorf("incorrect error code, want '%s' got '%s'", tc.errCode, code)
			}
		})
	}
}

func TestHTTPAPI_AuthMiddlewareInjectsClaims(t *testing.T) {
	secret := []byte("swordfish")

	handler := func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		if identifier := GetIdentifier(r); identifier != "user.c0ffee" {
			t.Errorf("incorrect identifier in context, got '%s'", identifier)
		}

		claims, err := GetClaims(r)
		if err != nil {
			t.Fatal("expected claims in context:", err)
		}
		if claims.RefreshToken != "refresh-1" {
			t.Errorf("incorrect refresh token in claims, got '%s'", claims.RefreshToken)
		}
		if claims.SessionType != auth.SessionUser {
			t.Errorf("incorrect session type in claims, got '%s'", claims.SessionType)
		}
		return nil, nil
	}

	w := httptest.NewRecorder()
	r, err := http.NewRequest("GET", "", nil)
	if err != nil {
		t.Fatal("failed to create mock request:", err)
	}
	r.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "refresh-1"))

	h := AuthMiddleware(handler, secret, &test.RevocationCache{
		GetFn: func(key string) (string, error) {
			if key != "revoked-token:refresh-1" {
				t.Errorf("incorrect revocation key, got '%s'", key)
			}
			return "", errors.New("not found")
		},
	})
	if _, err = h(w, r); err != nil {
		t.Fatal("expected nil error:", err)
	}
}

func TestHTTPAPI_RateLimitMiddleware(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		return nil, nil
	}

	w := httptest.NewRecorder()
	r, err := http.NewRequest("GET", "", nil)
	if err != nil {
		t.Fatal("failed to create mock request:", err)
	}

	h := RateLimitMiddleware(handler, &MockLimiter{
		RateLimitFn: func() error {
			return auth.ErrThrottle("requests are throttled, try again later")
		},
	})
	_, err = h(w, r)

	if code := auth.ErrorCode(err); code != auth.EThrottle {
		t.Errorf("incorrect error code, want '%s' got '%s'", auth.EThrottle, code)
	}
}

func TestHTTPAPI_GetIP(t *testing.T) {
	tt := []struct {
		name       string
		remoteAddr string
		forwarded  string
		ip         string
	}{
		{
			name:       "Prefers forwarded header",
			remoteAddr: "10.0.0.1:4000",
			forwarded:  "203.0.113.7, 10.0.0.2",
			ip:         "203.0.113.7",
		},
		{
			name:       "Falls back to remote address",
			remoteAddr: "10.0.0.1:4000",
			forwarded:  "",
			ip:         "10.0.0.1",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r, err := http.NewRequest("GET", "", nil)
			if err != nil {
				t.Fatal("failed to create mock request:", err)
			}
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}

			if ip := GetIP(r); ip != tc.ip {
				t.Errorf("incorrect IP, want '%s' got '%s'", tc.ip, ip)
			}
		})
	}
}
