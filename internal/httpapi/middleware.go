package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/token"
)

type contextKey string

const authorizationHeader = "Authorization"
const identifierContextKey contextKey = "identifier"
const claimsContextKey contextKey = "claims"

// AuthMiddleware validates a signed bearer token and rejects tokens
// whose backing refresh token has been revoked.
func AuthMiddleware(jsonHandler JSONAPIHandler, secret []byte, cache auth.RevocationCache) JSONAPIHandler {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		ctx := r.Context()

		bearer := r.Header.Get(authorizationHeader)
		if !strings.HasPrefix(bearer, "Bearer ") {
			return nil, auth.ErrInvalidToken{Reason: "bearer token expected"}
		}

		claims := auth.AccessClaims{}
		_, err := jwt.ParseWithClaims(
			strings.TrimPrefix(bearer, "Bearer "),
			&claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			},
		)
		if err != nil {
			return nil, errors.Wrap(auth.ErrInvalidToken{Reason: "token is invalid"}, err.Error())
		}

		if cache != nil {
			if _, err = cache.Get(ctx, token.RevocationKey(claims.RefreshToken)); err == nil {
				return nil, auth.ErrInvalidToken{Reason: "token has been revoked"}
			}
		}

		ctx = context.WithValue(ctx, identifierContextKey, claims.Identifier)
		ctx = context.WithValue(ctx, claimsContextKey, &claims)
		r = r.WithContext(ctx)

		return jsonHandler(w, r)
	}
}

// RateLimitMiddleware throttles requests with a Limiter.
func RateLimitMiddleware(jsonHandler JSONAPIHandler, limiter Limiter) JSONAPIHandler {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		if err := limiter.RateLimit(r); err != nil {
			return nil, err
		}
		return jsonHandler(w, r)
	}
}

// ErrorLoggingMiddleware logs any errors that are returned before
// being parsed to an HTTP response.
func ErrorLoggingMiddleware(jsonHandler JSONAPIHandler, source string, log log.Logger) JSONAPIHandler {
	return func(w http.ResponseWriter, r *http.Request) (interface{}, error) {
		response, err := jsonHandler(w, r)
		if err != nil {
			log.Log(
				"identifier", GetIdentifier(r),
				"source", source,
				"error", err.Error(),
				"stack_trace", fmt.Sprintf("%+v", err),
			)
		}
		return response, err
	}
}

// GetIdentifier retrieves the authenticated identifier from context.
func GetIdentifier(r *http.Request) string {
	identifier, _ := r.Context().Value(identifierContextKey).(string)
	return identifier
}

// GetClaims retrieves the validated access claims from context.
func GetClaims(r *http.Request) (*auth.AccessClaims, error) {
	claims, ok := r.Context().Value(claimsContextKey).(*auth.AccessClaims)
	if !ok {
		return nil, auth.ErrInvalidToken{Reason: "request is not authenticated"}
	}
	return claims, nil
}

// GetIP retrieves the client IP of a request.
func GetIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// DeviceHeaders extracts device metadata from request headers.
func DeviceHeaders(r *http.Request) auth.Headers {
	return auth.Headers{
		MobileUID:       r.Header.Get("Mobile-Uid"),
		Platform:        r.Header.Get("Platform-Type"),
		PlatformVersion: r.Header.Get("Platform-Version"),
		AppVersion:      r.Header.Get("App-Version"),
		DeviceModel:     r.Header.Get("Device-Model"),
		PushToken:       r.Header.Get("Push-Token"),
	}
}
