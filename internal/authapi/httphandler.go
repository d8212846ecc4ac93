package authapi

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
)

// SetupHTTPHandler converts a service's public methods
// to http handlers.
func SetupHTTPHandler(svc auth.AuthAPI, router *mux.Router, logger log.Logger, lmt httpapi.LimiterFactory) {
	var handler httpapi.JSONAPIHandler
	{
		handler = svc.GetAuthMethods
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Auth.GetAuthMethods", httpapi.PerMinute, int64(20),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "AuthAPI.GetAuthMethods", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/auth/methods", httpHandler).Methods("Post")
	}
	{
		handler = svc.SetStepMethod
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Auth.SetStepMethod", httpapi.PerMinute, int64(20),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "AuthAPI.SetStepMethod", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/auth/step", httpHandler).Methods("Post")
	}
	{
		handler = svc.VerifyAuthMethod
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Auth.VerifyAuthMethod", httpapi.PerMinute, int64(20),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "AuthAPI.VerifyAuthMethod", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/auth/verify", httpHandler).Methods("Post")
	}
	{
		handler = svc.SendOTPCode
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Auth.SendOTPCode", httpapi.PerMinute, int64(3),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "AuthAPI.SendOTPCode", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/auth/otp", httpHandler).Methods("Post")
	}
	{
		handler = svc.IssueToken
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Auth.IssueToken", httpapi.PerMinute, int64(10),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "AuthAPI.IssueToken", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/auth/token", httpHandler).Methods("Post")
	}
}
