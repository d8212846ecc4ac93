package sessionapi

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
)

// SetupHTTPHandler converts a service's public methods
// to http handlers.
func SetupHTTPHandler(svc auth.SessionAPI, router *mux.Router, logger log.Logger, lmt httpapi.LimiterFactory, secret []byte, cache auth.RevocationCache) {
	var handler httpapi.JSONAPIHandler
	{
		handler = svc.Refresh
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Session.Refresh", httpapi.PerMinute, int64(10),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "SessionAPI.Refresh", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/sessions/refresh", httpHandler).Methods("Post")
	}
	{
		handler = httpapi.AuthMiddleware(svc.Logout, secret, cache)
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Session.Logout", httpapi.PerMinute, int64(10),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "SessionAPI.Logout", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/sessions/logout", httpHandler).Methods("Post")
	}
	{
		handler = httpapi.AuthMiddleware(svc.LogoutPortal, secret, cache)
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Session.LogoutPortal", httpapi.PerMinute, int64(10),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "SessionAPI.LogoutPortal", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/sessions/portal/logout", httpHandler).Methods("Post")
	}
	{
		handler = httpapi.AuthMiddleware(svc.ServiceLogout, secret, cache)
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Session.ServiceLogout", httpapi.PerMinute, int64(10),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "SessionAPI.ServiceLogout", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/sessions/service/logout", httpHandler).Methods("Post")
	}
	{
		handler = httpapi.AuthMiddleware(svc.RevokeSessions, secret, cache)
		handler = httpapi.RateLimitMiddleware(handler, lmt.NewLimiter(
			"Session.RevokeSessions", httpapi.PerMinute, int64(5),
		))
		handler = httpapi.ErrorLoggingMiddleware(handler, "SessionAPI.RevokeSessions", logger)
		httpHandler := httpapi.ToHandlerFunc(handler, http.StatusOK)
		router.HandleFunc("/api/v1/sessions/revoke", httpHandler).Methods("Post")
	}
}
