// Package httpapi provides common encoding and middleware for an HTTP API.
package httpapi

import (
	"encoding/json"
	"net/http"

	auth "github.com/eidcore/authsteps"
)

// JSONAPIHandler is an HTTP handler for a JSON API.
type JSONAPIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

// ToHandlerFunc adapts a JSONAPIHandler into net/http's HandlerFunc.
func ToHandlerFunc(jsonHandler JSONAPIHandler, successCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, err := jsonHandler(w, r)
		if err != nil {
			ErrorResponse(w, err)
			return
		}

		JSONResponse(w, response, successCode)
	}
}

// JSONResponse writes a response body. If a struct is provided
// and we are unable to marshal it, we return an internal error.
func JSONResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	if v == nil {
		response(w, []byte(""), statusCode)
		return
	}

	b, ok := v.([]byte)
	if ok {
		response(w, b, statusCode)
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		internalErrorResponse(w)
		return
	}

	response(w, b, statusCode)
}

// ErrorResponse writes an error response. Domain errors are returned
// to the client with their result code when one is carried. Any other
// errors resolve to a 500 response.
func ErrorResponse(w http.ResponseWriter, err error) {
	domainErr := auth.DomainError(err)
	if domainErr == nil {
		internalErrorResponse(w)
		return
	}

	var statusCode int
	switch domainErr.Code() {
	case auth.EInvalidToken:
		statusCode = http.StatusUnauthorized
	case auth.EAccessDenied:
		statusCode = http.StatusForbidden
	case auth.ENotFound:
		statusCode = http.StatusNotFound
	case auth.EThrottle:
		statusCode = http.StatusTooManyRequests
	default:
		statusCode = http.StatusBadRequest
	}

	processCode, _ := auth.ErrorProcessCode(err)
	content := errorMessage(string(domainErr.Code()), domainErr.Message(), processCode)
	response(w, content, statusCode)
}

type errorBody struct {
	Code        string           `json:"code"`
	Message     string           `json:"message"`
	ProcessCode auth.ProcessCode `json:"process_code,omitempty"`
}

func errorMessage(code, message string, processCode auth.ProcessCode) []byte {
	b, err := json.Marshal(map[string]errorBody{
		"error": {
			Code:        code,
			Message:     message,
			ProcessCode: processCode,
		},
	})
	if err != nil {
		return []byte(`{"error":{"code":"internal","message":"An internal error occurred"}}`)
	}

	return b
}

func response(w http.ResponseWriter, content []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(content)
}

func internalErrorResponse(w http.ResponseWriter) {
	content := errorMessage("internal", "An internal error occurred", 0)
	response(w, content, http.StatusInternalServerError)
}
