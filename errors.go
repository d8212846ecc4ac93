package authsteps

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// EBadRequest represents a request missing required input.
	EBadRequest ErrCode = "bad_request"
	// EAccessDenied represents a business rejection carrying a result code.
	EAccessDenied ErrCode = "access_denied"
	// ENotFound represents a missing process or schema.
	ENotFound ErrCode = "not_found"
	// EInvalidToken represents a missing, expired, or revoked credential.
	EInvalidToken ErrCode = "invalid_token"
	// EInvalidField represents an entity field error in a repository.
	EInvalidField ErrCode = "invalid_field"
	// EThrottle represents a rate limited request.
	EThrottle ErrCode = "throttle"
	// EInternal represents an internal error outside of our domain.
	EInternal ErrCode = "internal"
)

// Error represents an error within the authsteps domain.
type Error interface {
	Error() string
	Code() ErrCode
	Message() string
}

// ErrCode is a machine readable code representing an error within the
// authsteps domain.
type ErrCode string

// Coded is an error carrying a ProcessCode to be surfaced to the caller.
type Coded interface {
	ProcessCode() ProcessCode
}

// ErrBadRequest represents a request which cannot be processed due to
// missing or invalid input.
type ErrBadRequest string

func (e ErrBadRequest) Code() ErrCode   { return EBadRequest }
func (e ErrBadRequest) Message() string { return string(e) }
func (e ErrBadRequest) Error() string   { return fmt.Sprintf("[%s] %s", e.Code(), string(e)) }

// ErrNotFound represents a missing process or schema record.
type ErrNotFound string

func (e ErrNotFound) Code() ErrCode   { return ENotFound }
func (e ErrNotFound) Message() string { return string(e) }
func (e ErrNotFound) Error() string   { return fmt.Sprintf("[%s] %s", e.Code(), string(e)) }

// ErrInvalidField represents an error related to missing or invalid
// entity fields supplied to a repository.
type ErrInvalidField string

func (e ErrInvalidField) Code() ErrCode   { return EInvalidField }
func (e ErrInvalidField) Message() string { return string(e) }
func (e ErrInvalidField) Error() string   { return fmt.Sprintf("[%s] %s", e.Code(), string(e)) }

// ErrThrottle represents a rate limited request.
type ErrThrottle string

func (e ErrThrottle) Code() ErrCode   { return EThrottle }
func (e ErrThrottle) Message() string { return string(e) }
func (e ErrThrottle) Error() string   { return fmt.Sprintf("[%s] %s", e.Code(), string(e)) }

// ErrAccessDenied represents a business rejection of a step operation.
// The attached result code is surfaced to the caller.
type ErrAccessDenied struct {
	Reason string
	Result ProcessCode
}

func (e ErrAccessDenied) Code() ErrCode            { return EAccessDenied }
func (e ErrAccessDenied) Message() string          { return e.Reason }
func (e ErrAccessDenied) ProcessCode() ProcessCode { return e.Result }
func (e ErrAccessDenied) Error() string {
	return fmt.Sprintf("[%s] %s (code %d)", e.Code(), e.Reason, e.Result)
}

// ErrInvalidToken represents a missing, expired, or revoked credential.
// A result code may be attached to ask the client to re-verify.
type ErrInvalidToken struct {
	Reason string
	Result ProcessCode
}

func (e ErrInvalidToken) Code() ErrCode            { return EInvalidToken }
func (e ErrInvalidToken) Message() string          { return e.Reason }
func (e ErrInvalidToken) ProcessCode() ProcessCode { return e.Result }
func (e ErrInvalidToken) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code(), e.Reason)
}

// DomainError returns a domain error if available.
func DomainError(err error) Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(Error); ok {
		return e
	}

	if e, ok := errors.Cause(err).(Error); ok {
		return e
	}

	var e Error
	if stderrors.As(err, &e) {
		return e
	}

	return nil
}

// ErrorCode returns the code associated with a domain error. If an
// error is not part of the authsteps domain, it returns EInternal.
func ErrorCode(err error) ErrCode {
	if err == nil {
		return ErrCode("")
	}

	e := DomainError(err)
	if e == nil {
		return EInternal
	}

	return e.Code()
}

// ErrorProcessCode extracts a result code attached to an error.
func ErrorProcessCode(err error) (ProcessCode, bool) {
	if err == nil {
		return 0, false
	}

	if e, ok := err.(Coded); ok {
		return e.ProcessCode(), true
	}

	if e, ok := errors.Cause(err).(Coded); ok {
		return e.ProcessCode(), true
	}

	var e Coded
	if stderrors.As(err, &e) {
		return e.ProcessCode(), true
	}

	return 0, false
}
