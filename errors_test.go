package authsteps

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestErrors_RetrieveDomainErrorCode(t *testing.T) {
	tt := []struct {
		name string
		code ErrCode
		err  error
	}{
		{
			name: "Typed error",
			code: EAccessDenied,
			err:  ErrAccessDenied{Reason: "attempts exceeded", Result: ProcessCodeAttemptsExceeded},
		},
		{
			name: "stdlib error",
			code: EInternal,
			err:  fmt.Errorf("whoops"),
		},
		{
			name: "Wrapped error",
			code: EBadRequest,
			err:  fmt.Errorf("whoops: %w", ErrBadRequest("bad request")),
		},
		{
			name: "Multi layered error",
			code: EInvalidToken,
			err: fmt.Errorf("whoops: %w",
				fmt.Errorf("wrapped: %w", ErrInvalidToken{Reason: "bad token"}),
			),
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			code := ErrorCode(tc.err)
			if code != tc.code {
				t.Error("code does not match", cmp.Diff(code, tc.code))
			}
		})
	}
}

func TestErrors_RetrieveProcessCode(t *testing.T) {
	tt := []struct {
		name    string
		err     error
		code    ProcessCode
		isCoded bool
	}{
		{
			name:    "Access denied error",
			err:     ErrAccessDenied{Reason: "waiting period expired", Result: ProcessCodeWaitingPeriodExpired},
			code:    ProcessCodeWaitingPeriodExpired,
			isCoded: true,
		},
		{
			name:    "Wrapped token error",
			err:     fmt.Errorf("whoops: %w", ErrInvalidToken{Reason: "expired", Result: ProcessCodeVerificationRequired}),
			code:    ProcessCodeVerificationRequired,
			isCoded: true,
		},
		{
			name:    "Uncoded error",
			err:     ErrBadRequest("missing user"),
			isCoded: false,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			code, ok := ErrorProcessCode(tc.err)
			if ok != tc.isCoded {
				t.Fatal("coded flag does not match", ok, tc.isCoded)
			}
			if code != tc.code {
				t.Error("code does not match", cmp.Diff(code, tc.code))
			}
		})
	}
}
