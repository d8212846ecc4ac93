// Package authapi provides an HTTP API for multi step authentication.
package authapi

import (
	"context"
	"net/http"

	"github.com/go-kit/kit/log"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
)

// CodeGenerator issues single use codes for out of band delivery.
type CodeGenerator interface {
	Generate(ctx context.Context, identifier string) (string, error)
}

type service struct {
	logger   log.Logger
	steps    auth.StepService
	issuer   auth.IssuanceService
	otp      CodeGenerator
	notifier auth.NotificationService
}

type stepResponse struct {
	ProcessID      string      `json:"process_id"`
	Title          string      `json:"title,omitempty"`
	Method         auth.Method `json:"method"`
	Attempts       int         `json:"attempts"`
	VerifyAttempts int         `json:"verify_attempts"`
}

type verifyResponse struct {
	ProcessID   string           `json:"process_id"`
	ProcessCode auth.ProcessCode `json:"process_code"`
}

// GetAuthMethods starts or resumes an auth process and reports the
// methods the client may attempt next.
func (s *service) GetAuthMethods(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeAuthMethodsRequest(r)
	if err != nil {
		return nil, err
	}

	return s.steps.GetAuthMethods(ctx, auth.GetAuthMethodsRequest{
		SchemaCode: auth.SchemaCode(req.SchemaCode),
		ProcessID:  req.ProcessID,
		User:       requestUser(r, req.User),
		Headers:    httpapi.DeviceHeaders(r),
	})
}

// SetStepMethod records the client's chosen method as the active step.
func (s *service) SetStepMethod(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeSetStepRequest(r)
	if err != nil {
		return nil, err
	}

	schema, process, err := s.steps.SetStepMethod(ctx, auth.SetStepMethodRequest{
		ProcessID: req.ProcessID,
		Method:    req.Method,
		User:      requestUser(r, nil),
		Headers:   httpapi.DeviceHeaders(r),
	})
	if err != nil {
		return nil, err
	}

	step := process.LastStep()
	return &stepResponse{
		ProcessID:      process.ID,
		Title:          schema.Title,
		Method:         step.Method,
		Attempts:       step.Attempts,
		VerifyAttempts: step.VerifyAttempts,
	}, nil
}

// VerifyAuthMethod verifies the active step against its provider and
// reports the resulting process code.
func (s *service) VerifyAuthMethod(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeVerifyStepRequest(r)
	if err != nil {
		return nil, err
	}

	code, err := s.steps.VerifyAuthMethod(ctx, auth.VerifyAuthMethodRequest{
		ProcessID: req.ProcessID,
		Method:    req.Method,
		RequestID: req.RequestID,
		User:      requestUser(r, nil),
		Headers:   httpapi.DeviceHeaders(r),
		Params:    req.Params,
	})
	if err != nil {
		return nil, err
	}

	return &verifyResponse{
		ProcessID:   req.ProcessID,
		ProcessCode: code,
	}, nil
}

// SendOTPCode issues a single use code for the client and hands it to
// the delivery pipeline.
func (s *service) SendOTPCode(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeSendOTPRequest(r)
	if err != nil {
		return nil, err
	}

	code, err := s.otp.Generate(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	err = s.notifier.SendOTPCode(ctx, req.Identifier, req.Destination, req.Channel, code)
	if err != nil {
		return nil, err
	}

	return nil, nil
}

// IssueToken promotes the client's successful process to completed and
// exchanges it for a signed credential pair.
func (s *service) IssueToken(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	ctx := r.Context()

	req, err := decodeIssueTokenRequest(r)
	if err != nil {
		return nil, err
	}

	headers := httpapi.DeviceHeaders(r)
	identifier := httpapi.GetIdentifier(r)

	codes := make([]auth.SchemaCode, len(req.SchemaCodes))
	for i, code := range req.SchemaCodes {
		codes[i] = auth.SchemaCode(code)
	}

	process, err := s.steps.CompleteSteps(ctx, codes, headers.MobileUID, identifier)
	if err != nil {
		return nil, err
	}

	return s.issuer.Issue(ctx, auth.IssueRequest{
		User:        req.User.toUser(identifier),
		Headers:     headers,
		SessionType: req.SessionType,
		ProcessID:   process.ID,
		TraceID:     req.TraceID,
	})
}

// requestUser merges the authenticated identifier with any user data
// supplied on the request body.
func requestUser(r *http.Request, payload *userPayload) *auth.User {
	identifier := httpapi.GetIdentifier(r)
	if payload != nil {
		return payload.toUser(identifier)
	}
	if identifier == "" {
		return nil
	}
	return &auth.User{Identifier: identifier}
}
