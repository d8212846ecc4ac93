package authapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/httpapi"
)

type userPayload struct {
	ITN          string `json:"itn"`
	FName        string `json:"f_name"`
	LName        string `json:"l_name"`
	BirthDay     string `json:"birth_day"`
	Document     string `json:"document"`
	DocumentType string `json:"document_type"`
	Bank         string `json:"bank"`
}

type authMethodsRequest struct {
	SchemaCode string       `json:"schema_code"`
	ProcessID  string       `json:"process_id"`
	User       *userPayload `json:"user"`
}

type setStepRequest struct {
	ProcessID string      `json:"process_id"`
	Method    auth.Method `json:"method"`
}

type verifyStepRequest struct {
	ProcessID string            `json:"process_id"`
	Method    auth.Method       `json:"method"`
	RequestID string            `json:"request_id"`
	Params    map[string]string `json:"params"`
}

type sendOTPRequest struct {
	Identifier  string `json:"identifier"`
	Destination string `json:"destination"`
	Channel     string `json:"channel"`
}

type issueTokenRequest struct {
	SchemaCodes []string         `json:"schema_codes"`
	SessionType auth.SessionType `json:"session_type"`
	ProcessID   string           `json:"process_id"`
	TraceID     string           `json:"trace_id"`
	User        *userPayload     `json:"user"`
}

func (p *userPayload) toUser(identifier string) *auth.User {
	if p == nil {
		return nil
	}
	return &auth.User{
		Identifier:   identifier,
		ITN:          p.ITN,
		FName:        p.FName,
		LName:        p.LName,
		BirthDay:     p.BirthDay,
		Document:     p.Document,
		DocumentType: p.DocumentType,
		Bank:         p.Bank,
	}
}

func decodeAuthMethodsRequest(r *http.Request) (*authMethodsRequest, error) {
	var req authMethodsRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	req.SchemaCode = strings.TrimSpace(req.SchemaCode)
	if req.SchemaCode == "" {
		return nil, auth.ErrBadRequest("schema code must be provided")
	}

	return &req, nil
}

func decodeSetStepRequest(r *http.Request) (*setStepRequest, error) {
	var req setStepRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	req.ProcessID = strings.TrimSpace(req.ProcessID)
	if req.ProcessID == "" {
		return nil, auth.ErrBadRequest("process id must be provided")
	}
	if req.Method == "" {
		return nil, auth.ErrBadRequest("auth method must be provided")
	}

	return &req, nil
}

func decodeVerifyStepRequest(r *http.Request) (*verifyStepRequest, error) {
	var req verifyStepRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	req.ProcessID = strings.TrimSpace(req.ProcessID)
	if req.ProcessID == "" {
		return nil, auth.ErrBadRequest("process id must be provided")
	}
	if req.Method == "" {
		return nil, auth.ErrBadRequest("auth method must be provided")
	}

	return &req, nil
}

func decodeSendOTPRequest(r *http.Request) (*sendOTPRequest, error) {
	var req sendOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	if identifier := httpapi.GetIdentifier(r); identifier != "" {
		req.Identifier = identifier
	}
	if req.Identifier == "" {
		return nil, auth.ErrBadRequest("identifier must be provided")
	}
	if req.Destination == "" || req.Channel == "" {
		return nil, auth.ErrBadRequest("destination and channel must be provided")
	}

	return &req, nil
}

func decodeIssueTokenRequest(r *http.Request) (*issueTokenRequest, error) {
	var req issueTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, auth.ErrBadRequest("invalid JSON request"))
	}

	if len(req.SchemaCodes) == 0 {
		return nil, auth.ErrBadRequest("schema codes must be provided")
	}
	if req.SessionType == "" {
		req.SessionType = auth.SessionUser
	}

	return &req, nil
}
