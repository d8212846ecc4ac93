// Package registry exposes the identity provider gateway's REST API:
// bank handshakes, photo verification, document chip reads, signature
// validation, and registry record lookups.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	auth "github.com/eidcore/authsteps"
)

// Client is a consumer of the identity provider gateway API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type confirmRequest struct {
	RequestID string `json:"request_id"`
	MobileUID string `json:"mobile_uid"`
}

type userPayload struct {
	ITN          string `json:"itn"`
	FName        string `json:"f_name"`
	LName        string `json:"l_name"`
	BirthDay     string `json:"birth_day"`
	Document     string `json:"document"`
	DocumentType string `json:"document_type"`
	Bank         string `json:"bank"`
}

func (p *userPayload) toUser() *auth.User {
	return &auth.User{
		ITN:          p.ITN,
		FName:        p.FName,
		LName:        p.LName,
		BirthDay:     p.BirthDay,
		Document:     p.Document,
		DocumentType: p.DocumentType,
		Bank:         p.Bank,
	}
}

// ConfirmAuth confirms a completed bank handshake and returns the
// identity data the bank verified.
func (c *Client) ConfirmAuth(ctx context.Context, requestID, mobileUID string) (*auth.User, error) {
	var payload userPayload
	err := c.post(ctx, "/api/v1/bank/auth/confirm", confirmRequest{
		RequestID: requestID,
		MobileUID: mobileUID,
	}, &payload)
	if err != nil {
		return nil, err
	}

	return payload.toUser(), nil
}

// ConfirmPhoto confirms a completed face photo verification.
func (c *Client) ConfirmPhoto(ctx context.Context, requestID, mobileUID string) error {
	return c.post(ctx, "/api/v1/photo/verification/confirm", confirmRequest{
		RequestID: requestID,
		MobileUID: mobileUID,
	}, nil)
}

// ConfirmChipRead confirms a completed NFC chip read and returns the
// identity data read from the document.
func (c *Client) ConfirmChipRead(ctx context.Context, requestID, mobileUID string) (*auth.User, error) {
	var payload userPayload
	err := c.post(ctx, "/api/v1/chip/read/confirm", confirmRequest{
		RequestID: requestID,
		MobileUID: mobileUID,
	}, &payload)
	if err != nil {
		return nil, err
	}

	return payload.toUser(), nil
}

// ConfirmSignature confirms a validated qualified signature.
func (c *Client) ConfirmSignature(ctx context.Context, requestID, mobileUID string) error {
	return c.post(ctx, "/api/v1/signature/confirm", confirmRequest{
		RequestID: requestID,
		MobileUID: mobileUID,
	}, nil)
}

type profileRequest struct {
	Identifier string      `json:"identifier"`
	User       userPayload `json:"user"`
	MobileUID  string      `json:"mobile_uid,omitempty"`
	Platform   string      `json:"platform,omitempty"`
}

// UpsertProfile creates or updates the profile record backing an
// identifier with freshly verified identity attributes.
func (c *Client) UpsertProfile(ctx context.Context, identifier string, user *auth.User, headers auth.Headers) error {
	return c.post(ctx, "/api/v1/profile/upsert", profileRequest{
		Identifier: identifier,
		User: userPayload{
			ITN:          user.ITN,
			FName:        user.FName,
			LName:        user.LName,
			BirthDay:     user.BirthDay,
			Document:     user.Document,
			DocumentType: user.DocumentType,
			Bank:         user.Bank,
		},
		MobileUID: headers.MobileUID,
		Platform:  headers.Platform,
	}, nil)
}

// HasDocument reports whether the registry holds a usable identity
// document for the taxpayer number.
func (c *Client) HasDocument(ctx context.Context, itn string) (bool, error) {
	var payload struct {
		HasDocument bool `json:"has_document"`
	}
	err := c.post(ctx, "/api/v1/documents/check", map[string]string{"itn": itn}, &payload)
	if err != nil {
		return false, err
	}

	return payload.HasDocument, nil
}

// IsResidencyActive reports whether an e-residency is still active.
func (c *Client) IsResidencyActive(ctx context.Context, itn string) (bool, error) {
	var payload struct {
		Active bool `json:"active"`
	}
	err := c.post(ctx, "/api/v1/residency/status", map[string]string{"itn": itn}, &payload)
	if err != nil {
		return false, err
	}

	return payload.Active, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("cannot marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("cannot create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status %v, got %v", http.StatusOK, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
