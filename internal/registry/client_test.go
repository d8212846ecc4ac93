package registry

import (
	"context"
	"net/http"
	"testing"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/test"
)

func TestRegistry_ConfirmAuth(t *testing.T) {
	tt := []struct {
		name         string
		responseCode int
		resp         string
		hasError     bool
	}{
		{
			name:         "Success 200",
			responseCode: http.StatusOK,
			resp:         `{"itn":"1234567890","f_name":"Jane","l_name":"Doe","bank":"testbank"}`,
		},
		{
			name:         "Rejected 403",
			responseCode: http.StatusForbidden,
			hasError:     true,
		},
		{
			name:         "Unavailable 502",
			responseCode: http.StatusBadGateway,
			hasError:     true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			srv := test.Server(test.ServerResp{
				Path:       "/api/v1/bank/auth/confirm",
				StatusCode: tc.responseCode,
				Resp:       tc.resp,
			})
			defer srv.Close()

			c := NewClient(WithConfig(Config{
				BaseURL: srv.URL,
				APIKey:  "api-key",
			}))

			user, err := c.ConfirmAuth(context.Background(), "req-1", "device-1")
			if tc.hasError {
				if err == nil {
					t.Error("expected error, received nil")
				}
				return
			}
			if err != nil {
				t.Fatal("expected nil error:", err)
			}

			if user.ITN != "1234567890" || user.Bank != "testbank" {
				t.Error("incorrect identity payload:", user)
			}
		})
	}
}

func TestRegistry_ConfirmPhoto(t *testing.T) {
	srv := test.Server(test.ServerResp{
		Path:       "/api/v1/photo/verification/confirm",
		StatusCode: http.StatusOK,
	})
	defer srv.Close()

	c := NewClient(WithConfig(Config{BaseURL: srv.URL}))

	if err := c.ConfirmPhoto(context.Background(), "req-1", "device-1"); err != nil {
		t.Error("expected nil error:", err)
	}
}

func TestRegistry_UpsertProfile(t *testing.T) {
	srv := test.Server(test.ServerResp{
		Path:       "/api/v1/profile/upsert",
		StatusCode: http.StatusOK,
	})
	defer srv.Close()

	c := NewClient(WithConfig(Config{BaseURL: srv.URL}))

	user := &auth.User{ITN: "1234567890", FName: "Jane", LName: "Doe"}
	err := c.UpsertProfile(context.Background(), "user.c0ffee", user, auth.Headers{MobileUID: "device-1"})
	if err != nil {
		t.Error("expected nil error:", err)
	}
}

func TestRegistry_Lookups(t *testing.T) {
	srv := test.Server(
		test.ServerResp{
			Path:       "/api/v1/documents/check",
			StatusCode: http.StatusOK,
			Resp:       `{"has_document":true}`,
		},
		test.ServerResp{
			Path:       "/api/v1/residency/status",
			StatusCode: http.StatusOK,
			Resp:       `{"active":false}`,
		},
	)
	defer srv.Close()

	c := NewClient(WithConfig(Config{BaseURL: srv.URL}))
	ctx := context.Background()

	hasDocument, err := c.HasDocument(ctx, "1234567890")
	if err != nil {
		t.Fatal("expected nil error:", err)
	}
	if !hasDocument {
		t.Error("expected a usable document")
	}

	active, err := c.IsResidencyActive(ctx, "1234567890")
	if err != nil {
		t.Fatal("expected nil error:", err)
	}
	if active {
		t.Error("expected terminated residency")
	}
}
