package processcode

import (
	"testing"

	auth "github.com/eidcore/authsteps"
)

func TestProcessCode_OnVerify(t *testing.T) {
	codes := map[auth.Status]map[auth.Method]auth.ProcessCode{
		auth.StatusProcessing: {
			auth.MethodBankID: auth.ProcessCodeWaitingVerify,
		},
		auth.StatusSuccess: {
			auth.MethodBankID:  auth.ProcessCodeSuccess,
			auth.MethodPhotoID: auth.ProcessCodeSuccess,
		},
	}

	tt := []struct {
		name      string
		status    auth.Status
		step      *auth.Step
		code      auth.ProcessCode
		isDefect  bool
	}{
		{
			name:   "Mapped pair resolves",
			status: auth.StatusSuccess,
			step:   &auth.Step{Method: auth.MethodBankID},
			code:   auth.ProcessCodeSuccess,
		},
		{
			name:   "Intermediate status resolves",
			status: auth.StatusProcessing,
			step:   &auth.Step{Method: auth.MethodBankID},
			code:   auth.ProcessCodeWaitingVerify,
		},
		{
			name:     "Unmapped status is a defect",
			status:   auth.StatusFailure,
			step:     &auth.Step{Method: auth.MethodBankID},
			isDefect: true,
		},
		{
			name:     "Unmapped method is a defect",
			status:   auth.StatusProcessing,
			step:     &auth.Step{Method: auth.MethodNFC},
			isDefect: true,
		},
		{
			name:     "Missing step is a defect",
			status:   auth.StatusProcessing,
			isDefect: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			code, err := OnVerify(tc.status, tc.step, codes)
			if tc.isDefect {
				if err == nil {
					t.Fatal("expected defect error")
				}
				if auth.DomainError(err) != nil {
					t.Error("defects must not resolve to a domain error")
				}
				return
			}

			if err != nil {
				t.Fatal("unexpected error:", err)
			}
			if code != tc.code {
				t.Errorf("incorrect code, want %d got %d", tc.code, code)
			}
		})
	}
}
