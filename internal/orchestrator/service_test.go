package orchestrator

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/strategy"
	"github.com/eidcore/authsteps/internal/test"
)

type bankStub struct {
	err error
}

func (p *bankStub) ConfirmAuth(ctx context.Context, requestID, mobileUID string) (*auth.User, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &auth.User{Identifier: "user.1", Bank: "testbank"}, nil
}

type photoStub struct {
	err error
}

func (p *photoStub) ConfirmPhoto(ctx context.Context, requestID, mobileUID string) error {
	return p.err
}

func testRegistry(bank *bankStub, photo *photoStub) *strategy.Registry {
	return strategy.NewRegistry(
		log.NewNopLogger(),
		strategy.NewBankID(bank, photo),
		strategy.NewProlong(photo),
	)
}

// authorizationSchema is a two level tree: a bank handshake followed by
// a photo check, with a stand alone photo branch as fallback.
func authorizationSchema() *auth.AuthSchema {
	return &auth.AuthSchema{
		Code:    auth.SchemaAuthorization,
		Title:   "Authorization",
		Methods: []auth.Method{auth.MethodBankID, auth.MethodPhotoID},
		Tree: map[auth.Method]*auth.SchemaNode{
			auth.MethodBankID: {
				Policy:    auth.StepPolicy{MaxAttempts: 3, TTL: 3 * time.Minute},
				Condition: auth.ConditionBankAuth,
				Children: map[auth.Method]*auth.SchemaNode{
					auth.MethodPhotoID: {
						Policy:    auth.StepPolicy{MaxVerifyAttempts: 3, TTL: 3 * time.Minute},
						Condition: auth.ConditionPhoto,
					},
				},
			},
			auth.MethodPhotoID: {
				Policy:    auth.StepPolicy{MaxVerifyAttempts: 3, TTL: 3 * time.Minute},
				Condition: auth.ConditionPhoto,
			},
		},
	}
}

func prolongSchema() *auth.AuthSchema {
	return &auth.AuthSchema{
		Code:    auth.SchemaProlong,
		Title:   "Prolong",
		Methods: []auth.Method{auth.MethodPhotoID},
		AdmitAfter: []auth.AdmitRule{
			{Code: auth.SchemaAuthorization, AdmitAfterStatus: auth.StatusCompleted},
		},
		Tree: map[auth.Method]*auth.SchemaNode{
			auth.MethodPhotoID: {
				Policy:    auth.StepPolicy{MaxVerifyAttempts: 3, TTL: 3 * time.Minute},
				Condition: auth.ConditionPhoto,
			},
		},
	}
}

func processingRecord(code auth.SchemaCode, steps ...auth.Step) *auth.AuthProcess {
	p := &auth.AuthProcess{
		ID:        "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Code:      code,
		MobileUID: "device-1",
		Steps:     steps,
	}
	p.SetStatus(auth.StatusProcessing)
	return p
}

func newTestService(repoMngr auth.RepositoryManager, registry *strategy.Registry, checks auth.CheckService) auth.StepService {
	return NewService(
		WithRepoManager(repoMngr),
		WithStrategies(registry),
		WithChecks(checks),
	)
}

func TestOrchestrator_GetAuthMethods(t *testing.T) {
	tt := []struct {
		name        string
		req         auth.GetAuthMethodsRequest
		schema      *auth.AuthSchema
		process     *auth.AuthProcess
		admitting   *auth.AuthProcess
		checkErr    error
		methods     []auth.Method
		skip        bool
		carriedCode auth.ProcessCode
		errCode     auth.ErrCode
	}{
		{
			name: "New process reports first level methods",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaAuthorization,
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema:  authorizationSchema(),
			methods: []auth.Method{auth.MethodBankID, auth.MethodPhotoID},
		},
		{
			name: "Resumed process reports methods below ended step",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaAuthorization,
				ProcessID:  "01ARZ3NDEKTSV4RRFFQ69G5FAV",
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema: authorizationSchema(),
			process: processingRecord(auth.SchemaAuthorization, auth.Step{
				Method:    auth.MethodBankID,
				Attempts:  1,
				StartDate: time.Now().Add(-time.Minute),
				EndDate:   timePtr(time.Now()),
			}),
			methods: []auth.Method{auth.MethodPhotoID},
		},
		{
			name: "Device identifier is required",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaAuthorization,
			},
			schema:  authorizationSchema(),
			errCode: auth.EBadRequest,
		},
		{
			name: "Schema without methods skips authentication",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaAuthorization,
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema: &auth.AuthSchema{
				Code:  auth.SchemaAuthorization,
				Title: "Authorization",
			},
			skip: true,
		},
		{
			name: "Recent completion admits without steps",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaProlong,
				User:       &auth.User{Identifier: "user.1"},
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema: prolongSchema(),
			admitting: &auth.AuthProcess{
				ID:   "01ARZ3NDEKTSV4RRFFQ69G5FA0",
				Code: auth.SchemaAuthorization,
				StatusHistory: []auth.StatusEntry{
					{Status: auth.StatusCompleted, Date: time.Now().Add(-time.Minute)},
				},
			},
			skip: true,
		},
		{
			name: "Stale completion does not admit",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaProlong,
				User:       &auth.User{Identifier: "user.1"},
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema: prolongSchema(),
			admitting: &auth.AuthProcess{
				ID:   "01ARZ3NDEKTSV4RRFFQ69G5FA0",
				Code: auth.SchemaAuthorization,
				StatusHistory: []auth.StatusEntry{
					{Status: auth.StatusCompleted, Date: time.Now().Add(-10 * time.Minute)},
				},
			},
			methods: []auth.Method{auth.MethodPhotoID},
		},
		{
			name: "Failed check carries its result code",
			req: auth.GetAuthMethodsRequest{
				SchemaCode: auth.SchemaAuthorization,
				Headers:    auth.Headers{MobileUID: "device-1"},
			},
			schema: func() *auth.AuthSchema {
				s := authorizationSchema()
				s.Checks = []auth.CheckCode{auth.CheckMinimumAge}
				return s
			}(),
			checkErr: auth.ErrAccessDenied{
				Reason: "client is too young",
				Result: auth.ProcessCodeUserTooYoung,
			},
			methods:     []auth.Method{auth.MethodBankID, auth.MethodPhotoID},
			carriedCode: auth.ProcessCodeUserTooYoung,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			processRepo := &test.ProcessRepository{
				CreateFn: func(process *auth.AuthProcess) error {
					process.ID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
					process.SetStatus(auth.StatusProcessing)
					return nil
				},
				ProcessingByIDFn: func() (*auth.AuthProcess, error) {
					return tc.process, nil
				},
				LatestAdmittingFn: func() (*auth.AuthProcess, error) {
					return tc.admitting, nil
				},
				UpdateFn: func() (int64, error) {
					return 1, nil
				},
			}
			repoMngr := &test.RepositoryManager{
				ProcessFn: func() auth.ProcessRepository { return processRepo },
				SchemaFn: func() auth.SchemaRepository {
					return &test.SchemaRepository{
						ByCodeFn: func() (*auth.AuthSchema, error) { return tc.schema, nil },
					}
				},
			}
			checks := &test.CheckService{
				RunFn: func(code auth.CheckCode) error { return tc.checkErr },
			}

			svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), checks)

			resp, err := svc.GetAuthMethods(context.Background(), tc.req)
			if tc.errCode != "" {
				if auth.ErrorCode(err) != tc.errCode {
					t.Fatalf("incorrect error, want %s got %v", tc.errCode, err)
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if resp.SkipAuthMethods != tc.skip {
				t.Errorf("incorrect skip flag, want %v got %v", tc.skip, resp.SkipAuthMethods)
			}
			if !cmp.Equal(resp.AuthMethods, tc.methods) {
				t.Error("incorrect methods:", cmp.Diff(tc.methods, resp.AuthMethods))
			}
			if resp.ProcessCode != tc.carriedCode {
				t.Errorf("incorrect carried code, want %d got %d", tc.carriedCode, resp.ProcessCode)
			}
		})
	}
}

func TestOrchestrator_GetAuthMethodsAdmissionMarksOrigin(t *testing.T) {
	var created *auth.AuthProcess
	processRepo := &test.ProcessRepository{
		CreateFn: func(process *auth.AuthProcess) error {
			process.ID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
			process.SetStatus(auth.StatusProcessing)
			created = process
			return nil
		},
		LatestAdmittingFn: func() (*auth.AuthProcess, error) {
			return &auth.AuthProcess{
				ID:   "01ARZ3NDEKTSV4RRFFQ69G5FA0",
				Code: auth.SchemaAuthorization,
				StatusHistory: []auth.StatusEntry{
					{Status: auth.StatusCompleted, Date: time.Now()},
				},
			}, nil
		},
		UpdateFn: func() (int64, error) {
			return 1, nil
		},
	}
	repoMngr := &test.RepositoryManager{
		ProcessFn: func() auth.ProcessRepository { return processRepo },
		SchemaFn: func() auth.SchemaRepository {
			return &test.SchemaRepository{
				ByCodeFn: func() (*auth.AuthSchema, error) { return prolongSchema(), nil },
			}
		},
	}

	svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), nil)

	resp, err := svc.GetAuthMethods(context.Background(), auth.GetAuthMethodsRequest{
		SchemaCode: auth.SchemaProlong,
		User:       &auth.User{Identifier: "user.1"},
		Headers:    auth.Headers{MobileUID: "device-1"},
	})
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if !resp.SkipAuthMethods {
		t.Fatal("expected authentication to be skipped")
	}
	if created.AdmittedAfterID != "01ARZ3NDEKTSV4RRFFQ69G5FA0" {
		t.Error("admitting process was not recorded:", created.AdmittedAfterID)
	}
	if created.Status != auth.StatusSuccess {
		t.Error("admitted process was not promoted:", created.Status)
	}
}

func TestOrchestrator_SetStepMethod(t *testing.T) {
	tt := []struct {
		name               string
		method             auth.Method
		steps              []auth.Step
		wantSteps          int
		wantAttempts       int
		wantVerifyAttempts int
		wantCode           auth.ProcessCode
	}{
		{
			name:         "First method starts a step",
			method:       auth.MethodBankID,
			wantSteps:    1,
			wantAttempts: 1,
		},
		{
			name:   "Retrying a method counts another attempt",
			method: auth.MethodBankID,
			steps: []auth.Step{
				{
					Method:         auth.MethodBankID,
					Attempts:       1,
					VerifyAttempts: 2,
					StartDate:      time.Now().Add(-time.Minute),
				},
			},
			wantSteps:          1,
			wantAttempts:       2,
			wantVerifyAttempts: 0,
		},
		{
			name:   "Attempt limit is enforced",
			method: auth.MethodBankID,
			steps: []auth.Step{
				{
					Method:    auth.MethodBankID,
					Attempts:  3,
					StartDate: time.Now().Add(-time.Minute),
				},
			},
			wantCode: auth.ProcessCodeAttemptsExceeded,
		},
		{
			name:   "Expired waiting period is enforced",
			method: auth.MethodBankID,
			steps: []auth.Step{
				{
					Method:    auth.MethodBankID,
					Attempts:  1,
					StartDate: time.Now().Add(-10 * time.Minute),
				},
			},
			wantCode: auth.ProcessCodeWaitingPeriodExpired,
		},
		{
			name:   "Unknown method is rejected",
			method: auth.MethodQES,
			steps: []auth.Step{
				{
					Method:    auth.MethodQES,
					Attempts:  1,
					StartDate: time.Now(),
				},
			},
			wantCode: auth.ProcessCodeAuthFailed,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			record := processingRecord(auth.SchemaAuthorization, tc.steps...)
			processRepo := &test.ProcessRepository{
				ProcessingByIDFn: func() (*auth.AuthProcess, error) { return record, nil },
				UpdateFn:         func() (int64, error) { return 1, nil },
			}
			repoMngr := &test.RepositoryManager{
				ProcessFn: func() auth.ProcessRepository { return processRepo },
				SchemaFn: func() auth.SchemaRepository {
					return &test.SchemaRepository{
						ByCodeFn: func() (*auth.AuthSchema, error) { return authorizationSchema(), nil },
					}
				},
			}

			svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), nil)

			_, process, err := svc.SetStepMethod(context.Background(), auth.SetStepMethodRequest{
				ProcessID: record.ID,
				Method:    tc.method,
				Headers:   auth.Headers{MobileUID: "device-1"},
			})
			if tc.wantCode != 0 {
				code, ok := auth.ErrorProcessCode(err)
				if !ok {
					t.Fatal("expected a coded rejection, got", err)
				}
				if code != tc.wantCode {
					t.Errorf("incorrect code, want %d got %d", tc.wantCode, code)
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if len(process.Steps) != tc.wantSteps {
				t.Fatalf("incorrect step count, want %d got %d", tc.wantSteps, len(process.Steps))
			}
			last := process.LastStep()
			if last.Attempts != tc.wantAttempts {
				t.Errorf("incorrect attempts, want %d got %d", tc.wantAttempts, last.Attempts)
			}
			if last.VerifyAttempts != tc.wantVerifyAttempts {
				t.Errorf("incorrect verify attempts, want %d got %d", tc.wantVerifyAttempts, last.VerifyAttempts)
			}
		})
	}
}

func TestOrchestrator_VerifyAuthMethod(t *testing.T) {
	tt := []struct {
		name       string
		method     auth.Method
		bankErr    error
		steps      []auth.Step
		conditions []auth.Condition
		wantCode   auth.ProcessCode
		wantStatus auth.Status
		isErr      bool
	}{
		{
			name:   "Intermediate step keeps the process open",
			method: auth.MethodBankID,
			steps: []auth.Step{
				{Method: auth.MethodBankID, Attempts: 1, StartDate: time.Now()},
			},
			wantCode:   auth.ProcessCodeWaitingVerify,
			wantStatus: auth.StatusProcessing,
		},
		{
			name:   "Final step promotes the process",
			method: auth.MethodPhotoID,
			steps: []auth.Step{
				{
					Method:    auth.MethodBankID,
					Attempts:  1,
					StartDate: time.Now().Add(-time.Minute),
					EndDate:   timePtr(time.Now()),
				},
				{Method: auth.MethodPhotoID, Attempts: 1, StartDate: time.Now()},
			},
			conditions: []auth.Condition{auth.ConditionBankAuth},
			wantCode:   auth.ProcessCodeSuccess,
			wantStatus: auth.StatusSuccess,
		},
		{
			name:    "Provider rejection fails with a code",
			method:  auth.MethodBankID,
			bankErr: errors.New("bank rejected the handshake"),
			steps: []auth.Step{
				{Method: auth.MethodBankID, Attempts: 1, StartDate: time.Now()},
			},
			wantCode: auth.ProcessCodeAuthFailed,
			isErr:    true,
		},
		{
			name:    "Failure on the final attempt exhausts the limit",
			method:  auth.MethodBankID,
			bankErr: errors.New("bank rejected the handshake"),
			steps: []auth.Step{
				{Method: auth.MethodBankID, Attempts: 3, StartDate: time.Now()},
			},
			wantCode: auth.ProcessCodeAttemptsExceeded,
			isErr:    true,
		},
		{
			name:   "Process without steps cannot be verified",
			method: auth.MethodBankID,
			steps:  nil,
			isErr:  true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			record := processingRecord(auth.SchemaAuthorization, tc.steps...)
			record.Conditions = tc.conditions

			processRepo := &test.ProcessRepository{
				ProcessingByIDFn: func() (*auth.AuthProcess, error) { return record, nil },
				UpdateFn:         func() (int64, error) { return 1, nil },
			}
			repoMngr := &test.RepositoryManager{
				ProcessFn: func() auth.ProcessRepository { return processRepo },
				SchemaFn: func() auth.SchemaRepository {
					return &test.SchemaRepository{
						ByCodeFn: func() (*auth.AuthSchema, error) { return authorizationSchema(), nil },
					}
				},
			}

			svc := newTestService(repoMngr, testRegistry(&bankStub{err: tc.bankErr}, &photoStub{}), nil)

			code, err := svc.VerifyAuthMethod(context.Background(), auth.VerifyAuthMethodRequest{
				ProcessID: record.ID,
				Method:    tc.method,
				RequestID: "req-1",
				Headers:   auth.Headers{MobileUID: "device-1"},
			})
			if tc.isErr {
				if err == nil {
					t.Fatal("expected verification failure")
				}
				if tc.wantCode != 0 {
					got, ok := auth.ErrorProcessCode(err)
					if !ok {
						t.Fatal("rejection does not carry a result code:", err)
					}
					if got != tc.wantCode {
						t.Errorf("incorrect code, want %d got %d", tc.wantCode, got)
					}
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if code != tc.wantCode {
				t.Errorf("incorrect code, want %d got %d", tc.wantCode, code)
			}
			if record.Status != tc.wantStatus {
				t.Errorf("incorrect status, want %s got %s", tc.wantStatus, record.Status)
			}
		})
	}
}

func TestOrchestrator_VerifyAuthMethodEndsSuccessfulStep(t *testing.T) {
	record := processingRecord(auth.SchemaAuthorization, auth.Step{
		Method:    auth.MethodBankID,
		Attempts:  1,
		StartDate: time.Now(),
	})

	processRepo := &test.ProcessRepository{
		ProcessingByIDFn: func() (*auth.AuthProcess, error) { return record, nil },
		UpdateFn:         func() (int64, error) { return 1, nil },
	}
	repoMngr := &test.RepositoryManager{
		ProcessFn: func() auth.ProcessRepository { return processRepo },
		SchemaFn: func() auth.SchemaRepository {
			return &test.SchemaRepository{
				ByCodeFn: func() (*auth.AuthSchema, error) { return authorizationSchema(), nil },
			}
		},
	}

	svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), nil)

	_, err := svc.VerifyAuthMethod(context.Background(), auth.VerifyAuthMethodRequest{
		ProcessID: record.ID,
		Method:    auth.MethodBankID,
		RequestID: "req-1",
		Headers:   auth.Headers{MobileUID: "device-1"},
	})
	if err != nil {
		t.Fatal("unexpected error:", err)
	}

	if !record.HasCondition(auth.ConditionBankAuth) {
		t.Error("bank condition was not recorded")
	}
	if last := record.LastStep(); !last.Ended() {
		t.Error("verified step was not ended")
	}
	if last := record.LastStep(); last.VerifyAttempts != 1 {
		t.Error("verification attempt was not counted:", last.VerifyAttempts)
	}
}

func TestOrchestrator_CompleteSteps(t *testing.T) {
	tt := []struct {
		name    string
		process *auth.AuthProcess
		matched int64
		errCode auth.ErrCode
	}{
		{
			name: "Successful process is completed",
			process: &auth.AuthProcess{
				ID:     "01ARZ3NDEKTSV4RRFFQ69G5FAV",
				Code:   auth.SchemaAuthorization,
				Status: auth.StatusSuccess,
			},
			matched: 1,
		},
		{
			name:    "No successful process",
			errCode: auth.ENotFound,
		},
		{
			name: "Concurrent completion is reported",
			process: &auth.AuthProcess{
				ID:     "01ARZ3NDEKTSV4RRFFQ69G5FAV",
				Code:   auth.SchemaAuthorization,
				Status: auth.StatusSuccess,
			},
			matched: 0,
			errCode: auth.ENotFound,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			processRepo := &test.ProcessRepository{
				LatestSuccessfulFn: func() (*auth.AuthProcess, error) {
					if tc.process == nil {
						return nil, sql.ErrNoRows
					}
					return tc.process, nil
				},
				UpdateFn: func() (int64, error) { return tc.matched, nil },
			}
			repoMngr := &test.RepositoryManager{
				ProcessFn: func() auth.ProcessRepository { return processRepo },
			}

			svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), nil)

			process, err := svc.CompleteSteps(
				context.Background(),
				[]auth.SchemaCode{auth.SchemaAuthorization},
				"device-1",
				"user.1",
			)
			if tc.errCode != "" {
				if auth.ErrorCode(err) != tc.errCode {
					t.Fatalf("incorrect error, want %s got %v", tc.errCode, err)
				}
				return
			}
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if process.Status != auth.StatusCompleted {
				t.Error("process was not completed:", process.Status)
			}
		})
	}
}

func TestOrchestrator_RevokeAdmissions(t *testing.T) {
	processRepo := &test.ProcessRepository{
		RevokeMatchingFn: func() (int64, error) { return 2, nil },
	}
	repoMngr := &test.RepositoryManager{
		ProcessFn: func() auth.ProcessRepository { return processRepo },
		SchemaFn: func() auth.SchemaRepository {
			return &test.SchemaRepository{
				ByCodeFn: func() (*auth.AuthSchema, error) { return prolongSchema(), nil },
			}
		},
	}

	svc := newTestService(repoMngr, testRegistry(&bankStub{}, &photoStub{}), nil)

	err := svc.RevokeAdmissions(context.Background(), auth.SchemaProlong, "user.1")
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if processRepo.Calls.RevokeMatching != 1 {
		t.Error("revocation was not executed")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
