// Package test provides shared mocks and helpers for unit and
// integration tests.
package test

import (
	"context"
	"time"

	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// ProcessRepository mocks auth.ProcessRepository.
type ProcessRepository struct {
	CreateFn           func(process *auth.AuthProcess) error
	ByIDFn             func() (*auth.AuthProcess, error)
	ProcessingByIDFn   func() (*auth.AuthProcess, error)
	UpdateFn           func() (int64, error)
	FailProcessingFn   func() (int64, error)
	LatestAdmittingFn  func() (*auth.AuthProcess, error)
	LatestSuccessfulFn func() (*auth.AuthProcess, error)
	RevokeMatchingFn   func() (int64, error)
	Calls              struct {
		Create           int
		ByID             int
		ProcessingByID   int
		Update           int
		FailProcessing   int
		LatestAdmitting  int
		LatestSuccessful int
		RevokeMatching   int
	}
}

// Create mock.
func (m *ProcessRepository) Create(ctx context.Context, process *auth.AuthProcess) error {
	m.Calls.Create++
	if m.CreateFn != nil {
		return m.CreateFn(process)
	}
	return errors.New("failed to create process")
}

// ByID mock.
func (m *ProcessRepository) ByID(ctx context.Context, processID string) (*auth.AuthProcess, error) {
	m.Calls.ByID++
	if m.ByIDFn != nil {
		return m.ByIDFn()
	}
	return nil, errors.New("failed to get process")
}

// ProcessingByID mock.
func (m *ProcessRepository) ProcessingByID(ctx context.Context, processID, mobileUID string, codes ...auth.SchemaCode) (*auth.AuthProcess, error) {
	m.Calls.ProcessingByID++
	if m.ProcessingByIDFn != nil {
		return m.ProcessingByIDFn()
	}
	return nil, errors.New("failed to get processing record")
}

// Update mock.
func (m *ProcessRepository) Update(ctx context.Context, process *auth.AuthProcess, expectStatus auth.Status) (int64, error) {
	m.Calls.Update++
	if m.UpdateFn != nil {
		return m.UpdateFn()
	}
	return 0, errors.New("failed to update process")
}

// FailProcessing mock.
func (m *ProcessRepository) FailProcessing(ctx context.Context, mobileUID, excludeID string) (int64, error) {
	m.Calls.FailProcessing++
	if m.FailProcessingFn != nil {
		return m.FailProcessingFn()
	}
	return 0, nil
}

// LatestAdmitting mock.
func (m *ProcessRepository) LatestAdmitting(ctx context.Context, userIdentifier string, rules []auth.AdmitRule) (*auth.AuthProcess, error) {
	m.Calls.LatestAdmitting++
	if m.LatestAdmittingFn != nil {
		return m.LatestAdmittingFn()
	}
	return nil, errors.New("failed to get admitting process")
}

// LatestSuccessful mock.
func (m *ProcessRepository) LatestSuccessful(ctx context.Context, mobileUID, userIdentifier string, codes []auth.SchemaCode) (*auth.AuthProcess, error) {
	m.Calls.LatestSuccessful++
	if m.LatestSuccessfulFn != nil {
		return m.LatestSuccessfulFn()
	}
	return nil, errors.New("failed to get successful process")
}

// RevokeMatching mock.
func (m *ProcessRepository) RevokeMatching(ctx context.Context, userIdentifier string, rules []auth.AdmitRule) (int64, error) {
	m.Calls.RevokeMatching++
	if m.RevokeMatchingFn != nil {
		return m.RevokeMatchingFn()
	}
	return 0, errors.New("failed to revoke processes")
}

// RefreshTokenRepository mocks auth.RefreshTokenRepository.
type RefreshTokenRepository struct {
	CreateFn           func(token *auth.RefreshToken) error
	ByValueFn          func() (*auth.RefreshToken, error)
	RotateFn           func(token *auth.RefreshToken) (int64, error)
	MarkDeletedFn      func() (int64, error)
	DeleteSiblingsFn   func() (int64, error)
	CountOverdueFn     func() (int64, error)
	ExpireBatchFn      func() (int64, error)
	ByMobileUIDFn      func() ([]*auth.RefreshToken, error)
	ByUserIdentifierFn func() ([]*auth.RefreshToken, error)
	ByEntityIDFn       func() ([]*auth.RefreshToken, error)
	DeleteFn           func() (int64, error)
	Calls              struct {
		Create           int
		ByValue          int
		Rotate           int
		MarkDeleted      int
		DeleteSiblings   int
		CountOverdue     int
		ExpireBatch      int
		ByMobileUID      int
		ByUserIdentifier int
		ByEntityID       int
		Delete           int
	}
}

// Create mock.
func (m *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	m.Calls.Create++
	if m.CreateFn != nil {
		return m.CreateFn(token)
	}
	return errors.New("failed to create token")
}

// ByValue mock.
func (m *RefreshTokenRepository) ByValue(ctx context.Context, value, mobileUID string) (*auth.RefreshToken, error) {
	m.Calls.ByValue++
	if m.ByValueFn != nil {
		return m.ByValueFn()
	}
	return nil, errors.New("failed to get token")
}

// Rotate mock.
func (m *RefreshTokenRepository) Rotate(ctx context.Context, previousValue string, token *auth.RefreshToken) (int64, error) {
	m.Calls.Rotate++
	if m.RotateFn != nil {
		return m.RotateFn(token)
	}
	return 0, errors.New("failed to rotate token")
}

// MarkDeleted mock.
func (m *RefreshTokenRepository) MarkDeleted(ctx context.Context, value, mobileUID string) (int64, error) {
	m.Calls.MarkDeleted++
	if m.MarkDeletedFn != nil {
		return m.MarkDeletedFn()
	}
	return 0, errors.New("failed to mark token deleted")
}

// DeleteSiblings mock.
func (m *RefreshTokenRepository) DeleteSiblings(ctx context.Context, mobileUID string, sessionType auth.SessionType, userIdentifier, excludeValue string) (int64, error) {
	m.Calls.DeleteSiblings++
	if m.DeleteSiblingsFn != nil {
		return m.DeleteSiblingsFn()
	}
	return 0, nil
}

// CountOverdue mock.
func (m *RefreshTokenRepository) CountOverdue(ctx context.Context) (int64, error) {
	m.Calls.CountOverdue++
	if m.CountOverdueFn != nil {
		return m.CountOverdueFn()
	}
	return 0, nil
}

// ExpireBatch mock.
func (m *RefreshTokenRepository) ExpireBatch(ctx context.Context, limit int) (int64, error) {
	m.Calls.ExpireBatch++
	if m.ExpireBatchFn != nil {
		return m.ExpireBatchFn()
	}
	return 0, nil
}

// ByMobileUID mock.
func (m *RefreshTokenRepository) ByMobileUID(ctx context.Context, mobileUID string) ([]*auth.RefreshToken, error) {
	m.Calls.ByMobileUID++
	if m.ByMobileUIDFn != nil {
		return m.ByMobileUIDFn()
	}
	return nil, nil
}

// ByUserIdentifier mock.
func (m *RefreshTokenRepository) ByUserIdentifier(ctx context.Context, userIdentifier string) ([]*auth.RefreshToken, error) {
	m.Calls.ByUserIdentifier++
	if m.ByUserIdentifierFn != nil {
		return m.ByUserIdentifierFn()
	}
	return nil, nil
}

// ByEntityID mock.
func (m *RefreshTokenRepository) ByEntityID(ctx context.Context, entityID string) ([]*auth.RefreshToken, error) {
	m.Calls.ByEntityID++
	if m.ByEntityIDFn != nil {
		return m.ByEntityIDFn()
	}
	return nil, nil
}

// Delete mock.
func (m *RefreshTokenRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	m.Calls.Delete++
	if m.DeleteFn != nil {
		return m.DeleteFn()
	}
	return 0, nil
}

// SchemaRepository mocks auth.SchemaRepository.
type SchemaRepository struct {
	ByCodeFn func() (*auth.AuthSchema, error)
	Calls    struct {
		ByCode int
	}
}

// ByCode mock.
func (m *SchemaRepository) ByCode(ctx context.Context, code auth.SchemaCode) (*auth.AuthSchema, error) {
	m.Calls.ByCode++
	if m.ByCodeFn != nil {
		return m.ByCodeFn()
	}
	return nil, errors.New("failed to get schema")
}

// RepositoryManager mocks auth.RepositoryManager.
type RepositoryManager struct {
	NewWithTransactionFn func() (auth.RepositoryManager, error)
	WithAtomicFn         func() (interface{}, error)
	ProcessFn            func() auth.ProcessRepository
	RefreshTokenFn       func() auth.RefreshTokenRepository
	SchemaFn             func() auth.SchemaRepository
	Calls                struct {
		NewWithTransaction int
		WithAtomic         int
		Process            int
		RefreshToken       int
		Schema             int
	}
}

// NewWithTransaction mock.
func (m *RepositoryManager) NewWithTransaction(ctx context.Context) (auth.RepositoryManager, error) {
	m.Calls.NewWithTransaction++
	if m.NewWithTransactionFn != nil {
		return m.NewWithTransactionFn()
	}
	return m, nil
}

// WithAtomic mock.
func (m *RepositoryManager) WithAtomic(operation func() (interface{}, error)) (interface{}, error) {
	m.Calls.WithAtomic++
	if m.WithAtomicFn != nil {
		return m.WithAtomicFn()
	}
	return operation()
}

// Process mock.
func (m *RepositoryManager) Process() auth.ProcessRepository {
	m.Calls.Process++
	if m.ProcessFn != nil {
		return m.ProcessFn()
	}
	return &ProcessRepository{}
}

// RefreshToken mock.
func (m *RepositoryManager) RefreshToken() auth.RefreshTokenRepository {
	m.Calls.RefreshToken++
	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn()
	}
	return &RefreshTokenRepository{}
}

// Schema mock.
func (m *RepositoryManager) Schema() auth.SchemaRepository {
	m.Calls.Schema++
	if m.SchemaFn != nil {
		return m.SchemaFn()
	}
	return &SchemaRepository{}
}

// TokenService mocks auth.TokenService.
type TokenService struct {
	CreateFn                 func() (*auth.RefreshToken, error)
	RefreshFn                func() (*auth.RefreshToken, error)
	ValidateFn               func() (*auth.RefreshToken, error)
	LogoutFn                 func() error
	LogoutPortalFn           func() error
	ServiceLogoutFn          func() error
	CheckExpirationFn        func() (int64, error)
	RemoveByMobileUIDFn      func() (int64, error)
	RemoveByUserIdentifierFn func() (int64, error)
	RemoveByEntityIDFn       func() (int64, error)
	Calls                    struct {
		Create                 int
		Refresh                int
		Validate               int
		Logout                 int
		LogoutPortal           int
		ServiceLogout          int
		CheckExpiration        int
		RemoveByMobileUID      int
		RemoveByUserIdentifier int
		RemoveByEntityID       int
	}
}

// Create mock.
func (m *TokenService) Create(ctx context.Context, traceID string, sessionType auth.SessionType, opts *auth.TokenOptions, headers auth.Headers) (*auth.RefreshToken, error) {
	m.Calls.Create++
	if m.CreateFn != nil {
		return m.CreateFn()
	}
	return nil, errors.New("failed to create token")
}

// Refresh mock.
func (m *TokenService) Refresh(ctx context.Context, value string, sessionType auth.SessionType, opts *auth.TokenOptions, headers auth.Headers) (*auth.RefreshToken, error) {
	m.Calls.Refresh++
	if m.RefreshFn != nil {
		return m.RefreshFn()
	}
	return nil, errors.New("failed to refresh token")
}

// Validate mock.
func (m *TokenService) Validate(ctx context.Context, value string, headers auth.Headers, opts *auth.ValidateOptions) (*auth.RefreshToken, error) {
	m.Calls.Validate++
	if m.ValidateFn != nil {
		return m.ValidateFn()
	}
	return nil, errors.New("failed to validate token")
}

// Logout mock.
func (m *TokenService) Logout(ctx context.Context, value string, headers auth.Headers) error {
	m.Calls.Logout++
	if m.LogoutFn != nil {
		return m.LogoutFn()
	}
	return errors.New("failed to logout")
}

// LogoutPortal mock.
func (m *TokenService) LogoutPortal(ctx context.Context, value string, headers auth.Headers) error {
	m.Calls.LogoutPortal++
	if m.LogoutPortalFn != nil {
		return m.LogoutPortalFn()
	}
	return errors.New("failed to logout")
}

// ServiceLogout mock.
func (m *TokenService) ServiceLogout(ctx context.Context, value string, headers auth.Headers) error {
	m.Calls.ServiceLogout++
	if m.ServiceLogoutFn != nil {
		return m.ServiceLogoutFn()
	}
	return errors.New("failed to logout")
}

// CheckExpiration mock.
func (m *TokenService) CheckExpiration(ctx context.Context) (int64, error) {
	m.Calls.CheckExpiration++
	if m.CheckExpirationFn != nil {
		return m.CheckExpirationFn()
	}
	return 0, nil
}

// RemoveByMobileUID mock.
func (m *TokenService) RemoveByMobileUID(ctx context.Context, mobileUID string) (int64, error) {
	m.Calls.RemoveByMobileUID++
	if m.RemoveByMobileUIDFn != nil {
		return m.RemoveByMobileUIDFn()
	}
	return 0, nil
}

// RemoveByUserIdentifier mock.
func (m *TokenService) RemoveByUserIdentifier(ctx context.Context, userIdentifier string) (int64, error) {
	m.Calls.RemoveByUserIdentifier++
	if m.RemoveByUserIdentifierFn != nil {
		return m.RemoveByUserIdentifierFn()
	}
	return 0, nil
}

// RemoveByEntityID mock.
func (m *TokenService) RemoveByEntityID(ctx context.Context, entityID string) (int64, error) {
	m.Calls.RemoveByEntityID++
	if m.RemoveByEntityIDFn != nil {
		return m.RemoveByEntityIDFn()
	}
	return 0, nil
}

// StepService mocks auth.StepService.
type StepService struct {
	GetAuthMethodsFn   func() (*auth.AuthMethodsResponse, error)
	SetStepMethodFn    func() (*auth.AuthSchema, *auth.AuthProcess, error)
	VerifyAuthMethodFn func() (auth.ProcessCode, error)
	CompleteStepsFn    func() (*auth.AuthProcess, error)
	VerifyCompletedFn  func() error
	RevokeAdmissionsFn func() error
	Calls              struct {
		GetAuthMethods   int
		SetStepMethod    int
		VerifyAuthMethod int
		CompleteSteps    int
		VerifyCompleted  int
		RevokeAdmissions int
	}
}

// GetAuthMethods mock.
func (m *StepService) GetAuthMethods(ctx context.Context, req auth.GetAuthMethodsRequest) (*auth.AuthMethodsResponse, error) {
	m.Calls.GetAuthMethods++
	if m.GetAuthMethodsFn != nil {
		return m.GetAuthMethodsFn()
	}
	return nil, errors.New("failed to get auth methods")
}

// SetStepMethod mock.
func (m *StepService) SetStepMethod(ctx context.Context, req auth.SetStepMethodRequest) (*auth.AuthSchema, *auth.AuthProcess, error) {
	m.Calls.SetStepMethod++
	if m.SetStepMethodFn != nil {
		return m.SetStepMethodFn()
	}
	return nil, nil, errors.New("failed to set step method")
}

// VerifyAuthMethod mock.
func (m *StepService) VerifyAuthMethod(ctx context.Context, req auth.VerifyAuthMethodRequest) (auth.ProcessCode, error) {
	m.Calls.VerifyAuthMethod++
	if m.VerifyAuthMethodFn != nil {
		return m.VerifyAuthMethodFn()
	}
	return 0, errors.New("failed to verify auth method")
}

// CompleteSteps mock.
func (m *StepService) CompleteSteps(ctx context.Context, codes []auth.SchemaCode, mobileUID, userIdentifier string) (*auth.AuthProcess, error) {
	m.Calls.CompleteSteps++
	if m.CompleteStepsFn != nil {
		return m.CompleteStepsFn()
	}
	return nil, errors.New("failed to complete steps")
}

// VerifyCompleted mock.
func (m *StepService) VerifyCompleted(ctx context.Context, code auth.SchemaCode, mobileUID, userIdentifier string) error {
	m.Calls.VerifyCompleted++
	if m.VerifyCompletedFn != nil {
		return m.VerifyCompletedFn()
	}
	return errors.New("failed to verify completion")
}

// RevokeAdmissions mock.
func (m *StepService) RevokeAdmissions(ctx context.Context, code auth.SchemaCode, userIdentifier string) error {
	m.Calls.RevokeAdmissions++
	if m.RevokeAdmissionsFn != nil {
		return m.RevokeAdmissionsFn()
	}
	return errors.New("failed to revoke admissions")
}

// IssuanceService mocks auth.IssuanceService.
type IssuanceService struct {
	IssueFn func() (*auth.IssueResponse, error)
	Calls   struct {
		Issue int
	}
}

// Issue mock.
func (m *IssuanceService) Issue(ctx context.Context, req auth.IssueRequest) (*auth.IssueResponse, error) {
	m.Calls.Issue++
	if m.IssueFn != nil {
		return m.IssueFn()
	}
	return nil, errors.New("failed to issue token")
}

// CheckService mocks auth.CheckService.
type CheckService struct {
	RunFn func(code auth.CheckCode) error
	Calls struct {
		Run int
	}
}

// Run mock.
func (m *CheckService) Run(ctx context.Context, code auth.CheckCode, in auth.CheckInput) error {
	m.Calls.Run++
	if m.RunFn != nil {
		return m.RunFn(code)
	}
	return nil
}

// RevocationCache mocks auth.RevocationCache.
type RevocationCache struct {
	SetFn func(key, value string, ttl time.Duration) error
	GetFn func(key string) (string, error)
	DelFn func(key string) error
	Calls struct {
		Set int
		Get int
		Del int
	}
}

// Set mock.
func (m *RevocationCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.Calls.Set++
	if m.SetFn != nil {
		return m.SetFn(key, value, ttl)
	}
	return nil
}

// Get mock.
func (m *RevocationCache) Get(ctx context.Context, key string) (string, error) {
	m.Calls.Get++
	if m.GetFn != nil {
		return m.GetFn(key)
	}
	return "", nil
}

// Del mock.
func (m *RevocationCache) Del(ctx context.Context, key string) error {
	m.Calls.Del++
	if m.DelFn != nil {
		return m.DelFn(key)
	}
	return nil
}

// EventRepository mocks auth.EventRepository.
type EventRepository struct {
	PublishFn func(event *auth.Event) error
	Calls     struct {
		Publish int
	}
}

// Publish mock.
func (m *EventRepository) Publish(ctx context.Context, event *auth.Event) error {
	m.Calls.Publish++
	if m.PublishFn != nil {
		return m.PublishFn(event)
	}
	return nil
}

// NotificationService mocks auth.NotificationService.
type NotificationService struct {
	NewDeviceDetectedFn func() error
	BindPushTokenFn     func() error
	SendOTPCodeFn       func() error
	Calls               struct {
		NewDeviceDetected int
		BindPushToken     int
		SendOTPCode       int
	}
}

// NewDeviceDetected mock.
func (m *NotificationService) NewDeviceDetected(ctx context.Context, identifier string, headers auth.Headers) error {
	m.Calls.NewDeviceDetected++
	if m.NewDeviceDetectedFn != nil {
		return m.NewDeviceDetectedFn()
	}
	return nil
}

// BindPushToken mock.
func (m *NotificationService) BindPushToken(ctx context.Context, identifier, pushToken string) error {
	m.Calls.BindPushToken++
	if m.BindPushTokenFn != nil {
		return m.BindPushTokenFn()
	}
	return nil
}

// SendOTPCode mock.
func (m *NotificationService) SendOTPCode(ctx context.Context, identifier, destination, channel, code string) error {
	m.Calls.SendOTPCode++
	if m.SendOTPCodeFn != nil {
		return m.SendOTPCodeFn()
	}
	return nil
}
