package authsteps

import (
	"context"
	"time"
)

// VerifyInput carries everything a Strategy needs to verify one step.
type VerifyInput struct {
	Method    Method
	RequestID string
	Process   *AuthProcess
	User      *User
	Headers   Headers
	Params    map[string]string
}

// Strategy wraps the provider specific verification logic for one
// schema code. Implementations declare their attempt policy flags and
// an exhaustive status to method to result code table.
type Strategy interface {
	// SchemaCode returns the schema code the strategy serves.
	SchemaCode() SchemaCode

	// IsUserRequired reports whether the schema may only be started by
	// an already identified client.
	IsUserRequired() bool

	// CompleteOnSuccess reports whether a successful process should be
	// promoted to completed immediately.
	CompleteOnSuccess() bool

	// ProcessCodes returns the result code for every status and method
	// pair the strategy can produce. A missing pair is a defect.
	ProcessCodes() map[Status]map[Method]ProcessCode

	// EndedChainCode returns the result code reported when the schema
	// tree ends before all steps are resolved. Zero selects the default
	// waiting period expired code.
	EndedChainCode() ProcessCode

	// OnAttemptsExceeded is invoked before an attempts exceeded
	// rejection is surfaced.
	OnAttemptsExceeded(ctx context.Context, user *User, headers Headers)

	// Verify runs the provider specific check for one step and returns
	// the newly achieved conditions. Rejections carry a result code
	// through ErrAccessDenied.
	Verify(ctx context.Context, in VerifyInput) ([]Condition, error)
}

// CheckInput carries the client context of a schema pre condition check.
type CheckInput struct {
	SchemaCode SchemaCode
	User       *User
	Headers    Headers
}

// CheckService runs schema declared pre condition checks. A failed
// check returns ErrAccessDenied with the result code to report; any
// other error is an infrastructure failure.
type CheckService interface {
	Run(ctx context.Context, code CheckCode, in CheckInput) error
}

// GetAuthMethodsRequest is the input of StepService.GetAuthMethods.
type GetAuthMethodsRequest struct {
	SchemaCode SchemaCode
	ProcessID  string
	User       *User
	Headers    Headers
}

// AuthMethodsResponse reports the eligible methods at the current
// position of a process, or a skip for an admitted process.
type AuthMethodsResponse struct {
	ProcessID       string        `json:"process_id"`
	Title           string        `json:"title,omitempty"`
	AuthMethods     []Method      `json:"auth_methods,omitempty"`
	SkipAuthMethods bool          `json:"skip_auth_methods"`
	ProcessCode     ProcessCode   `json:"process_code,omitempty"`
}

// SetStepMethodRequest is the input of StepService.SetStepMethod.
type SetStepMethodRequest struct {
	ProcessID string
	Method    Method
	User      *User
	Headers   Headers
}

// VerifyAuthMethodRequest is the input of StepService.VerifyAuthMethod.
type VerifyAuthMethodRequest struct {
	ProcessID string
	Method    Method
	RequestID string
	User      *User
	Headers   Headers
	Params    map[string]string
}

// StepService drives the per process authentication state machine.
type StepService interface {
	GetAuthMethods(ctx context.Context, req GetAuthMethodsRequest) (*AuthMethodsResponse, error)
	SetStepMethod(ctx context.Context, req SetStepMethodRequest) (*AuthSchema, *AuthProcess, error)
	VerifyAuthMethod(ctx context.Context, req VerifyAuthMethodRequest) (ProcessCode, error)

	// CompleteSteps promotes the most recent successful process for any
	// of the given schemas to completed.
	CompleteSteps(ctx context.Context, codes []SchemaCode, mobileUID, userIdentifier string) (*AuthProcess, error)

	// VerifyCompleted reports whether a successful process exists for
	// the schema without mutating it.
	VerifyCompleted(ctx context.Context, code SchemaCode, mobileUID, userIdentifier string) error

	// RevokeAdmissions revokes every historical process matching the
	// schema's admission rules, closing the cross schema shortcut.
	RevokeAdmissions(ctx context.Context, code SchemaCode, userIdentifier string) error
}

// TokenOptions adjusts refresh token creation and rotation.
type TokenOptions struct {
	CustomLifetime  time.Duration
	ProlongLifetime bool
	UserIdentifier  string
	EntityID        string
	EntryPoint      *AuthEntryPoint
}

// ValidateOptions adjusts refresh token validation.
type ValidateOptions struct {
	// VerificationCode is attached to the unauthorized error reported
	// for an expired token, asking the client to re-verify.
	VerificationCode ProcessCode
}

// TokenService manages the lifecycle of refresh tokens.
type TokenService interface {
	Create(ctx context.Context, traceID string, sessionType SessionType, opts *TokenOptions, headers Headers) (*RefreshToken, error)
	Refresh(ctx context.Context, value string, sessionType SessionType, opts *TokenOptions, headers Headers) (*RefreshToken, error)
	Validate(ctx context.Context, value string, headers Headers, opts *ValidateOptions) (*RefreshToken, error)

	Logout(ctx context.Context, value string, headers Headers) error
	LogoutPortal(ctx context.Context, value string, headers Headers) error
	ServiceLogout(ctx context.Context, value string, headers Headers) error

	// CheckExpiration sweeps overdue mobile bound tokens, marking them
	// expired in fixed size batches. It returns the total marked.
	CheckExpiration(ctx context.Context) (int64, error)

	RemoveByMobileUID(ctx context.Context, mobileUID string) (int64, error)
	RemoveByUserIdentifier(ctx context.Context, userIdentifier string) (int64, error)
	RemoveByEntityID(ctx context.Context, entityID string) (int64, error)
}

// IssueRequest carries a verified identity into token issuance.
type IssueRequest struct {
	User        *User
	Headers     Headers
	SessionType SessionType
	ProcessID   string
	TraceID     string
}

// IssueResponse is the issued credential pair.
type IssueResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Identifier   string `json:"-"`
}

// IssuanceService binds a verified identity to a signed access token
// backed by a fresh refresh token.
type IssuanceService interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResponse, error)
}

// RevocationCache is a keyed cache holding revoked credential values
// until their natural expiry.
type RevocationCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// Event is an audit or notification event published to the message bus.
type Event struct {
	Name       string            `json:"name"`
	TraceID    string            `json:"trace_id,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	MobileUID  string            `json:"mobile_uid,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventRepository publishes events to the message bus.
type EventRepository interface {
	Publish(ctx context.Context, event *Event) error
}

// NotificationService delivers best effort user facing notifications.
type NotificationService interface {
	NewDeviceDetected(ctx context.Context, identifier string, headers Headers) error
	BindPushToken(ctx context.Context, identifier, pushToken string) error

	// SendOTPCode delivers a one time code to a phone number or email
	// address over the given channel.
	SendOTPCode(ctx context.Context, identifier, destination, channel, code string) error
}
