// Package authsteps contains the domain model for a step based
// authentication service. An AuthSchema describes the methods a client
// may use to prove their identity, an AuthProcess tracks one in-flight
// attempt at completing a schema, and a RefreshToken is the long lived
// credential handed out once a process succeeds.
package authsteps

import (
	"encoding/json"
	"time"
)

// Status describes the lifecycle of an AuthProcess. Transitions only
// move forward and StatusCompleted is reachable from StatusSuccess only.
type Status string

const (
	// StatusProcessing is the initial status of a newly created process.
	StatusProcessing Status = "processing"
	// StatusSuccess is set once every required step has been verified.
	StatusSuccess Status = "success"
	// StatusFailure is a terminal status for abandoned or rejected processes.
	StatusFailure Status = "failure"
	// StatusCompleted is a terminal status set after a successful process
	// has been consumed by a downstream action (e.g. token issuance).
	StatusCompleted Status = "completed"
)

// Method is an authentication method a client may complete as a step.
type Method string

const (
	// MethodBankID verifies a client through a bank login handshake.
	MethodBankID Method = "bankid"
	// MethodPhotoID verifies a client through a photo of their face
	// matched against their identity document.
	MethodPhotoID Method = "photoid"
	// MethodNFC verifies a client through an NFC read of a chipped
	// identity document.
	MethodNFC Method = "nfc"
	// MethodOTP verifies a client through a one time code.
	MethodOTP Method = "otp"
	// MethodQES verifies a client through a qualified electronic signature.
	MethodQES Method = "qes"
)

// SchemaCode identifies an AuthSchema.
type SchemaCode string

const (
	// SchemaAuthorization is the primary device authorization flow.
	SchemaAuthorization SchemaCode = "authorization"
	// SchemaPortalAuthorization is the web cabinet authorization flow.
	SchemaPortalAuthorization SchemaCode = "portal-authorization"
	// SchemaResidencePermit is the document based flow for residence
	// permit holders.
	SchemaResidencePermit SchemaCode = "residence-permit"
	// SchemaProlong re-authorizes an expired session. Recently completed
	// authorization processes admit the client without new steps.
	SchemaProlong SchemaCode = "prolong"
	// SchemaSigning authorizes a qualified signature session.
	SchemaSigning SchemaCode = "signing"
)

// SessionType classifies the holder of a refresh token and drives
// its default lifetime.
type SessionType string

const (
	// SessionUser is a mobile application session.
	SessionUser SessionType = "user"
	// SessionPortalUser is a web cabinet session.
	SessionPortalUser SessionType = "portal-user"
	// SessionEResident is a mobile session of an e-resident.
	SessionEResident SessionType = "e-resident"
	// SessionPartner is a machine to machine partner session.
	SessionPartner SessionType = "partner"
	// SessionAcquirer is a document acquirer session.
	SessionAcquirer SessionType = "acquirer"
	// SessionServiceEntrance is a service office entrance session.
	SessionServiceEntrance SessionType = "service-entrance"
	// SessionTemporary is a short session issued before a process completes.
	SessionTemporary SessionType = "temporary"
)

// ProcessCode is a machine readable result code returned to clients
// after every orchestration step.
type ProcessCode int

const (
	// ProcessCodeSuccess reports a fully verified process.
	ProcessCodeSuccess ProcessCode = 101001
	// ProcessCodeWaitingVerify reports a process waiting on further steps.
	ProcessCodeWaitingVerify ProcessCode = 101002
	// ProcessCodeSkip reports a process admitted without steps.
	ProcessCodeSkip ProcessCode = 101003
	// ProcessCodeAuthFailed is the generic authentication failure code.
	ProcessCodeAuthFailed ProcessCode = 401101
	// ProcessCodeAttemptsExceeded reports an exhausted method attempt limit.
	ProcessCodeAttemptsExceeded ProcessCode = 401102
	// ProcessCodeVerifyAttemptsExceeded reports an exhausted verification
	// attempt limit.
	ProcessCodeVerifyAttemptsExceeded ProcessCode = 401103
	// ProcessCodeWaitingPeriodExpired reports a step older than its TTL.
	ProcessCodeWaitingPeriodExpired ProcessCode = 401104
	// ProcessCodeVerificationRequired asks a client to re-authenticate.
	ProcessCodeVerificationRequired ProcessCode = 401105
	// ProcessCodeDocumentNotFound reports a failed document possession check.
	ProcessCodeDocumentNotFound ProcessCode = 401110
	// ProcessCodeDuplicateIdentity reports an identity already in use.
	ProcessCodeDuplicateIdentity ProcessCode = 401111
	// ProcessCodeUserTooYoung reports a failed minimum age check.
	ProcessCodeUserTooYoung ProcessCode = 401112
	// ProcessCodeResidencyTerminated reports a terminated e-residency.
	ProcessCodeResidencyTerminated ProcessCode = 401113
)

// Condition is a tag recorded on a process once a sub requirement of a
// method has been satisfied.
type Condition string

const (
	// ConditionBankAuth is achieved after a completed bank handshake.
	ConditionBankAuth Condition = "bank-auth"
	// ConditionPhoto is achieved after a verified face photo.
	ConditionPhoto Condition = "photo"
	// ConditionChipRead is achieved after a verified NFC chip read.
	ConditionChipRead Condition = "chip-read"
	// ConditionOTPConfirmed is achieved after a confirmed one time code.
	ConditionOTPConfirmed Condition = "otp-confirmed"
	// ConditionSignature is achieved after a validated signature.
	ConditionSignature Condition = "signature"
)

// CheckCode identifies a pre condition check run before a schema's
// first step.
type CheckCode string

const (
	// CheckDocumentPossession verifies the client holds a usable document.
	CheckDocumentPossession CheckCode = "document-possession"
	// CheckDuplicateIdentity verifies the identity is not already bound
	// to another account.
	CheckDuplicateIdentity CheckCode = "duplicate-identity"
	// CheckResidencyActive verifies an e-residency has not been terminated.
	CheckResidencyActive CheckCode = "residency-active"
	// CheckMinimumAge verifies the client meets the minimum age.
	CheckMinimumAge CheckCode = "minimum-age"
)

// StepPolicy limits how a single method may be exercised within
// a process. It is stored as reference data with the TTL expressed
// in milliseconds.
type StepPolicy struct {
	MaxAttempts       int
	MaxVerifyAttempts int
	TTL               time.Duration
}

type stepPolicyJSON struct {
	MaxAttempts       int   `json:"max_attempts"`
	MaxVerifyAttempts int   `json:"max_verify_attempts"`
	TTLMs             int64 `json:"ttl_ms"`
}

// MarshalJSON encodes the policy with its TTL in milliseconds.
func (p StepPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepPolicyJSON{
		MaxAttempts:       p.MaxAttempts,
		MaxVerifyAttempts: p.MaxVerifyAttempts,
		TTLMs:             p.TTL.Milliseconds(),
	})
}

// UnmarshalJSON decodes a policy with its TTL in milliseconds.
func (p *StepPolicy) UnmarshalJSON(b []byte) error {
	var raw stepPolicyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.MaxAttempts = raw.MaxAttempts
	p.MaxVerifyAttempts = raw.MaxVerifyAttempts
	p.TTL = time.Duration(raw.TTLMs) * time.Millisecond
	return nil
}

// SchemaNode is one position in a schema's method tree. A nil child
// for a remaining step means the chain has ended.
type SchemaNode struct {
	Policy    StepPolicy             `json:"policy"`
	Condition Condition              `json:"condition,omitempty"`
	Children  map[Method]*SchemaNode `json:"children,omitempty"`
}

// AdmitRule admits a client into a schema without steps when another
// schema was recently completed.
type AdmitRule struct {
	Code             SchemaCode `json:"code"`
	AdmitAfterStatus Status     `json:"admit_after_status,omitempty"`
}

// AuthSchema is the reference definition of an authentication flow.
type AuthSchema struct {
	Code       SchemaCode
	Title      string
	Methods    []Method
	Checks     []CheckCode
	AdmitAfter []AdmitRule
	Tree       map[Method]*SchemaNode
}

// Node returns the tree node for a first level method, or nil when the
// method is not part of the schema.
func (s *AuthSchema) Node(method Method) *SchemaNode {
	if s.Tree == nil {
		return nil
	}
	return s.Tree[method]
}

// StatusEntry is an append only record of a status transition.
type StatusEntry struct {
	Status Status    `json:"status"`
	Date   time.Time `json:"date"`
}

// Step is one attempt at one method within a process. Only the last
// step of a process may be mutated and only while EndDate is unset.
type Step struct {
	Method         Method     `json:"method"`
	Attempts       int        `json:"attempts"`
	VerifyAttempts int        `json:"verify_attempts"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

// Ended reports whether the step has been completed.
func (s *Step) Ended() bool {
	return s.EndDate != nil
}

// AuthProcess is one in-flight or terminal instance of a schema for
// a device.
type AuthProcess struct {
	ID              string
	Code            SchemaCode
	MobileUID       string
	UserIdentifier  string
	Status          Status
	StatusHistory   []StatusEntry
	Steps           []Step
	Conditions      []Condition
	IsRevoked       bool
	AdmittedAfterID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetStatus advances the process status and appends a history entry.
func (p *AuthProcess) SetStatus(status Status) {
	p.Status = status
	p.StatusHistory = append(p.StatusHistory, StatusEntry{
		Status: status,
		Date:   time.Now().UTC(),
	})
}

// LastStep returns the most recent step or nil for a stepless process.
func (p *AuthProcess) LastStep() *Step {
	if len(p.Steps) == 0 {
		return nil
	}
	return &p.Steps[len(p.Steps)-1]
}

// HasCondition reports whether a condition has been achieved.
func (p *AuthProcess) HasCondition(c Condition) bool {
	for _, achieved := range p.Conditions {
		if achieved == c {
			return true
		}
	}
	return false
}

// StatusDate returns the time the process first reached a status.
func (p *AuthProcess) StatusDate(status Status) (time.Time, bool) {
	for _, entry := range p.StatusHistory {
		if entry.Status == status {
			return entry.Date, true
		}
	}
	return time.Time{}, false
}

// AuthEntryPoint describes how a session was established. It is kept
// on a refresh token for audit purposes.
type AuthEntryPoint struct {
	Target       string `json:"target"`
	Bank         string `json:"bank,omitempty"`
	Document     string `json:"document,omitempty"`
	IsBankID     bool   `json:"is_bank_id,omitempty"`
	RegisteredAt string `json:"registered_at,omitempty"`
}

// RefreshToken is a long lived credential backing short lived signed
// access tokens. Its value is rotated in place on every refresh.
type RefreshToken struct {
	ID                string
	Value             string
	SessionType       SessionType
	MobileUID         string
	UserIdentifier    string
	EntityID          string
	ExpirationTime    int64
	ExpirationDate    *time.Time
	EntryPoint        *AuthEntryPoint
	EntryPointHistory []AuthEntryPoint
	IsDeleted         bool
	IsCompromised     bool
	Expired           bool
	LastActivityDate  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RemainingLifetime returns the time left until the token's expiration
// time, or zero for an already expired token.
func (t *RefreshToken) RemainingLifetime() time.Duration {
	remaining := time.Until(time.Unix(0, t.ExpirationTime*int64(time.Millisecond)))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether the token's expiration time has passed.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().UnixNano()/int64(time.Millisecond) > t.ExpirationTime
}

// User is the verified identity data carried into a process by an
// authenticated client or produced by a completed verification.
type User struct {
	Identifier   string
	ITN          string
	FName        string
	LName        string
	BirthDay     string
	Document     string
	DocumentType string
	Bank         string
}

// Headers carries device metadata extracted by the transport layer.
type Headers struct {
	MobileUID       string
	Platform        string
	PlatformVersion string
	AppVersion      string
	DeviceModel     string
	PushToken       string
}
