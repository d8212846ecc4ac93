package authsteps

import (
	"context"
)

// ProcessRepository persists AuthProcess records.
type ProcessRepository interface {
	Create(ctx context.Context, process *AuthProcess) error

	// ByID retrieves a process regardless of status.
	ByID(ctx context.Context, processID string) (*AuthProcess, error)

	// ProcessingByID retrieves a non revoked processing record,
	// optionally filtered by schema codes.
	ProcessingByID(ctx context.Context, processID, mobileUID string, codes ...SchemaCode) (*AuthProcess, error)

	// Update writes a process conditionally on its previously read
	// status. A zero matched count reports a lost race.
	Update(ctx context.Context, process *AuthProcess, expectStatus Status) (int64, error)

	// FailProcessing marks every processing record for a device as
	// failed, excluding one process. It returns the count updated.
	FailProcessing(ctx context.Context, mobileUID, excludeID string) (int64, error)

	// LatestAdmitting retrieves the most recently created non revoked
	// process matching any admission rule for a user.
	LatestAdmitting(ctx context.Context, userIdentifier string, rules []AdmitRule) (*AuthProcess, error)

	// LatestSuccessful retrieves the most recently created successful
	// process for any of the schema codes.
	LatestSuccessful(ctx context.Context, mobileUID, userIdentifier string, codes []SchemaCode) (*AuthProcess, error)

	// RevokeMatching flags every process matching an admission rule as
	// revoked. It returns the count updated.
	RevokeMatching(ctx context.Context, userIdentifier string, rules []AdmitRule) (int64, error)
}

// RefreshTokenRepository persists RefreshToken records.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error

	// ByValue retrieves an active token by value. A non empty mobileUID
	// narrows the predicate to one device.
	ByValue(ctx context.Context, value, mobileUID string) (*RefreshToken, error)

	// Rotate writes a rotated token conditionally on the previous value
	// still being current. A zero matched count reports a lost race.
	Rotate(ctx context.Context, previousValue string, token *RefreshToken) (int64, error)

	// MarkDeleted flags a token deleted by value and device. A zero
	// matched count reports a replayed or unknown value.
	MarkDeleted(ctx context.Context, value, mobileUID string) (int64, error)

	// DeleteSiblings hard deletes every other token sharing the device,
	// session type, and user identifier. It returns the count deleted.
	DeleteSiblings(ctx context.Context, mobileUID string, sessionType SessionType, userIdentifier, excludeValue string) (int64, error)

	// CountOverdue counts mobile bound tokens past their expiration
	// time which have not yet been flagged expired.
	CountOverdue(ctx context.Context) (int64, error)

	// ExpireBatch flags a fixed size batch of overdue tokens expired
	// and returns the count updated.
	ExpireBatch(ctx context.Context, limit int) (int64, error)

	ByMobileUID(ctx context.Context, mobileUID string) ([]*RefreshToken, error)
	ByUserIdentifier(ctx context.Context, userIdentifier string) ([]*RefreshToken, error)
	ByEntityID(ctx context.Context, entityID string) ([]*RefreshToken, error)

	// Delete hard deletes tokens by ID and returns the count deleted.
	Delete(ctx context.Context, ids []string) (int64, error)
}

// SchemaRepository loads read mostly AuthSchema reference data.
type SchemaRepository interface {
	ByCode(ctx context.Context, code SchemaCode) (*AuthSchema, error)
}

// RepositoryManager manages repository access and transactions.
type RepositoryManager interface {
	NewWithTransaction(ctx context.Context) (RepositoryManager, error)
	WithAtomic(operation func() (interface{}, error)) (interface{}, error)
	Process() ProcessRepository
	RefreshToken() RefreshTokenRepository
	Schema() SchemaRepository
}
