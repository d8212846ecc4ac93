package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	auth "github.com/eidcore/authsteps"
)

// ProcessRepository is an implementation of auth.ProcessRepository.
type ProcessRepository struct {
	client *Client
}

// Create persists a new AuthProcess to local storage.
func (r *ProcessRepository) Create(ctx context.Context, process *auth.AuthProcess) error {
	if process.MobileUID == "" {
		return auth.ErrInvalidField("process must be bound to a device")
	}

	processID, err := ulid.New(ulid.Now(), r.client.entropy)
	if err != nil {
		return fmt.Errorf("cannot generate unique process ID: %w", err)
	}
	process.ID = processID.String()

	if process.Status == "" {
		process.SetStatus(auth.StatusProcessing)
	}

	history, steps, conditions, err := marshalProcessDocs(process)
	if err != nil {
		return err
	}

	row := r.client.queryRowContext(
		ctx,
		r.client.processQ["insert"],
		process.ID,
		process.Code,
		process.MobileUID,
		process.UserIdentifier,
		process.Status,
		history,
		steps,
		conditions,
		process.IsRevoked,
		nullable(process.AdmittedAfterID),
	)
	return row.Scan(
		&process.CreatedAt,
		&process.UpdatedAt,
	)
}

// ByID retrieves a process regardless of status.
func (r *ProcessRepository) ByID(ctx context.Context, processID string) (*auth.AuthProcess, error) {
	row := r.client.queryRowContext(ctx, r.client.processQ["byID"], processID)
	return scanProcess(row)
}

// ProcessingByID retrieves a non revoked processing record scoped to
// a device, optionally filtered by schema codes.
func (r *ProcessRepository) ProcessingByID(ctx context.Context, processID, mobileUID string, codes ...auth.SchemaCode) (*auth.AuthProcess, error) {
	if len(codes) == 0 {
		row := r.client.queryRowContext(
			ctx,
			r.client.processQ["processingByID"],
			processID,
			mobileUID,
			auth.StatusProcessing,
		)
		return scanProcess(row)
	}

	row := r.client.queryRowContext(
		ctx,
		r.client.processQ["processingByIDCodes"],
		processID,
		mobileUID,
		auth.StatusProcessing,
		pq.Array(schemaCodes(codes)),
	)
	return scanProcess(row)
}

// Update writes a process conditionally on its previously read status.
// A zero matched count reports a lost race to the caller.
func (r *ProcessRepository) Update(ctx context.Context, process *auth.AuthProcess, expectStatus auth.Status) (int64, error) {
	history, steps, conditions, err := marshalProcessDocs(process)
	if err != nil {
		return 0, err
	}

	process.UpdatedAt = time.Now().UTC()

	res, err := r.client.execContext(
		ctx,
		r.client.processQ["update"],
		process.ID,
		process.UserIdentifier,
		process.Status,
		history,
		steps,
		conditions,
		process.IsRevoked,
		nullable(process.AdmittedAfterID),
		process.UpdatedAt,
		expectStatus,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute update: %w", err)
	}

	return res.RowsAffected()
}

// FailProcessing marks every processing record for a device as failed,
// excluding one process.
func (r *ProcessRepository) FailProcessing(ctx context.Context, mobileUID, excludeID string) (int64, error) {
	entry, err := json.Marshal([]auth.StatusEntry{{
		Status: auth.StatusFailure,
		Date:   time.Now().UTC(),
	}})
	if err != nil {
		return 0, err
	}

	res, err := r.client.execContext(
		ctx,
		r.client.processQ["failProcessing"],
		mobileUID,
		auth.StatusProcessing,
		auth.StatusFailure,
		entry,
		time.Now().UTC(),
		excludeID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail processing records: %w", err)
	}

	return res.RowsAffected()
}

// LatestAdmitting retrieves the most recently created non revoked
// process matching any admission rule for a user. Candidates are
// ordered by creation time; rule status matching considers both the
// current status and the status history.
func (r *ProcessRepository) LatestAdmitting(ctx context.Context, userIdentifier string, rules []auth.AdmitRule) (*auth.AuthProcess, error) {
	if len(rules) == 0 {
		return nil, sql.ErrNoRows
	}

	codes := make([]auth.SchemaCode, 0, len(rules))
	for _, rule := range rules {
		codes = append(codes, rule.Code)
	}

	// The candidate window is intentionally small. Admission looks for
	// a recent completion and anything older falls outside every
	// admission TTL in practice.
	const candidateLimit = 20

	rows, err := r.client.queryContext(
		ctx,
		r.client.processQ["latestByCodes"],
		userIdentifier,
		pq.Array(schemaCodes(codes)),
		candidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		process, err := scanProcessRows(rows)
		if err != nil {
			return nil, err
		}
		if matchesAdmitRule(process, rules) {
			return process, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completed with error: %w", err)
	}

	return nil, sql.ErrNoRows
}

// LatestSuccessful retrieves the most recently created successful
// process for any of the schema codes.
func (r *ProcessRepository) LatestSuccessful(ctx context.Context, mobileUID, userIdentifier string, codes []auth.SchemaCode) (*auth.AuthProcess, error) {
	row := r.client.queryRowContext(
		ctx,
		r.client.processQ["latestSuccessful"],
		mobileUID,
		userIdentifier,
		auth.StatusSuccess,
		pq.Array(schemaCodes(codes)),
	)
	return scanProcess(row)
}

// RevokeMatching flags every process matching an admission rule as revoked.
func (r *ProcessRepository) RevokeMatching(ctx context.Context, userIdentifier string, rules []auth.AdmitRule) (int64, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	codes := make([]auth.SchemaCode, 0, len(rules))
	for _, rule := range rules {
		codes = append(codes, rule.Code)
	}

	res, err := r.client.execContext(
		ctx,
		r.client.processQ["revokeMatching"],
		userIdentifier,
		pq.Array(schemaCodes(codes)),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke records: %w", err)
	}

	return res.RowsAffected()
}

func matchesAdmitRule(process *auth.AuthProcess, rules []auth.AdmitRule) bool {
	for _, rule := range rules {
		if rule.Code != process.Code {
			continue
		}

		// An empty rule status admits any successful completion.
		want := rule.AdmitAfterStatus
		if want == "" {
			want = auth.StatusSuccess
		}

		if process.Status == want {
			return true
		}
		if _, ok := process.StatusDate(want); ok {
			return true
		}
	}
	return false
}

func marshalProcessDocs(process *auth.AuthProcess) ([]byte, []byte, []byte, error) {
	history, err := json.Marshal(process.StatusHistory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cannot marshal status history: %w", err)
	}

	if process.Steps == nil {
		process.Steps = []auth.Step{}
	}
	steps, err := json.Marshal(process.Steps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cannot marshal steps: %w", err)
	}

	if process.Conditions == nil {
		process.Conditions = []auth.Condition{}
	}
	conditions, err := json.Marshal(process.Conditions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cannot marshal conditions: %w", err)
	}

	return history, steps, conditions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProcess(row rowScanner) (*auth.AuthProcess, error) {
	var (
		process    auth.AuthProcess
		history    []byte
		steps      []byte
		conditions []byte
	)

	err := row.Scan(
		&process.ID, &process.Code, &process.MobileUID, &process.UserIdentifier,
		&process.Status, &history, &steps, &conditions, &process.IsRevoked,
		&process.AdmittedAfterID, &process.CreatedAt, &process.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(history, &process.StatusHistory); err != nil {
		return nil, fmt.Errorf("cannot unmarshal status history: %w", err)
	}
	if err = json.Unmarshal(steps, &process.Steps); err != nil {
		return nil, fmt.Errorf("cannot unmarshal steps: %w", err)
	}
	if err = json.Unmarshal(conditions, &process.Conditions); err != nil {
		return nil, fmt.Errorf("cannot unmarshal conditions: %w", err)
	}

	return &process, nil
}

func scanProcessRows(rows *sql.Rows) (*auth.AuthProcess, error) {
	return scanProcess(rows)
}

func schemaCodes(codes []auth.SchemaCode) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, string(code))
	}
	return out
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
