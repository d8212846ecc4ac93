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

// RefreshTokenRepository is an implementation of auth.RefreshTokenRepository.
type RefreshTokenRepository struct {
	client *Client
}

// Create persists a new RefreshToken to local storage.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	if token.Value == "" {
		return auth.ErrInvalidField("token value is required")
	}

	tokenID, err := ulid.New(ulid.Now(), r.client.entropy)
	if err != nil {
		return fmt.Errorf("cannot generate unique token ID: %w", err)
	}
	token.ID = tokenID.String()

	if token.LastActivityDate.IsZero() {
		token.LastActivityDate = time.Now().UTC()
	}

	entryPoint, history, err := marshalEntryPoints(token)
	if err != nil {
		return err
	}

	row := r.client.queryRowContext(
		ctx,
		r.client.tokenQ["insert"],
		token.ID,
		token.Value,
		token.SessionType,
		nullable(token.MobileUID),
		nullable(token.UserIdentifier),
		nullable(token.EntityID),
		token.ExpirationTime,
		nullableTime(token.ExpirationDate),
		entryPoint,
		history,
		token.IsDeleted,
		token.IsCompromised,
		token.Expired,
		token.LastActivityDate,
	)
	return row.Scan(
		&token.CreatedAt,
		&token.UpdatedAt,
	)
}

// ByValue retrieves an active token by value. A non empty mobileUID
// narrows the predicate to one device.
func (r *RefreshTokenRepository) ByValue(ctx context.Context, value, mobileUID string) (*auth.RefreshToken, error) {
	row := r.client.queryRowContext(ctx, r.client.tokenQ["byValue"], value, mobileUID)
	return scanToken(row)
}

// Rotate writes a rotated token conditionally on the previous value
// still being current. A zero matched count reports a lost race.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, previousValue string, token *auth.RefreshToken) (int64, error) {
	entryPoint, history, err := marshalEntryPoints(token)
	if err != nil {
		return 0, err
	}

	token.UpdatedAt = time.Now().UTC()

	res, err := r.client.execContext(
		ctx,
		r.client.tokenQ["rotate"],
		previousValue,
		token.Value,
		token.ExpirationTime,
		nullableTime(token.ExpirationDate),
		entryPoint,
		history,
		token.LastActivityDate,
		token.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute rotation: %w", err)
	}

	return res.RowsAffected()
}

// MarkDeleted flags a token deleted by value and device. A zero
// matched count reports a replayed or unknown value.
func (r *RefreshTokenRepository) MarkDeleted(ctx context.Context, value, mobileUID string) (int64, error) {
	res, err := r.client.execContext(
		ctx,
		r.client.tokenQ["markDeleted"],
		value,
		mobileUID,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to flag token deleted: %w", err)
	}

	return res.RowsAffected()
}

// DeleteSiblings hard deletes every other token sharing the device,
// session type, and user identifier.
func (r *RefreshTokenRepository) DeleteSiblings(ctx context.Context, mobileUID string, sessionType auth.SessionType, userIdentifier, excludeValue string) (int64, error) {
	res, err := r.client.execContext(
		ctx,
		r.client.tokenQ["deleteSiblings"],
		mobileUID,
		sessionType,
		userIdentifier,
		excludeValue,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sibling tokens: %w", err)
	}

	return res.RowsAffected()
}

// CountOverdue counts mobile bound tokens past their expiration time
// which have not yet been flagged expired.
func (r *RefreshTokenRepository) CountOverdue(ctx context.Context) (int64, error) {
	var count int64
	row := r.client.queryRowContext(ctx, r.client.tokenQ["countOverdue"], nowMs())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overdue tokens: %w", err)
	}

	return count, nil
}

// ExpireBatch flags a fixed size batch of overdue tokens expired.
func (r *RefreshTokenRepository) ExpireBatch(ctx context.Context, limit int) (int64, error) {
	res, err := r.client.execContext(
		ctx,
		r.client.tokenQ["expireBatch"],
		nowMs(),
		limit,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire token batch: %w", err)
	}

	return res.RowsAffected()
}

// ByMobileUID retrieves all tokens bound to a device.
func (r *RefreshTokenRepository) ByMobileUID(ctx context.Context, mobileUID string) ([]*auth.RefreshToken, error) {
	return r.list(ctx, r.client.tokenQ["byMobileUID"], mobileUID)
}

// ByUserIdentifier retrieves all tokens bound to a user identifier.
func (r *RefreshTokenRepository) ByUserIdentifier(ctx context.Context, userIdentifier string) ([]*auth.RefreshToken, error) {
	return r.list(ctx, r.client.tokenQ["byUserIdentifier"], userIdentifier)
}

// ByEntityID retrieves all tokens bound to an entity.
func (r *RefreshTokenRepository) ByEntityID(ctx context.Context, entityID string) ([]*auth.RefreshToken, error) {
	return r.list(ctx, r.client.tokenQ["byEntityID"], entityID)
}

// Delete hard deletes tokens by ID.
func (r *RefreshTokenRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.client.execContext(ctx, r.client.tokenQ["deleteByIDs"], pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}

	return res.RowsAffected()
}

func (r *RefreshTokenRepository) list(ctx context.Context, query, arg string) ([]*auth.RefreshToken, error) {
	rows, err := r.client.queryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	tokens := make([]*auth.RefreshToken, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completed with error: %w", err)
	}

	return tokens, nil
}

func marshalEntryPoints(token *auth.RefreshToken) ([]byte, []byte, error) {
	var entryPoint []byte
	if token.EntryPoint != nil {
		b, err := json.Marshal(token.EntryPoint)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot marshal entry point: %w", err)
		}
		entryPoint = b
	}

	if token.EntryPointHistory == nil {
		token.EntryPointHistory = []auth.AuthEntryPoint{}
	}
	history, err := json.Marshal(token.EntryPointHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot marshal entry point history: %w", err)
	}

	return entryPoint, history, nil
}

func scanToken(row rowScanner) (*auth.RefreshToken, error) {
	var (
		token          auth.RefreshToken
		expirationDate sql.NullTime
		entryPoint     []byte
		history        []byte
	)

	err := row.Scan(
		&token.ID, &token.Value, &token.SessionType, &token.MobileUID,
		&token.UserIdentifier, &token.EntityID, &token.ExpirationTime,
		&expirationDate, &entryPoint, &history, &token.IsDeleted,
		&token.IsCompromised, &token.Expired, &token.LastActivityDate,
		&token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expirationDate.Valid {
		token.ExpirationDate = &expirationDate.Time
	}
	if len(entryPoint) > 0 {
		if err = json.Unmarshal(entryPoint, &token.EntryPoint); err != nil {
			return nil, fmt.Errorf("cannot unmarshal entry point: %w", err)
		}
	}
	if err = json.Unmarshal(history, &token.EntryPointHistory); err != nil {
		return nil, fmt.Errorf("cannot unmarshal entry point history: %w", err)
	}

	return &token, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
