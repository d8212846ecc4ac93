package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/go-kit/kit/log"
	// pq driver registers itself as being available to the database/sql package.
	_ "github.com/lib/pq"

	auth "github.com/eidcore/authsteps"
)

// Client represents a client for PostgreSQL.
type Client struct {
	db      *sql.DB
	tx      *sql.Tx
	entropy io.Reader
	logger  log.Logger

	processRepository *ProcessRepository
	processQ          map[string]string

	tokenRepository *RefreshTokenRepository
	tokenQ          map[string]string

	schemaRepository *SchemaRepository
	schemaQ          map[string]string
}

func (c *Client) createQueries() {
	c.processQ = map[string]string{
		"insert": `
			INSERT INTO auth_process (
				id, code, mobile_uid, user_identifier, status, status_history,
				steps, conditions, is_revoked, admitted_after_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at;
		`,
		"byID": `
			SELECT id, code, mobile_uid, COALESCE(user_identifier, ''), status,
				status_history, steps, conditions, is_revoked,
				COALESCE(admitted_after_id, ''), created_at, updated_at
			FROM auth_process
			WHERE id = $1;
		`,
		"processingByID": `
			SELECT id, code, mobile_uid, COALESCE(user_identifier, ''), status,
				status_history, steps, conditions, is_revoked,
				COALESCE(admitted_after_id, ''), created_at, updated_at
			FROM auth_process
			WHERE id = $1
			AND mobile_uid = $2
			AND status = $3
			AND NOT is_revoked;
		`,
		"processingByIDCodes": `
			SELECT id, code, mobile_uid, COALESCE(user_identifier, ''), status,
				status_history, steps, conditions, is_revoked,
				COALESCE(admitted_after_id, ''), created_at, updated_at
			FROM auth_process
			WHERE id = $1
			AND mobile_uid = $2
			AND status = $3
			AND NOT is_revoked
			AND code = ANY($4);
		`,
		"update": `
			UPDATE auth_process
			SET user_identifier=$2, status=$3, status_history=$4, steps=$5,
				conditions=$6, is_revoked=$7, admitted_after_id=$8, updated_at=$9
			WHERE id = $1
			AND status = $10;
		`,
		"failProcessing": `
			UPDATE auth_process
			SET status=$3, status_history = status_history || $4::jsonb, updated_at=$5
			WHERE mobile_uid = $1
			AND status = $2
			AND id <> $6;
		`,
		"latestByCodes": `
			SELECT id, code, mobile_uid, COALESCE(user_identifier, ''), status,
				status_history, steps, conditions, is_revoked,
				COALESCE(admitted_after_id, ''), created_at, updated_at
			FROM auth_process
			WHERE user_identifier = $1
			AND NOT is_revoked
			AND code = ANY($2)
			ORDER BY created_at
			DESC
			LIMIT $3;
		`,
		"latestSuccessful": `
			SELECT id, code, mobile_uid, COALESCE(user_identifier, ''), status,
				status_history, steps, conditions, is_revoked,
				COALESCE(admitted_after_id, ''), created_at, updated_at
			FROM auth_process
			WHERE mobile_uid = $1
			AND ($2 = '' OR user_identifier = $2)
			AND status = $3
			AND NOT is_revoked
			AND code = ANY($4)
			ORDER BY created_at
			DESC
			LIMIT 1;
		`,
		"revokeMatching": `
			UPDATE auth_process
			SET is_revoked=true, updated_at=$3
			WHERE user_identifier = $1
			AND code = ANY($2)
			AND NOT is_revoked;
		`,
	}

	c.tokenQ = map[string]string{
		"insert": `
			INSERT INTO refresh_token (
				id, value, session_type, mobile_uid, user_identifier, entity_id,
				expiration_time, expiration_date, entry_point, entry_point_history,
				is_deleted, is_compromised, expired, last_activity_date
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at;
		`,
		"byValue": `
			SELECT id, value, session_type, COALESCE(mobile_uid, ''),
				COALESCE(user_identifier, ''), COALESCE(entity_id, ''),
				expiration_time, expiration_date, entry_point, entry_point_history,
				is_deleted, is_compromised, expired, last_activity_date,
				created_at, updated_at
			FROM refresh_token
			WHERE value = $1
			AND NOT is_deleted
			AND ($2 = '' OR mobile_uid = $2);
		`,
		"rotate": `
			UPDATE refresh_token
			SET value=$2, expiration_time=$3, expiration_date=$4, entry_point=$5,
				entry_point_history=$6, last_activity_date=$7, updated_at=$8
			WHERE value = $1
			AND NOT is_deleted;
		`,
		"markDeleted": `
			UPDATE refresh_token
			SET is_deleted=true, updated_at=$3
			WHERE value = $1
			AND mobile_uid = $2
			AND NOT is_deleted;
		`,
		"deleteSiblings": `
			DELETE FROM refresh_token
			WHERE mobile_uid IS NOT DISTINCT FROM NULLIF($1, '')
			AND session_type = $2
			AND user_identifier IS NOT DISTINCT FROM NULLIF($3, '')
			AND value <> $4;
		`,
		"countOverdue": `
			SELECT COUNT(*)
			FROM refresh_token
			WHERE COALESCE(mobile_uid, '') <> ''
			AND NOT expired
			AND expiration_time < $1;
		`,
		"expireBatch": `
			UPDATE refresh_token
			SET expired=true, updated_at=$3
			WHERE id IN (
				SELECT id FROM refresh_token
				WHERE COALESCE(mobile_uid, '') <> ''
				AND NOT expired
				AND expiration_time < $1
				ORDER BY expiration_time
				LIMIT $2
			);
		`,
		"byMobileUID": `
			SELECT id, value, session_type, COALESCE(mobile_uid, ''),
				COALESCE(user_identifier, ''), COALESCE(entity_id, ''),
				expiration_time, expiration_date, entry_point, entry_point_history,
				is_deleted, is_compromised, expired, last_activity_date,
				created_at, updated_at
			FROM refresh_token
			WHERE mobile_uid = $1;
		`,
		"byUserIdentifier": `
			SELECT id, value, session_type, COALESCE(mobile_uid, ''),
				COALESCE(user_identifier, ''), COALESCE(entity_id, ''),
				expiration_time, expiration_date, entry_point, entry_point_history,
				is_deleted, is_compromised, expired, last_activity_date,
				created_at, updated_at
			FROM refresh_token
			WHERE user_identifier = $1;
		`,
		"byEntityID": `
			SELECT id, value, session_type, COALESCE(mobile_uid, ''),
				COALESCE(user_identifier, ''), COALESCE(entity_id, ''),
				expiration_time, expiration_date, entry_point, entry_point_history,
				is_deleted, is_compromised, expired, last_activity_date,
				created_at, updated_at
			FROM refresh_token
			WHERE entity_id = $1;
		`,
		"deleteByIDs": `
			DELETE FROM refresh_token WHERE id = ANY($1);
		`,
	}

	c.schemaQ = map[string]string{
		"byCode": `
			SELECT code, title, methods, checks, admit_after, tree
			FROM auth_schema
			WHERE code = $1;
		`,
	}
}

// NewWithTransaction returns a new client with a transaction. All
// repository operations using the new client will default to the transaction.
func (c *Client) NewWithTransaction(ctx context.Context) (auth.RepositoryManager, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	newClient := *c
	newClient.tx = tx
	newClient.processRepository.client = &newClient
	newClient.tokenRepository.client = &newClient
	newClient.schemaRepository.client = &newClient
	return &newClient, nil
}

// WithAtomic performs an operation within a transaction. If the operation
// is successful it commits it, otherwise the operation will be rolledback.
func (c *Client) WithAtomic(operation func() (interface{}, error)) (interface{}, error) {
	if c.tx == nil {
		return nil, fmt.Errorf("cannot complete operation outside of transaction")
	}

	defer func() {
		c.tx = nil
	}()

	entity, err := operation()

	if err != nil {
		if dbErr := c.tx.Rollback(); dbErr != nil {
			err = fmt.Errorf("%v: %w", dbErr, err)
		}
		return nil, err
	}

	err = c.tx.Commit()
	if err != nil {
		return entity, fmt.Errorf("commit failed: %w", err)
	}

	return entity, nil
}

// Process returns a ProcessRepository.
func (c *Client) Process() auth.ProcessRepository {
	return c.processRepository
}

// RefreshToken returns a RefreshTokenRepository.
func (c *Client) RefreshToken() auth.RefreshTokenRepository {
	return c.tokenRepository
}

// Schema returns a SchemaRepository.
func (c *Client) Schema() auth.SchemaRepository {
	return c.schemaRepository
}

func (c *Client) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if c.tx != nil {
		return c.tx.QueryRowContext(ctx, query, args...)
	}

	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Client) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if c.tx != nil {
		return c.tx.QueryContext(ctx, query, args...)
	}

	return c.db.QueryContext(ctx, query, args...)
}

func (c *Client) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}

	return c.db.ExecContext(ctx, query, args...)
}
