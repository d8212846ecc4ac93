package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// SchemaRepository loads AuthSchema reference data.
type SchemaRepository struct {
	client *Client
}

// ByCode retrieves a schema definition by its code.
func (r *SchemaRepository) ByCode(ctx context.Context, code auth.SchemaCode) (*auth.AuthSchema, error) {
	var (
		schema     auth.AuthSchema
		methods    []byte
		checks     []byte
		admitAfter []byte
		tree       []byte
	)

	row := r.client.queryRowContext(ctx, r.client.schemaQ["byCode"], code)
	err := row.Scan(&schema.Code, &schema.Title, &methods, &checks, &admitAfter, &tree)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(auth.ErrNotFound("auth schema not found"), err.Error())
	}
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(methods, &schema.Methods); err != nil {
		return nil, fmt.Errorf("cannot unmarshal schema methods: %w", err)
	}
	if err = json.Unmarshal(checks, &schema.Checks); err != nil {
		return nil, fmt.Errorf("cannot unmarshal schema checks: %w", err)
	}
	if err = json.Unmarshal(admitAfter, &schema.AdmitAfter); err != nil {
		return nil, fmt.Errorf("cannot unmarshal admission rules: %w", err)
	}
	if err = json.Unmarshal(tree, &schema.Tree); err != nil {
		return nil, fmt.Errorf("cannot unmarshal schema tree: %w", err)
	}

	return &schema, nil
}
