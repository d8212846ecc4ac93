package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	auth "github.com/eidcore/authsteps"
)

func seedSchema(c *Client, schema *auth.AuthSchema) error {
	query := `
		INSERT INTO auth_schema (code, title, methods, checks, admit_after, tree)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	docs := make([][]byte, 0, 4)
	for _, v := range []interface{}{schema.Methods, schema.Checks, schema.AdmitAfter, schema.Tree} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		docs = append(docs, b)
	}

	_, err := c.db.Exec(query, schema.Code, schema.Title, docs[0], docs[1], docs[2], docs[3])
	return err
}

func TestSchemaRepo_ByCode(t *testing.T) {
	dbName := "schema_repo_by_code_test"
	c, err := NewTestClient(dbName)
	if err != nil {
		t.Fatal("failed to create test database:", err)
	}
	defer DropTestDB(c, dbName)

	schema := &auth.AuthSchema{
		Code:    auth.SchemaAuthorization,
		Title:   "Device authorization",
		Methods: []auth.Method{auth.MethodBankID, auth.MethodPhotoID},
		Checks:  []auth.CheckCode{auth.CheckDocumentPossession, auth.CheckMinimumAge},
		AdmitAfter: []auth.AdmitRule{
			{Code: auth.SchemaAuthorization, AdmitAfterStatus: auth.StatusCompleted},
		},
		Tree: map[auth.Method]*auth.SchemaNode{
			auth.MethodBankID: {
				Policy:    auth.StepPolicy{MaxAttempts: 3, MaxVerifyAttempts: 3, TTL: 5 * time.Minute},
				Condition: auth.ConditionBankAuth,
				Children: map[auth.Method]*auth.SchemaNode{
					auth.MethodPhotoID: {
						Policy:    auth.StepPolicy{MaxAttempts: 3, MaxVerifyAttempts: 5, TTL: 10 * time.Minute},
						Condition: auth.ConditionPhoto,
					},
				},
			},
		},
	}
	if err = seedSchema(c, schema); err != nil {
		t.Fatal("failed to seed schema:", err)
	}

	ctx := context.Background()
	found, err := c.Schema().ByCode(ctx, auth.SchemaAuthorization)
	if err != nil {
		t.Fatal("failed to retrieve schema:", err)
	}

	if !cmp.Equal(found, schema) {
		t.Error("schema does not match", cmp.Diff(found, schema))
	}

	node := found.Node(auth.MethodBankID)
	if node == nil {
		t.Fatal("first level method is missing from tree")
	}
	if node.Children[auth.MethodPhotoID] == nil {
		t.Error("second level method is missing from tree")
	}
}

func TestSchemaRepo_ByCodeNotFound(t *testing.T) {
	dbName := "schema_repo_not_found_test"
	c, err := NewTestClient(dbName)
	if err != nil {
		t.Fatal("failed to create test database:", err)
	}
	defer DropTestDB(c, dbName)

	ctx := context.Background()
	_, err = c.Schema().ByCode(ctx, auth.SchemaSigning)
	if auth.ErrorCode(err) != auth.ENotFound {
		t.Error("expected not found, got", err)
	}
}
