package postgres

import (
	"database/sql"
	"io"

	"github.com/go-kit/kit/log"
)

// NewClient returns a new Postgres client to manage repositories.
func NewClient(options ...ConfigOption) *Client {
	c := Client{
		logger:            log.NewNopLogger(),
		processRepository: &ProcessRepository{},
		tokenRepository:   &RefreshTokenRepository{},
		schemaRepository:  &SchemaRepository{},
	}

	for _, opt := range options {
		opt(&c)
	}

	c.createQueries()

	// Each repository has an embedded client to ensure they
	// use the same connection and are able to share transactions.
	c.processRepository.client = &c
	c.tokenRepository.client = &c
	c.schemaRepository.client = &c

	return &c
}

// ConfigOption configures the Client.
type ConfigOption func(*Client)

// WithLogger configures the client with a Logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithEntropy configures the client with random entropy
// for generating ULIDs.
func WithEntropy(entropy io.Reader) ConfigOption {
	return func(c *Client) {
		c.entropy = entropy
	}
}

// WithDB configures the client with a Postgres DB.
func WithDB(db *sql.DB) ConfigOption {
	return func(c *Client) {
		c.db = db
	}
}
