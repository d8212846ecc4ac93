package registry

import (
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = time.Second * 10

// Config holds configuration options for the registry gateway.
type Config struct {
	BaseURL string
	APIKey  string
}

// ConfigOption configures the client.
type ConfigOption func(*Client)

// NewClient returns a registry gateway client.
func NewClient(configuration ConfigOption) *Client {
	c := Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	configuration(&c)
	return &c
}

// WithConfig configures the client with a Config.
func WithConfig(config Config) ConfigOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(config.BaseURL, "/")
		c.apiKey = config.APIKey
	}
}
