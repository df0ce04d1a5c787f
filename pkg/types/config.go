// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for backend requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with backend requests
	// (e.g. "kbctl/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// BackendConfig holds settings for the knowledge-index service.
type BackendConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the service root, e.g. "http://localhost:5000".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Token is an optional bearer token. Usually loaded from
	// .secrets/kb-api-token rather than the config file.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`

	// MaxRetries bounds retry attempts on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// IndexConfig holds client-side limits and the polling cadence.
type IndexConfig struct {
	// MaxIndexes caps how many indexes the client will ask the backend
	// to create (default 7). The backend is the source of truth for the
	// list itself.
	MaxIndexes int `json:"max_indexes" yaml:"max_indexes" mapstructure:"max_indexes"`

	// PollInterval is the indexing job status cadence (default 5s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
}

// StateConfig locates the durable client state.
type StateConfig struct {
	// Dir is the directory holding state.db and the session lock
	// (default ~/.local/share/kbctl).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// ClientConfig groups all kbctl configuration.
type ClientConfig struct {
	Backend BackendConfig `json:"backend" yaml:"backend" mapstructure:"backend"`
	Index   IndexConfig   `json:"index" yaml:"index" mapstructure:"index"`
	State   StateConfig   `json:"state" yaml:"state" mapstructure:"state"`
}

// Defaults fills zero-valued fields with working defaults.
func (c *ClientConfig) Defaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:5000"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = "kbctl/0.1"
	}
	if c.Backend.MaxRetries <= 0 {
		c.Backend.MaxRetries = 5
	}
	if c.Index.MaxIndexes <= 0 {
		c.Index.MaxIndexes = 7
	}
	if c.Index.PollInterval <= 0 {
		c.Index.PollInterval = 5 * time.Second
	}
}
