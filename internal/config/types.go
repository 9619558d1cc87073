// Package config defines the persisted configuration document for
// cqldesk: connection profiles, query variables, saved queries and user
// settings. The document is human-readable YAML, loaded with koanf and
// written back on every mutating operation. Reads are forward-compatible:
// unknown fields are ignored and missing optional fields take defaults.
package config

import (
	"fmt"
	"time"
)

// Connection defaults, matching the wire protocol's conventions.
const (
	DefaultPort             = 9042
	DefaultConnectTimeoutMS = 5000
	DefaultRequestTimeoutMS = 12000
	DefaultPageSize         = 100
	DefaultHistoryLimit     = 100
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// ConnectionConfig describes one cluster connection profile.
type ConnectionConfig struct {
	ID       string `koanf:"id" yaml:"id"`
	Name     string `koanf:"name" yaml:"name"`
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port"`
	Username string `koanf:"username" yaml:"username,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Keyspace string `koanf:"keyspace" yaml:"keyspace,omitempty"`
	TLS      bool   `koanf:"tls" yaml:"tls,omitempty"`

	ConnectTimeoutMS int `koanf:"connect_timeout_ms" yaml:"connect_timeout_ms,omitempty"`
	RequestTimeoutMS int `koanf:"request_timeout_ms" yaml:"request_timeout_ms,omitempty"`
	PageSize         int `koanf:"page_size" yaml:"page_size,omitempty"`
}

// ApplyDefaults fills zero-valued optional fields.
func (c *ConnectionConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeoutMS == 0 {
		c.ConnectTimeoutMS = DefaultConnectTimeoutMS
	}
	if c.RequestTimeoutMS == 0 {
		c.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// Validate checks the fields a connection cannot work without.
func (c *ConnectionConfig) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if c.Host == "" {
		return &ValidationError{Field: "host", Detail: "must not be empty"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ValidationError{Field: "port", Detail: fmt.Sprintf("%d is outside 1-65535", c.Port)}
	}
	return nil
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *ConnectionConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *ConnectionConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Variable is a named substitution value for {{name}} placeholders.
type Variable struct {
	Name  string `koanf:"name" yaml:"name"`
	Value string `koanf:"value" yaml:"value"`
}

// SavedQuery is a user-named CQL snippet.
type SavedQuery struct {
	ID    string `koanf:"id" yaml:"id"`
	Name  string `koanf:"name" yaml:"name"`
	Query string `koanf:"query" yaml:"query"`
}

// Settings holds user preferences the core needs.
type Settings struct {
	HistoryLimit int    `koanf:"history_limit" yaml:"history_limit,omitempty"`
	HistoryPath  string `koanf:"history_path" yaml:"history_path,omitempty"`
	PageSize     int    `koanf:"page_size" yaml:"page_size,omitempty"`
}

// ApplyDefaults fills zero-valued settings.
func (s *Settings) ApplyDefaults() {
	if s.HistoryLimit == 0 {
		s.HistoryLimit = DefaultHistoryLimit
	}
	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}
}

// Document is the root of the persisted configuration file.
type Document struct {
	Connections  []ConnectionConfig `koanf:"connections" yaml:"connections"`
	Variables    []Variable         `koanf:"variables" yaml:"variables,omitempty"`
	SavedQueries []SavedQuery       `koanf:"saved_queries" yaml:"saved_queries,omitempty"`
	Settings     Settings           `koanf:"settings" yaml:"settings,omitempty"`
}

// VariableMap returns variables as a name→value map for substitution.
func (d *Document) VariableMap() map[string]string {
	vars := make(map[string]string, len(d.Variables))
	for _, v := range d.Variables {
		vars[v.Name] = v.Value
	}
	return vars
}
