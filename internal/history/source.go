// Package history provides the query-history entry model and the
// pluggable sources that read entries from real stores.
//
// This package contains the public contract that all history sources must
// implement. Concrete source implementations live in sources/
// subdirectories and register themselves with the registry in their
// init() functions.
package history

import "context"

// Source defines the interface that all history sources must implement.
// A source knows how to reach one kind of store and read the statements
// it has recorded.
type Source interface {
	// Open establishes the connection to the backing store using the
	// provided config.
	Open(ctx context.Context, cfg Config) error

	// Close closes the source and releases its resources.
	Close() error

	// Entries reads every history entry currently visible in the store.
	// File-backed sources re-read the file on each call so watchers can
	// rebuild from fresh content.
	Entries(ctx context.Context) ([]Entry, error)
}

// Config describes how to reach a history store.
type Config struct {
	Type     string            `koanf:"type" yaml:"type"`
	Path     string            `koanf:"path" yaml:"path,omitempty"`
	Host     string            `koanf:"host" yaml:"host,omitempty"`
	Port     int               `koanf:"port" yaml:"port,omitempty"`
	Database string            `koanf:"database" yaml:"database,omitempty"`
	Username string            `koanf:"username" yaml:"username,omitempty"`
	Password string            `koanf:"password" yaml:"password,omitempty"`
	Query    string            `koanf:"query" yaml:"query,omitempty"`
	Options  map[string]string `koanf:"options" yaml:"options,omitempty"`
}
