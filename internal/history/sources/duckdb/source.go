// Package duckdb provides a history source backed by a DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/querylens/querylens/internal/history"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// defaultQuery reads the client's history table from a DuckDB file.
const defaultQuery = `SELECT sql, duration_ms, hash FROM query_history ORDER BY executed_at`

// Source implements the history.Source interface for DuckDB databases.
type Source struct {
	history.BaseSQLSource
}

// New creates a new DuckDB source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSQLSource: history.BaseSQLSource{Logger: logger},
	}
}

// Open establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (s *Source) Open(ctx context.Context, cfg history.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?access_mode=read_only"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	s.Query = cfg.Query
	if s.Query == "" {
		s.Query = defaultQuery
	}
	return nil
}

// Entries reads all history rows.
func (s *Source) Entries(ctx context.Context) ([]history.Entry, error) {
	return s.ScanEntries(ctx)
}

// Ensure Source implements history.Source interface
var _ history.Source = (*Source)(nil)
