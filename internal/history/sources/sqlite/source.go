// Package sqlite provides a history source backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/querylens/querylens/internal/history"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// defaultQuery reads the desktop client's history table.
const defaultQuery = `SELECT sql, duration_ms, hash FROM query_history ORDER BY executed_at`

// Source implements the history.Source interface for SQLite history
// databases.
type Source struct {
	history.BaseSQLSource
}

// New creates a new SQLite source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSQLSource: history.BaseSQLSource{Logger: logger},
	}
}

// Open establishes a read-only connection to the SQLite database.
func (s *Source) Open(ctx context.Context, cfg history.Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("sqlite source requires a path")
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?mode=ro", cfg.Path)
	}

	s.Logger.Debug("opening sqlite history database", slog.String("path", cfg.Path))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
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
