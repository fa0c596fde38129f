// Package postgres provides a history source backed by PostgreSQL's
// pg_stat_statements view.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/querylens/querylens/internal/history"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// defaultQuery reads per-statement aggregates from pg_stat_statements.
const defaultQuery = `SELECT query, mean_exec_time, calls, queryid::text FROM pg_stat_statements WHERE query IS NOT NULL`

// Source implements the history.Source interface for PostgreSQL.
// pg_stat_statements rows are pre-aggregated, so the recorded call count
// is carried on each entry and execution weights survive the conversion.
type Source struct {
	history.BaseSQLSource
}

// New creates a new PostgreSQL source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		BaseSQLSource: history.BaseSQLSource{Logger: logger},
	}
}

// Open establishes a connection to PostgreSQL.
func (s *Source) Open(ctx context.Context, cfg history.Config) error {
	dsn := buildPostgresDSN(cfg)

	s.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	s.Query = cfg.Query
	if s.Query == "" {
		s.Query = defaultQuery
	}
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg history.Config) string {
	// Build key=value format: host=localhost port=5432 dbname=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// Entries reads per-statement aggregates. The query must return four
// columns: statement text, mean execution time in milliseconds, call
// count, and an optional statement id used as the content hash.
func (s *Source) Entries(ctx context.Context) ([]history.Entry, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pg_stat_statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []history.Entry
	for rows.Next() {
		var (
			query   sql.NullString
			mean    sql.NullFloat64
			calls   sql.NullInt64
			queryID sql.NullString
		)
		if err := rows.Scan(&query, &mean, &calls, &queryID); err != nil {
			return nil, fmt.Errorf("failed to scan statement row: %w", err)
		}
		entries = append(entries, history.Entry{
			SQL:        query.String,
			DurationMs: mean.Float64,
			Hash:       queryID.String,
			Calls:      calls.Int64,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statement rows: %w", err)
	}
	return entries, nil
}

// Ensure Source implements history.Source interface
var _ history.Source = (*Source)(nil)
