package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// BaseSQLSource provides common database/sql functionality for sources.
// Embed this struct in concrete source implementations to get standard
// Close and row-scanning implementations.
type BaseSQLSource struct {
	DB     *sql.DB
	Cfg    Config
	Query  string
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLSource) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing history database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLSource) IsConnected() bool {
	return b.DB != nil
}

// ScanEntries runs the configured query and reads its rows. The query
// must return three columns: the statement text, the duration in
// milliseconds, and an optional content hash. NULLs scan as zero values.
func (b *BaseSQLSource) ScanEntries(ctx context.Context) ([]Entry, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, b.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			text     sql.NullString
			duration sql.NullFloat64
			hash     sql.NullString
		)
		if err := rows.Scan(&text, &duration, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, Entry{
			SQL:        text.String,
			DurationMs: duration.Float64,
			Hash:       hash.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}
