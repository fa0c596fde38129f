// Package postgres provides a history source backed by PostgreSQL's
// pg_stat_statements view.
//
// This file registers the PostgreSQL source with the source registry.
// Import this package with a blank identifier to register the source:
//
//	import _ "github.com/querylens/querylens/internal/history/sources/postgres"
package postgres

import (
	"log/slog"

	"github.com/querylens/querylens/internal/history"
)

func init() {
	history.Register("postgres", func(logger *slog.Logger) history.Source { return New(logger) })
}
