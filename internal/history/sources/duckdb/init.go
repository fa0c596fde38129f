// Package duckdb provides a history source backed by a DuckDB database.
//
// This file registers the DuckDB source with the source registry.
// Import this package with a blank identifier to register the source:
//
//	import _ "github.com/querylens/querylens/internal/history/sources/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/querylens/querylens/internal/history"
)

func init() {
	history.Register("duckdb", func(logger *slog.Logger) history.Source { return New(logger) })
}
