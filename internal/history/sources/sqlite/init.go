// Package sqlite provides a history source backed by a SQLite database.
//
// This file registers the SQLite source with the source registry.
// Import this package with a blank identifier to register the source:
//
//	import _ "github.com/querylens/querylens/internal/history/sources/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/querylens/querylens/internal/history"
)

func init() {
	history.Register("sqlite", func(logger *slog.Logger) history.Source { return New(logger) })
}
