// Package jsonfile provides a history source backed by a JSON export file.
//
// This file registers the JSON file source with the source registry.
// Import this package with a blank identifier to register the source:
//
//	import _ "github.com/querylens/querylens/internal/history/sources/jsonfile"
package jsonfile

import (
	"log/slog"

	"github.com/querylens/querylens/internal/history"
)

func init() {
	history.Register("json", func(logger *slog.Logger) history.Source { return New(logger) })
}
