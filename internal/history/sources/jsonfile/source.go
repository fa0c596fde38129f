// Package jsonfile provides a history source backed by a JSON export file.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/querylens/querylens/internal/history"
)

// Source implements the history.Source interface for JSON export files.
// The file holds either a bare array of entries or an object with an
// "entries" array.
type Source struct {
	logger *slog.Logger
	path   string
}

// New creates a new JSON file source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{logger: logger}
}

// Open validates that the history file exists.
func (s *Source) Open(_ context.Context, cfg history.Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("json source requires a path")
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to stat history file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("history path %s is a directory", cfg.Path)
	}

	s.path = cfg.Path
	return nil
}

// Close releases nothing; the file is re-read on every Entries call.
func (s *Source) Close() error { return nil }

// Entries reads and decodes the history file. Re-reading on every call
// lets a file watcher trigger rebuilds from fresh content.
func (s *Source) Entries(_ context.Context) ([]history.Entry, error) {
	if s.path == "" {
		return nil, fmt.Errorf("source not opened")
	}

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return decode(data)
}

func decode(data []byte) ([]history.Entry, error) {
	var entries []history.Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Entries []history.Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}
	return wrapped.Entries, nil
}

// Ensure Source implements history.Source interface
var _ history.Source = (*Source)(nil)
