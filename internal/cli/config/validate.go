package config

import (
	"fmt"
	"strings"

	"github.com/querylens/querylens/internal/history"
)

// ValidateSource checks that a source config names a registered source type.
// The type is matched case-insensitively.
func ValidateSource(src *history.Config) error {
	if src == nil || strings.TrimSpace(src.Type) == "" {
		return fmt.Errorf("source type is required\nHint: Set source.type in querylens.yaml or pass --source")
	}
	if !history.IsRegistered(strings.ToLower(strings.TrimSpace(src.Type))) {
		return &history.UnknownSourceError{
			Type:      src.Type,
			Available: history.ListSources(),
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Only the source type is checked here; path existence is left to
	// the command that actually opens the source, so help and snapshot
	// commands work without a readable history store.
	return ValidateSource(c.Source)
}
