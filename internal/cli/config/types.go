// Package config provides configuration management for the querylens CLI.
//
// Configuration is assembled from querylens.yaml, QUERYLENS_* environment
// variables, and command-line flags, in ascending precedence. The source
// section reuses the history.Config shape so named source definitions in
// the config file and in standalone sources files look identical.
package config

import (
	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/pkg/lineage"
)

// BuildConfig holds the graph build options from the build: section.
type BuildConfig struct {
	ViewMode      string `koanf:"view_mode"`
	QueryType     string `koanf:"query_type"`
	TableFilter   string `koanf:"table_filter"`
	DefaultSchema string `koanf:"default_schema"`
}

// Options converts the section into builder options. Unset fields keep
// the builder defaults (full view, every statement type).
func (b BuildConfig) Options() lineage.Options {
	return lineage.Options{
		QueryTypeFilter: b.QueryType,
		TableFilter:     b.TableFilter,
		DefaultSchema:   b.DefaultSchema,
		ViewMode:        lineage.ViewMode(b.ViewMode),
	}
}

// ServeConfig holds configuration for the local API server.
type ServeConfig struct {
	Port    int    `koanf:"port"`
	Watch   string `koanf:"watch"`
	Workers int    `koanf:"workers"`
}

// DefaultServeConfig returns a ServeConfig with default values.
func DefaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Port:    DefaultPort,
		Workers: DefaultWorkers,
	}
}

// GetServeConfig returns the serve config with defaults applied for any unset values.
func (c *Config) GetServeConfig() *ServeConfig {
	if c.Serve == nil {
		return DefaultServeConfig()
	}
	s := c.Serve
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	return s
}

// Config holds all CLI configuration options.
type Config struct {
	// Source is the history store commands read from by default.
	Source *history.Config `koanf:"source"`
	// Sources holds named source definitions selectable with --source.
	Sources map[string]*history.Config `koanf:"sources"`
	// SourcesFile points at an optional standalone YAML file with more
	// named definitions. Inline definitions win on name clashes.
	SourcesFile string `koanf:"sources_file"`

	Build BuildConfig  `koanf:"build"`
	Serve *ServeConfig `koanf:"serve"`

	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
}

// MergeSourceConfig merges two source configs, with override taking precedence.
func MergeSourceConfig(base, override *history.Config) *history.Config {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	// Start with a copy of base
	merged := &history.Config{
		Type:     base.Type,
		Path:     base.Path,
		Host:     base.Host,
		Port:     base.Port,
		Database: base.Database,
		Username: base.Username,
		Password: base.Password,
		Query:    base.Query,
		Options:  make(map[string]string),
	}

	for k, v := range base.Options {
		merged.Options[k] = v
	}

	// Apply overrides
	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Query != "" {
		merged.Query = override.Query
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}

	return merged
}

// Default configuration values.
const (
	DefaultSourceType = "json"
	DefaultSourcePath = "history.json"
	DefaultStateFile  = ".querylens/state.db"
	DefaultPort       = 4378
	DefaultWorkers    = 4
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
