package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/querylens/querylens/internal/cli/config"
	"github.com/querylens/querylens/internal/cli/output"
	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/internal/state"

	// Import source packages to ensure sources are registered via init()
	_ "github.com/querylens/querylens/internal/history/sources/duckdb"
	_ "github.com/querylens/querylens/internal/history/sources/jsonfile"
	_ "github.com/querylens/querylens/internal/history/sources/postgres"
	_ "github.com/querylens/querylens/internal/history/sources/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext assembles the dependencies commands share.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// OpenSource creates and opens a history source.
// Returns the source and a cleanup function that must be called (typically via defer).
func (c *CommandContext) OpenSource(ctx context.Context, srcCfg *history.Config) (history.Source, func(), error) {
	src, err := history.NewSource(*srcCfg, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := src.Open(ctx, *srcCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to open %s source: %w", srcCfg.Type, err)
	}

	cleanup := func() {
		_ = src.Close()
	}
	return src, cleanup, nil
}

// OpenStore opens the snapshot store at the configured state path,
// creating the parent directory and applying migrations.
// Returns the store and a cleanup function that must be called (typically via defer).
func (c *CommandContext) OpenStore() (*state.Store, func(), error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	return &config.Config{
		Source: &history.Config{
			Type: getEnvOrDefault("QUERYLENS_SOURCE_TYPE", config.DefaultSourceType),
			Path: getEnvOrDefault("QUERYLENS_SOURCE_PATH", config.DefaultSourcePath),
		},
		StatePath:    getEnvOrDefault("QUERYLENS_STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv("QUERYLENS_VERBOSE") == "true",
		OutputFormat: os.Getenv("QUERYLENS_OUTPUT"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
