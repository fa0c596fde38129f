package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querylens/querylens/internal/cli/config"
	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/pkg/lineage"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	SourceType    string
	Path          string
	Query         string
	ViewMode      string
	QueryType     string
	TableFilter   string
	DefaultSchema string
	SaveName      string
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a lineage graph from query history",
		Long: `Read query history from the configured source and build a lineage graph.

Every statement is scanned for the tables and columns it touches,
identical executions are collapsed onto shared nodes, and the resulting
graph is rendered as a summary or, with --output json, in full.`,
		Example: `  # Build from the configured source
  querylens build

  # Build from a JSON history export
  querylens build --type json --path ./history.json

  # Tables only, SELECT statements only
  querylens build --view-mode TABLE_ONLY --query-type SELECT

  # Keep only statements that touch the orders tables
  querylens build --table-filter orders

  # Save the result as a named snapshot
  querylens build --save nightly

  # Emit the full graph as JSON
  querylens build --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SourceType, "type", "", "Source type (json|sqlite|duckdb|postgres)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "Path to the history file or database")
	cmd.Flags().StringVar(&opts.Query, "query", "", "Override the history query for database sources")
	cmd.Flags().StringVar(&opts.ViewMode, "view-mode", "", "Graph granularity (FULL|TABLE_QUERY|TABLE_ONLY)")
	cmd.Flags().StringVar(&opts.QueryType, "query-type", "", "Keep only one statement type (ALL|SELECT|INSERT|UPDATE|DELETE)")
	cmd.Flags().StringVar(&opts.TableFilter, "table-filter", "", "Comma-separated substrings a statement's tables must match")
	cmd.Flags().StringVar(&opts.DefaultSchema, "default-schema", "", "Schema used to qualify bare table names")
	cmd.Flags().StringVar(&opts.SaveName, "save", "", "Save the result as a named snapshot")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	cmdCtx := NewCommandContext(cmd)

	// Flags override the configured source
	srcCfg := *cmdCtx.Cfg.Source
	if opts.SourceType != "" {
		srcCfg.Type = strings.ToLower(strings.TrimSpace(opts.SourceType))
	}
	if opts.Path != "" {
		srcCfg.Path = opts.Path
	}
	if opts.Query != "" {
		srcCfg.Query = opts.Query
	}
	if err := config.ValidateSource(&srcCfg); err != nil {
		return err
	}

	// Flags override the configured build options
	buildCfg := cmdCtx.Cfg.Build
	if opts.ViewMode != "" {
		buildCfg.ViewMode = opts.ViewMode
	}
	if opts.QueryType != "" {
		buildCfg.QueryType = opts.QueryType
	}
	if opts.TableFilter != "" {
		buildCfg.TableFilter = opts.TableFilter
	}
	if opts.DefaultSchema != "" {
		buildCfg.DefaultSchema = opts.DefaultSchema
	}

	ctx := cmd.Context()
	src, closeSource, err := cmdCtx.OpenSource(ctx, &srcCfg)
	if err != nil {
		return err
	}
	defer closeSource()

	entries, err := src.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read history entries: %w", err)
	}
	cmdCtx.Logger.Debug("read history entries", "source", srcCfg.Type, "entries", len(entries))

	result := lineage.Build(history.ToLineageEntries(entries), buildCfg.Options())

	if opts.SaveName != "" {
		store, closeStore, err := cmdCtx.OpenStore()
		if err != nil {
			return err
		}
		defer closeStore()

		snap, err := store.SaveSnapshot(opts.SaveName, result)
		if err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		// Confirmation goes to stderr so JSON output stays parseable
		cmdCtx.Renderer.Errorf("Saved snapshot %q (%s)\n", snap.Name, snap.ID)
	}

	if cmdCtx.Renderer.IsJSON() {
		return cmdCtx.Renderer.JSON(result)
	}
	renderBuildResult(cmdCtx.Renderer, result)
	return nil
}
