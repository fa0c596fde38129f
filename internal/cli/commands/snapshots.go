package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/querylens/querylens/internal/state"
)

// NewSnapshotsCommand creates the snapshots command group.
func NewSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage saved lineage snapshots",
		Long: `Manage lineage snapshots saved with build --save or through the API.

Snapshots are stored in the state database (see state_path) and keep the
full graph, so an earlier build can be inspected or compared later.`,
	}

	cmd.AddCommand(newSnapshotsListCommand())
	cmd.AddCommand(newSnapshotsShowCommand())
	cmd.AddCommand(newSnapshotsDeleteCommand())
	cmd.AddCommand(newSnapshotsPruneCommand())

	return cmd
}

func newSnapshotsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		Example: `  # All snapshots
  querylens snapshots list

  # Only the five most recent
  querylens snapshots list --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshotsList(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of snapshots to list (0 = all)")

	return cmd
}

func runSnapshotsList(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, closeStore, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snaps, err := store.ListSnapshots(limit)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if r.IsJSON() {
		return r.JSON(snaps)
	}

	if len(snaps) == 0 {
		r.Println("No snapshots saved. Use 'querylens build --save <name>' to create one.")
		return nil
	}

	t := r.NewTable()
	t.AppendHeader(table.Row{"ID", "Name", "Created", "View mode", "Nodes", "Edges", "Coverage"})
	for _, snap := range snaps {
		t.AppendRow(table.Row{
			snap.ID,
			snap.Name,
			snap.CreatedAt.Format(time.RFC3339),
			snap.ViewMode,
			snap.NodeCount,
			snap.EdgeCount,
			fmt.Sprintf("%.1f%%", snap.CoveragePct),
		})
	}
	r.RenderTable(t)

	return nil
}

func newSnapshotsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Show a snapshot including its graph summary",
		Example: `  # By name
  querylens snapshots show nightly

  # Full graph as JSON
  querylens snapshots show nightly --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotsShow(cmd, args[0])
		},
	}
}

func runSnapshotsShow(cmd *cobra.Command, ref string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, closeStore, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := resolveSnapshot(store, ref)
	if err != nil {
		return err
	}

	if r.IsJSON() {
		return r.JSON(snap)
	}

	r.Println(r.Styles().Bold.Render(fmt.Sprintf("Snapshot %q", snap.Name)))
	t := r.NewTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"ID", snap.ID})
	t.AppendRow(table.Row{"Created", snap.CreatedAt.Format(time.RFC3339)})
	t.AppendRow(table.Row{"View mode", snap.ViewMode})
	r.RenderTable(t)
	r.Println()

	renderBuildResult(r, snap.Result)

	return nil
}

func newSnapshotsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name-or-id>",
		Short: "Delete a saved snapshot",
		Example: `  querylens snapshots delete nightly`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotsDelete(cmd, args[0])
		},
	}
}

func runSnapshotsDelete(cmd *cobra.Command, ref string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, closeStore, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := resolveSnapshot(store, ref)
	if err != nil {
		return err
	}

	if err := store.DeleteSnapshot(snap.ID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	if r.IsJSON() {
		return r.JSON(map[string]any{"deleted": true, "id": snap.ID, "name": snap.Name})
	}

	r.Printf("Deleted snapshot %q (%s)\n", snap.Name, snap.ID)
	return nil
}

func newSnapshotsPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent snapshots",
		Example: `  # Keep the ten most recent snapshots
  querylens snapshots prune

  # Keep only the last three
  querylens snapshots prune --keep 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshotsPrune(cmd, keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "Number of snapshots to keep")

	return cmd
}

func runSnapshotsPrune(cmd *cobra.Command, keep int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if keep < 0 {
		return fmt.Errorf("--keep must be zero or greater, got %d", keep)
	}

	store, closeStore, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.PruneSnapshots(keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if r.IsJSON() {
		return r.JSON(map[string]any{"removed": removed, "kept": keep})
	}

	r.Printf("Removed %d snapshot(s), keeping at most %d\n", removed, keep)
	return nil
}

// resolveSnapshot looks up a snapshot by ID first, then by name.
func resolveSnapshot(store *state.Store, ref string) (*state.Snapshot, error) {
	snap, err := store.GetSnapshot(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		snap, err = store.GetSnapshotByName(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
	}
	if snap == nil {
		return nil, fmt.Errorf("snapshot not found: %s\nHint: Run 'querylens snapshots list' to see saved snapshots", ref)
	}
	return snap, nil
}
