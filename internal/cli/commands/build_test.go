package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens/querylens/internal/cli/config"
	"github.com/querylens/querylens/internal/state"
	"github.com/querylens/querylens/pkg/lineage"
)

// writeHistoryFile writes a small JSON history export and points the
// command environment at it.
func writeHistoryFile(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	historyPath := filepath.Join(tmpDir, "history.json")
	historyJSON := `[
		{"sql": "INSERT INTO orders SELECT * FROM staging_orders", "duration_ms": 12.5},
		{"sql": "SELECT id, total FROM orders WHERE total > 10", "duration_ms": 3.2},
		{"sql": "", "duration_ms": 1.0}
	]`
	require.NoError(t, os.WriteFile(historyPath, []byte(historyJSON), 0600))

	config.ResetConfig()
	t.Setenv("QUERYLENS_SOURCE_TYPE", "json")
	t.Setenv("QUERYLENS_SOURCE_PATH", historyPath)
	t.Setenv("QUERYLENS_STATE_PATH", filepath.Join(tmpDir, "state.db"))
	t.Setenv("QUERYLENS_OUTPUT", "json")

	return tmpDir
}

func TestBuildCommand_JSONOutput(t *testing.T) {
	writeHistoryFile(t)

	cmd := NewBuildCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var result lineage.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), "output should be valid JSON: %s", out.String())

	assert.Equal(t, 3, result.Stats.SourceEntries)
	assert.Equal(t, 2, result.Stats.ConsumedEntries)
	assert.Equal(t, 1, result.Stats.SkippedEntries)

	ids := make(map[string]bool)
	for _, n := range result.Graph.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["orders"], "graph should contain the orders table, got: %v", ids)
	assert.True(t, ids["staging_orders"], "graph should contain the staging_orders table")
}

func TestBuildCommand_ViewModeFlag(t *testing.T) {
	writeHistoryFile(t)

	cmd := NewBuildCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--view-mode", "TABLE_ONLY"})

	require.NoError(t, cmd.Execute())

	var result lineage.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))

	assert.Equal(t, "TABLE_ONLY", string(result.Graph.Meta.ViewMode))
	for _, n := range result.Graph.Nodes {
		assert.Equal(t, lineage.NodeTable, n.NodeType, "table-only view should contain only table nodes")
	}
}

func TestBuildCommand_UnknownSourceType(t *testing.T) {
	writeHistoryFile(t)

	cmd := NewBuildCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--type", "mysql"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown history source type")
}

func TestBuildCommand_SaveAndSnapshotsLifecycle(t *testing.T) {
	writeHistoryFile(t)

	// build --save writes a snapshot and confirms on stderr
	build := NewBuildCommand()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	build.SetOut(out)
	build.SetErr(errOut)
	build.SetArgs([]string{"--save", "nightly"})

	require.NoError(t, build.Execute())
	assert.Contains(t, errOut.String(), `Saved snapshot "nightly"`)

	var result lineage.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), "stdout should stay parseable JSON")

	// snapshots list shows it
	list := newSnapshotsListCommand()
	out = new(bytes.Buffer)
	list.SetOut(out)
	list.SetErr(new(bytes.Buffer))

	require.NoError(t, list.Execute())

	var snaps []*state.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "nightly", snaps[0].Name)
	assert.Nil(t, snaps[0].Result, "list should not carry full graphs")

	// snapshots show resolves by name and includes the graph
	show := newSnapshotsShowCommand()
	out = new(bytes.Buffer)
	show.SetOut(out)
	show.SetErr(new(bytes.Buffer))
	show.SetArgs([]string{"nightly"})

	require.NoError(t, show.Execute())

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.NotNil(t, snap.Result)
	assert.Equal(t, result.Stats.ConsumedEntries, snap.Result.Stats.ConsumedEntries)

	// snapshots delete removes it
	del := newSnapshotsDeleteCommand()
	del.SetOut(new(bytes.Buffer))
	del.SetErr(new(bytes.Buffer))
	del.SetArgs([]string{"nightly"})

	require.NoError(t, del.Execute())

	list = newSnapshotsListCommand()
	out = new(bytes.Buffer)
	list.SetOut(out)
	list.SetErr(new(bytes.Buffer))

	require.NoError(t, list.Execute())
	snaps = nil
	require.NoError(t, json.Unmarshal(out.Bytes(), &snaps))
	assert.Empty(t, snaps)
}

func TestSnapshotsShow_NotFound(t *testing.T) {
	writeHistoryFile(t)

	show := newSnapshotsShowCommand()
	show.SetOut(new(bytes.Buffer))
	show.SetErr(new(bytes.Buffer))
	show.SetArgs([]string{"missing"})

	err := show.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
}
