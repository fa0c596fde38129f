package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/querylens/querylens/pkg/lineage"
)

// ErrSnapshotNotFound is returned by operations that target a snapshot
// id that does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a persisted lineage build result. List operations return
// the metadata columns only; Result is populated by GetSnapshot and
// GetSnapshotByName.
type Snapshot struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CreatedAt       time.Time       `json:"createdAt"`
	ViewMode        string          `json:"viewMode"`
	NodeCount       int             `json:"nodeCount"`
	EdgeCount       int             `json:"edgeCount"`
	ConsumedEntries int             `json:"consumedEntries"`
	CoveragePct     float64         `json:"coveragePct"`
	Result          *lineage.Result `json:"result,omitempty"`
}

// SaveSnapshot stores a built result under the given name. Names are
// unique: saving under an existing name replaces the earlier snapshot.
func (s *Store) SaveSnapshot(name string, result *lineage.Result) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if name == "" {
		return nil, fmt.Errorf("snapshot name must not be empty")
	}
	if result == nil {
		return nil, fmt.Errorf("snapshot result must not be nil")
	}

	graphJSON, err := json.Marshal(result.Graph)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}

	snap := &Snapshot{
		ID:              generateID(),
		Name:            name,
		CreatedAt:       time.Now().UTC(),
		ViewMode:        string(result.Graph.Meta.ViewMode),
		NodeCount:       len(result.Graph.Nodes),
		EdgeCount:       result.Stats.EdgeCount,
		ConsumedEntries: result.Stats.ConsumedEntries,
		CoveragePct:     result.Stats.CoveragePct,
		Result:          result,
	}

	s.logger.Debug("saving snapshot", slog.String("id", snap.ID), slog.String("name", name))

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Replace any earlier snapshot with the same name
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return nil, fmt.Errorf("replace snapshot %s: %w", name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, name, created_at, view_mode, node_count, edge_count, consumed_entries, coverage_pct, graph_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Name, snap.CreatedAt, snap.ViewMode, snap.NodeCount, snap.EdgeCount,
		snap.ConsumedEntries, snap.CoveragePct, string(graphJSON), string(statsJSON))
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return snap, nil
}

// GetSnapshot retrieves a snapshot by id, including its stored result.
// Returns nil without error when no snapshot has that id.
func (s *Store) GetSnapshot(id string) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.getSnapshot(`id = ?`, id)
}

// GetSnapshotByName retrieves a snapshot by name, including its stored
// result. Returns nil without error when no snapshot has that name.
func (s *Store) GetSnapshotByName(name string) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.getSnapshot(`name = ?`, name)
}

func (s *Store) getSnapshot(where string, arg string) (*Snapshot, error) {
	snap := &Snapshot{}
	var graphJSON, statsJSON string

	err := s.db.QueryRowContext(context.Background(), `
		SELECT id, name, created_at, view_mode, node_count, edge_count, consumed_entries, coverage_pct, graph_json, stats_json
		FROM snapshots
		WHERE `+where, arg,
	).Scan(&snap.ID, &snap.Name, &snap.CreatedAt, &snap.ViewMode, &snap.NodeCount,
		&snap.EdgeCount, &snap.ConsumedEntries, &snap.CoveragePct, &graphJSON, &statsJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No snapshot exists
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	result := &lineage.Result{}
	if err := json.Unmarshal([]byte(graphJSON), &result.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &result.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	snap.Result = result

	return snap, nil
}

// ListSnapshots retrieves snapshot metadata, newest first, up to the
// given limit. A limit <= 0 means no limit.
func (s *Store) ListSnapshots(limit int) ([]*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1 // SQLite: LIMIT -1 means unlimited
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, name, created_at, view_mode, node_count, edge_count, consumed_entries, coverage_pct
		FROM snapshots
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.CreatedAt, &snap.ViewMode,
			&snap.NodeCount, &snap.EdgeCount, &snap.ConsumedEntries, &snap.CoveragePct); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return snaps, nil
}

// DeleteSnapshot removes a snapshot by id. Returns ErrSnapshotNotFound
// when no snapshot has that id.
func (s *Store) DeleteSnapshot(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(context.Background(), `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete snapshot %s: %w", id, ErrSnapshotNotFound)
	}

	return nil
}

// PruneSnapshots removes all but the newest keep snapshots and returns
// the number removed. keep <= 0 removes everything.
func (s *Store) PruneSnapshots(keep int) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(context.Background(), `
		DELETE FROM snapshots
		WHERE id NOT IN (
			SELECT id FROM snapshots
			ORDER BY created_at DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	return int(affected), nil
}
