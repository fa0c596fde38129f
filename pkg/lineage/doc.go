// Package lineage builds a directed lineage graph from a log of
// executed SQL statements.
//
// Each history entry is scanned with the tolerant primitives from
// pkg/sqlscan rather than parsed: the goal is to recover which tables
// and columns a statement read or wrote across messy, dialect-varying
// real-world SQL, never to validate it. Per-statement results fold into
// a single graph of Query, Table, and Column nodes whose edges carry
// execution counts and accumulated durations, plus a stats record that
// accounts for every input entry.
//
// # Basic Usage
//
//	entries := []lineage.Entry{
//	    {SQL: "SELECT id, name FROM users WHERE id = 1", DurationMs: 10},
//	}
//	result := lineage.Build(entries, lineage.Options{})
//
//	for _, node := range result.GraphData.Nodes {
//	    fmt.Printf("%s (%s)\n", node.ID, node.Type)
//	}
//
// Build never fails: malformed statements are counted under
// stats.skippedByReason and contribute nothing.
package lineage
