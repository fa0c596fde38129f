package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/querylens/querylens/internal/cli/output"
	"github.com/querylens/querylens/pkg/lineage"
)

// topTableLimit caps the per-table ranking in the text summary.
const topTableLimit = 10

// renderBuildResult renders a build result as a readable summary:
// overall stats, the skip breakdown, and the most referenced tables.
func renderBuildResult(r *output.Renderer, result *lineage.Result) {
	stats := result.Stats

	r.Println(r.Styles().Bold.Render("Lineage graph"))

	tw := r.NewTable()
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Source entries", stats.SourceEntries})
	tw.AppendRow(table.Row{"Consumed entries", stats.ConsumedEntries})
	tw.AppendRow(table.Row{"Skipped entries", stats.SkippedEntries})
	tw.AppendRow(table.Row{"Coverage", fmt.Sprintf("%.1f%%", stats.CoveragePct)})
	tw.AppendRow(table.Row{"Total execution", fmt.Sprintf("%.2f ms", stats.TotalExecutionMs)})
	tw.AppendRow(table.Row{"Avg execution", fmt.Sprintf("%.2f ms", stats.AvgExecutionMs)})
	tw.AppendRow(table.Row{"Nodes", len(result.Graph.Nodes)})
	tw.AppendRow(table.Row{"Edges", stats.EdgeCount})
	r.RenderTable(tw)

	if stats.SkippedEntries > 0 {
		r.Println()
		r.Println(r.Styles().Bold.Render("Skipped by reason"))
		st := r.NewTable()
		st.AppendHeader(table.Row{"Reason", "Count"})
		appendSkipRow(st, "empty query", stats.SkippedByReason.EmptyQuery)
		appendSkipRow(st, "multi-statement", stats.SkippedByReason.MultiStatement)
		appendSkipRow(st, "unsupported type", stats.SkippedByReason.UnsupportedType)
		appendSkipRow(st, "no table reference", stats.SkippedByReason.NoTableReference)
		appendSkipRow(st, "filtered out", stats.SkippedByReason.FilteredOut)
		appendSkipRow(st, "parse error", stats.SkippedByReason.ParseError)
		r.RenderTable(st)
	}

	tops := topTables(&result.Graph, topTableLimit)
	if len(tops) > 0 {
		r.Println()
		r.Println(r.Styles().Bold.Render("Most referenced tables"))
		tt := r.NewTable()
		tt.AppendHeader(table.Row{"Table", "Queries", "Executions", "Total ms"})
		for _, u := range tops {
			tt.AppendRow(table.Row{u.ID, u.Queries, u.Executions, fmt.Sprintf("%.2f", u.TotalDurationMs)})
		}
		r.RenderTable(tt)
	}
}

// appendSkipRow adds a reason row, omitting zero counts.
func appendSkipRow(t table.Writer, reason string, count int) {
	if count == 0 {
		return
	}
	t.AppendRow(table.Row{reason, count})
}

// tableUsage aggregates the edges touching one table node.
type tableUsage struct {
	ID              string
	Queries         int
	Executions      int
	TotalDurationMs float64
}

// topTables ranks table nodes by how many edges touch them. In the
// collapsed table-only view both edge endpoints are tables, so an edge
// counts for each table endpoint.
func topTables(g *lineage.Graph, limit int) []tableUsage {
	tables := make(map[string]*tableUsage)
	for _, n := range g.Nodes {
		if n.NodeType == lineage.NodeTable {
			tables[n.ID] = &tableUsage{ID: n.ID}
		}
	}
	if len(tables) == 0 {
		return nil
	}

	for _, e := range g.Edges {
		for _, end := range []string{e.Source, e.Target} {
			if u, ok := tables[end]; ok {
				u.Queries++
				u.Executions += e.ExecutionCount
				u.TotalDurationMs += e.TotalDurationMs
			}
		}
	}

	usage := make([]tableUsage, 0, len(tables))
	for _, u := range tables {
		usage = append(usage, *u)
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Queries != usage[j].Queries {
			return usage[i].Queries > usage[j].Queries
		}
		if usage[i].Executions != usage[j].Executions {
			return usage[i].Executions > usage[j].Executions
		}
		return usage[i].ID < usage[j].ID
	})
	if len(usage) > limit {
		usage = usage[:limit]
	}
	return usage
}
