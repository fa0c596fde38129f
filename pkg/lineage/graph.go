package lineage

import (
	"math"
	"strings"
)

// NodeType distinguishes the three vertex kinds of the lineage graph.
type NodeType string

const (
	NodeTable  NodeType = "Table"
	NodeColumn NodeType = "Column"
	NodeQuery  NodeType = "Query"
)

// EdgeType carries the access kind an edge represents. Unknown is
// reserved for references no heuristic could classify; the current
// resolver drops those instead, so it is never emitted.
type EdgeType string

const (
	EdgeSelect  EdgeType = "Select"
	EdgeInsert  EdgeType = "Insert"
	EdgeUpdate  EdgeType = "Update"
	EdgeDelete  EdgeType = "Delete"
	EdgeUnknown EdgeType = "Unknown"
)

// Node is one vertex. Table and Column nodes are keyed by canonical id,
// Query nodes by statement type and content hash, so a statement run
// twice lands on the same node with its counters bumped.
type Node struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeType  NodeType  `json:"node_type"`
	Schema    string    `json:"schema,omitempty"`
	Table     string    `json:"table,omitempty"`
	QueryType QueryType `json:"query_type,omitempty"`
	SQL       string    `json:"sql,omitempty"`

	ExecutionCount  int     `json:"execution_count,omitempty"`
	TotalDurationMs float64 `json:"total_duration_ms,omitempty"`
	AvgDurationMs   float64 `json:"avg_duration_ms,omitempty"`
}

// Edge is one directed relation, keyed by (source, target, type).
// Repeat observations increment ExecutionCount and accumulate duration;
// AvgDurationMs is derived once at finalize.
type Edge struct {
	Source          string   `json:"source"`
	Target          string   `json:"target"`
	EdgeType        EdgeType `json:"edge_type"`
	ExecutionCount  int      `json:"execution_count"`
	TotalDurationMs float64  `json:"total_duration_ms"`
	AvgDurationMs   float64  `json:"avg_duration_ms"`
}

// Meta describes how the graph was built.
type Meta struct {
	ViewMode ViewMode `json:"view_mode"`
}

// Graph is the finished lineage graph. Cycles is reserved for a future
// strongly-connected-components pass and is always empty.
type Graph struct {
	Nodes  []Node     `json:"nodes"`
	Edges  []Edge     `json:"edges"`
	Cycles [][]string `json:"cycles"`
	Meta   Meta       `json:"meta"`
}

type edgeKey struct {
	source string
	target string
	kind   EdgeType
}

// graphBuilder owns the node and edge maps of one build. Insertion
// order is tracked so the finished slices come out deterministic for
// identical input.
type graphBuilder struct {
	mode      ViewMode
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey
}

func newGraphBuilder(mode ViewMode) *graphBuilder {
	return &graphBuilder{
		mode:  mode,
		nodes: make(map[string]*Node),
		edges: make(map[edgeKey]*Edge),
	}
}

// addNode inserts n unless a node with the same id exists, and returns
// the node that is in the graph.
func (g *graphBuilder) addNode(n Node) *Node {
	if existing, ok := g.nodes[n.ID]; ok {
		return existing
	}
	stored := n
	g.nodes[n.ID] = &stored
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return &stored
}

func (g *graphBuilder) addTable(id string) *Node {
	name, schema := id, ""
	if i := strings.LastIndex(id, "."); i >= 0 {
		schema, name = id[:i], id[i+1:]
	}
	return g.addNode(Node{ID: id, Name: name, NodeType: NodeTable, Schema: schema})
}

func (g *graphBuilder) addColumn(table, column string) *Node {
	owner := g.addTable(table)
	return g.addNode(Node{
		ID:       table + "." + column,
		Name:     column,
		NodeType: NodeColumn,
		Schema:   owner.Schema,
		Table:    table,
	})
}

func (g *graphBuilder) addQuery(id string, kind QueryType, sql string) *Node {
	return g.addNode(Node{
		ID:        id,
		Name:      snippet(sql, 60),
		NodeType:  NodeQuery,
		QueryType: kind,
		SQL:       sql,
	})
}

// touchQuery records one execution on a Query node.
func (g *graphBuilder) touchQuery(n *Node, durationMs float64) {
	n.ExecutionCount++
	n.TotalDurationMs += durationMs
}

// addEdge records one traversal of (source, target, kind). Self-edges
// and edges with a missing endpoint are ignored.
func (g *graphBuilder) addEdge(source, target string, kind EdgeType, durationMs float64) {
	if source == "" || target == "" || source == target {
		return
	}
	key := edgeKey{source: source, target: target, kind: kind}
	e, ok := g.edges[key]
	if !ok {
		e = &Edge{Source: source, Target: target, EdgeType: kind}
		g.edges[key] = e
		g.edgeOrder = append(g.edgeOrder, key)
	}
	e.ExecutionCount++
	e.TotalDurationMs += durationMs
}

// finalize snapshots the builder into a Graph, computing averages and
// rounding all durations to two decimals.
func (g *graphBuilder) finalize() Graph {
	nodes := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		n := *g.nodes[id]
		if n.NodeType == NodeQuery {
			n.AvgDurationMs = round2(n.TotalDurationMs / float64(max(n.ExecutionCount, 1)))
			n.TotalDurationMs = round2(n.TotalDurationMs)
		}
		nodes = append(nodes, n)
	}
	edges := make([]Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		e := *g.edges[key]
		e.AvgDurationMs = round2(e.TotalDurationMs / float64(max(e.ExecutionCount, 1)))
		e.TotalDurationMs = round2(e.TotalDurationMs)
		edges = append(edges, e)
	}
	return Graph{
		Nodes:  nodes,
		Edges:  edges,
		Cycles: [][]string{},
		Meta:   Meta{ViewMode: g.mode},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// snippet collapses whitespace and truncates sql for use as a node
// label, backing off to a rune boundary so no character is cut in half.
func snippet(sql string, limit int) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) <= limit {
		return s
	}
	for limit > 0 && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit] + "..."
}
