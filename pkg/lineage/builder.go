package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"github.com/querylens/querylens/pkg/sqlscan"
)

// Entry is one executed statement fed into Build. DurationMs below zero
// or not a number counts as zero. Hash, when set, overrides the content
// hash used to aggregate identical statements.
type Entry struct {
	SQL        string  `json:"sql"`
	DurationMs float64 `json:"durationMs"`
	Hash       string  `json:"hash,omitempty"`
}

// SkipCounters breaks the skipped entries of one build down by cause.
// The fields always sum to Stats.SkippedEntries.
type SkipCounters struct {
	EmptyQuery       int `json:"emptyQuery"`
	MultiStatement   int `json:"multiStatement"`
	UnsupportedType  int `json:"unsupportedType"`
	NoTableReference int `json:"noTableReference"`
	FilteredOut      int `json:"filteredOut"`
	ParseError       int `json:"parseError"`
}

func (s SkipCounters) total() int {
	return s.EmptyQuery + s.MultiStatement + s.UnsupportedType +
		s.NoTableReference + s.FilteredOut + s.ParseError
}

// Stats summarizes one build over the source entries.
type Stats struct {
	SourceEntries    int              `json:"sourceEntries"`
	ConsumedEntries  int              `json:"consumedEntries"`
	SkippedEntries   int              `json:"skippedEntries"`
	CoveragePct      float64          `json:"coveragePct"`
	SkippedByReason  SkipCounters     `json:"skippedByReason"`
	TotalExecutionMs float64          `json:"totalExecutionMs"`
	AvgExecutionMs   float64          `json:"avgExecutionMs"`
	NodeCounts       map[NodeType]int `json:"nodeCounts"`
	EdgeCount        int              `json:"edgeCount"`
}

// Result pairs the finished graph with its build statistics.
type Result struct {
	Graph Graph `json:"graphData"`
	Stats Stats `json:"stats"`
}

type skipReason int

const (
	skipNone skipReason = iota
	skipEmptyQuery
	skipMultiStatement
	skipUnsupportedType
	skipNoTableReference
	skipFilteredOut
	skipParseError
)

func (s *SkipCounters) count(r skipReason) {
	switch r {
	case skipEmptyQuery:
		s.EmptyQuery++
	case skipMultiStatement:
		s.MultiStatement++
	case skipUnsupportedType:
		s.UnsupportedType++
	case skipNoTableReference:
		s.NoTableReference++
	case skipFilteredOut:
		s.FilteredOut++
	case skipParseError:
		s.ParseError++
	}
}

// contribution is everything one consumed entry adds to the graph.
type contribution struct {
	kind        QueryType
	queryID     string
	sql         string
	durationMs  float64
	tables      []string
	readTables  []string
	writeTarget string
	readCols    []ColumnRef
	writeCols   []ColumnRef
}

// Build scans entries in order and folds every analyzable statement
// into one lineage graph. It never fails: malformed statements are
// counted under a skip reason and the loop continues, so identical
// inputs always produce an identical result.
func Build(entries []Entry, opts Options) *Result {
	bo := opts.normalized()
	g := newGraphBuilder(bo.viewMode)

	var skips SkipCounters
	consumed := 0
	consumedMs := 0.0
	for _, e := range entries {
		c, reason := analyzeEntry(e, bo)
		if c == nil {
			skips.count(reason)
			continue
		}
		consumed++
		consumedMs += c.durationMs
		g.apply(c)
	}

	graph := g.finalize()
	stats := Stats{
		SourceEntries:    len(entries),
		ConsumedEntries:  consumed,
		SkippedEntries:   skips.total(),
		SkippedByReason:  skips,
		TotalExecutionMs: round2(consumedMs),
		NodeCounts:       make(map[NodeType]int),
		EdgeCount:        len(graph.Edges),
	}
	if len(entries) > 0 {
		stats.CoveragePct = round2(float64(consumed) / float64(len(entries)) * 100)
	}
	if consumed > 0 {
		stats.AvgExecutionMs = round2(consumedMs / float64(consumed))
	}
	for _, n := range graph.Nodes {
		stats.NodeCounts[n.NodeType]++
	}
	return &Result{Graph: graph, Stats: stats}
}

// analyzeEntry runs the scan pipeline for one entry and reports either
// a contribution or the reason the entry was skipped. A panic anywhere
// in the analysis becomes a parseError skip so one malformed statement
// never aborts the build.
func analyzeEntry(e Entry, bo buildOptions) (c *contribution, reason skipReason) {
	defer func() {
		if r := recover(); r != nil {
			c, reason = nil, skipParseError
		}
	}()

	sql := strings.TrimSpace(e.SQL)
	if sql == "" {
		return nil, skipEmptyQuery
	}
	if sqlscan.HasMultipleStatements(sql) {
		return nil, skipMultiStatement
	}

	stripped := sqlscan.StripComments(sql)
	kind := DetectQueryType(stripped)
	if kind == QueryOther {
		return nil, skipUnsupportedType
	}
	if bo.typeFilter != "" && kind != bo.typeFilter {
		return nil, skipFilteredOut
	}

	scope := BuildScope(stripped, bo.defaultSchema, sqlscan.CTENames(stripped))
	if scope.Empty() {
		return nil, skipNoTableReference
	}
	if len(bo.tableTerms) > 0 && !scope.MatchesAny(bo.tableTerms) {
		return nil, skipFilteredOut
	}

	target, _ := CollectWriteTarget(stripped, kind, scope)
	c = &contribution{
		kind:        kind,
		queryID:     queryNodeID(kind, contentHash(e, sql)),
		sql:         sql,
		durationMs:  cleanDuration(e.DurationMs),
		tables:      scope.Tables(),
		readTables:  scope.ReadTables(),
		writeTarget: target,
	}
	if bo.viewMode == ViewModeFull {
		c.readCols = ReadColumns(stripped, scope)
		c.writeCols = WriteColumns(stripped, kind, scope, target)
	}
	return c, skipNone
}

// apply folds one contribution into the graph according to the view
// mode.
func (g *graphBuilder) apply(c *contribution) {
	if g.mode == ViewModeTableOnly {
		g.applyTableOnly(c)
		return
	}

	q := g.addQuery(c.queryID, c.kind, c.sql)
	g.touchQuery(q, c.durationMs)
	for _, id := range c.tables {
		g.addTable(id)
	}
	if c.writeTarget != "" {
		g.addEdge(q.ID, c.writeTarget, c.kind.EdgeType(), c.durationMs)
	}
	for _, id := range c.readTables {
		g.addEdge(q.ID, id, EdgeSelect, c.durationMs)
	}

	if g.mode != ViewModeFull {
		return
	}
	for _, rc := range c.readCols {
		col := g.addColumn(rc.Table, rc.Column)
		g.addEdge(q.ID, col.ID, EdgeSelect, c.durationMs)
	}
	for _, wc := range c.writeCols {
		col := g.addColumn(wc.Table, wc.Column)
		g.addEdge(q.ID, col.ID, c.kind.EdgeType(), c.durationMs)
	}
}

// applyTableOnly collapses one statement into table-to-table edges:
// every read table points at the write target, or for a multi-table
// SELECT each table pair is linked once, smaller id first.
func (g *graphBuilder) applyTableOnly(c *contribution) {
	for _, id := range c.tables {
		g.addTable(id)
	}
	if c.writeTarget != "" {
		for _, r := range c.readTables {
			g.addEdge(r, c.writeTarget, c.kind.EdgeType(), c.durationMs)
		}
		return
	}
	if c.kind != QuerySelect || len(c.tables) < 2 {
		return
	}
	for i := 0; i < len(c.tables); i++ {
		for j := i + 1; j < len(c.tables); j++ {
			g.addEdge(c.tables[i], c.tables[j], EdgeSelect, c.durationMs)
		}
	}
}

// contentHash prefers the entry's own hash and otherwise fingerprints
// the trimmed SQL, so re-running an identical statement aggregates onto
// one Query node.
func contentHash(e Entry, sql string) string {
	if h := strings.TrimSpace(e.Hash); h != "" {
		return h
	}
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

func queryNodeID(kind QueryType, hash string) string {
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return "query:" + strings.ToLower(string(kind)) + ":" + hash
}

func cleanDuration(ms float64) float64 {
	if ms < 0 || math.IsNaN(ms) {
		return 0
	}
	return ms
}
