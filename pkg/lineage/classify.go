package lineage

import (
	"strings"

	"github.com/querylens/querylens/pkg/sqlscan"
)

// QueryType classifies a statement by its leading keyword.
type QueryType string

const (
	QuerySelect QueryType = "SELECT"
	QueryInsert QueryType = "INSERT"
	QueryUpdate QueryType = "UPDATE"
	QueryDelete QueryType = "DELETE"
	QueryOther  QueryType = "OTHER"
)

// DetectQueryType classifies comment-stripped SQL by its first token.
// WITH counts as SELECT since a leading CTE chain feeds one. Anything
// else (DDL, GRANT, EXPLAIN, ...) is Other and is skipped upstream.
func DetectQueryType(sql string) QueryType {
	tok, _ := sqlscan.ReadToken(sql, 0)
	switch strings.ToUpper(tok) {
	case "SELECT", "WITH":
		return QuerySelect
	case "INSERT":
		return QueryInsert
	case "UPDATE":
		return QueryUpdate
	case "DELETE":
		return QueryDelete
	}
	return QueryOther
}

// EdgeType returns the edge type a write of this kind produces.
func (t QueryType) EdgeType() EdgeType {
	switch t {
	case QueryInsert:
		return EdgeInsert
	case QueryUpdate:
		return EdgeUpdate
	case QueryDelete:
		return EdgeDelete
	}
	return EdgeSelect
}

// CollectWriteTarget finds the table a statement writes: the identifier
// after INSERT INTO, after UPDATE, or after DELETE FROM, resolved
// through the scope. Only the first target is considered; multi-table
// DML keeps its remaining targets as plain scope entries.
func CollectWriteTarget(sql string, kind QueryType, sc *Scope) (string, bool) {
	if kind == QuerySelect || kind == QueryOther {
		return "", false
	}
	words := scanWords(sql)
	for idx, w := range words {
		if !freestanding(sql, w) {
			continue
		}
		var hit bool
		switch kind {
		case QueryInsert:
			hit = strings.EqualFold(w.text, "into")
		case QueryUpdate:
			hit = strings.EqualFold(w.text, "update")
		case QueryDelete:
			hit = strings.EqualFold(w.text, "from") &&
				idx > 0 && strings.EqualFold(words[idx-1].text, "delete")
		}
		if !hit {
			continue
		}
		raw, _ := sqlscan.ReadToken(sql, w.end)
		if raw == "" || isReserved(raw) {
			return "", false
		}
		return sc.Resolve(raw)
	}
	return "", false
}
