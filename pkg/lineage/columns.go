package lineage

import (
	"strings"

	"github.com/querylens/querylens/pkg/sqlscan"
)

// maxReadColumns caps the read-column references one statement may
// contribute. A generated SELECT with hundreds of output columns would
// otherwise drown the graph in Column nodes.
const maxReadColumns = 120

// ColumnRef pairs a resolved table id with a lower-cased column name.
type ColumnRef struct {
	Table  string
	Column string
}

// ReadColumns extracts the columns a statement reads: every dotted
// reference anywhere in the text whose qualifier resolves through the
// scope, plus the bare identifiers of the top-level SELECT projection
// when exactly one read table can own them. Results are deduplicated
// case-insensitively and capped at maxReadColumns.
func ReadColumns(sql string, sc *Scope) []ColumnRef {
	seen := make(map[ColumnRef]struct{})
	var refs []ColumnRef
	add := func(r ColumnRef) {
		if r.Table == "" || r.Column == "" || len(refs) >= maxReadColumns {
			return
		}
		if _, dup := seen[r]; dup {
			return
		}
		seen[r] = struct{}{}
		refs = append(refs, r)
	}

	for _, r := range dottedRefs(sql, sc) {
		add(r)
	}
	for _, r := range projectionRefs(sql, sc) {
		add(r)
	}
	return refs
}

// WriteColumns extracts the columns a statement writes: the INSERT
// column list, or the left-hand sides of the UPDATE SET assignments.
// Bare targets are charged to the resolved write target table.
func WriteColumns(sql string, kind QueryType, sc *Scope, target string) []ColumnRef {
	switch kind {
	case QueryInsert:
		return insertColumns(sql, target)
	case QueryUpdate:
		return updateColumns(sql, sc, target)
	}
	return nil
}

// dottedRefs collects every qualified column reference in text. String
// literals are skipped, as are tokens that name a table in scope: a
// schema-qualified FROM target is not a column of its schema.
func dottedRefs(text string, sc *Scope) []ColumnRef {
	var refs []ColumnRef
	pos := 0
	for pos < len(text) {
		tok, next := sqlscan.ReadToken(text, pos)
		if tok == "" {
			pos++
			continue
		}
		pos = next
		if tok[0] == '\'' || !strings.Contains(tok, ".") {
			continue
		}
		segs := identSegments(tok)
		if len(segs) < 2 {
			continue
		}
		if sc.isKnownTable(strings.Join(segs, ".")) {
			continue
		}
		col := segs[len(segs)-1]
		if isDigit(col[0]) {
			continue
		}
		table, ok := sc.Resolve(strings.Join(segs[:len(segs)-1], "."))
		if !ok {
			continue
		}
		refs = append(refs, ColumnRef{Table: table, Column: col})
	}
	return refs
}

// projectionRefs reads the top-level SELECT list for bare column names.
// They are only attributable when exactly one read table is in scope;
// dotted items are already covered by dottedRefs.
func projectionRefs(sql string, sc *Scope) []ColumnRef {
	reads := sc.ReadTables()
	if len(reads) != 1 {
		return nil
	}
	owner := reads[0]

	span, ok := projectionSpan(sql)
	if !ok {
		return nil
	}
	var refs []ColumnRef
	for i, item := range sqlscan.SplitTopLevelByComma(span) {
		if i == 0 {
			item = stripLeadingKeyword(item, "distinct")
			item = stripLeadingKeyword(item, "all")
		}
		col := bareIdent(stripAlias(item))
		if col == "" {
			continue
		}
		refs = append(refs, ColumnRef{Table: owner, Column: col})
	}
	return refs
}

// projectionSpan isolates the text between the first depth-0 SELECT and
// the matching depth-0 FROM. With no FROM the span runs to the end of
// the statement; with no top-level SELECT there is no span.
func projectionSpan(sql string) (string, bool) {
	words := scanWords(sql)
	for i, w := range words {
		if w.depth != 0 || !strings.EqualFold(w.text, "select") || !freestanding(sql, w) {
			continue
		}
		for _, f := range words[i+1:] {
			if f.depth == 0 && strings.EqualFold(f.text, "from") && freestanding(sql, f) {
				return sql[w.end:f.start], true
			}
		}
		return sql[w.end:], true
	}
	return "", false
}

func stripLeadingKeyword(item, kw string) string {
	tok, next := sqlscan.ReadToken(item, 0)
	if strings.EqualFold(tok, kw) {
		return strings.TrimSpace(item[next:])
	}
	return item
}

// stripAlias removes a trailing "AS alias" or bare alias from one
// projection item. The bare form requires whitespace before the alias
// word so a dotted tail like u.id is not mistaken for one.
func stripAlias(item string) string {
	item = strings.TrimSpace(item)
	if cut, ok := lastTopLevelAs(item); ok {
		return strings.TrimSpace(item[:cut])
	}
	words := scanWords(item)
	if len(words) < 2 {
		return item
	}
	last := words[len(words)-1]
	if last.end != len(item) || last.depth != 0 || isReserved(last.text) {
		return item
	}
	if last.start == 0 || !sqlscan.IsSpace(item[last.start-1]) {
		return item
	}
	return strings.TrimSpace(item[:last.start])
}

// lastTopLevelAs finds the start of the last freestanding depth-0 AS.
func lastTopLevelAs(item string) (int, bool) {
	cut := -1
	for _, w := range scanWords(item) {
		if w.depth == 0 && strings.EqualFold(w.text, "as") && freestanding(item, w) {
			cut = w.start
		}
	}
	return cut, cut >= 0
}

// bareIdent returns the lower-cased identifier when item is exactly one
// unqualified non-keyword token, or "" otherwise.
func bareIdent(item string) string {
	tok, next := sqlscan.ReadToken(item, 0)
	if tok == "" || sqlscan.SkipSpace(item, next) != len(item) {
		return ""
	}
	if strings.Contains(tok, ".") || tok[0] == '\'' || tok[0] == '$' {
		return ""
	}
	if isDigit(tok[0]) || isReserved(tok) {
		return ""
	}
	return strings.ToLower(sqlscan.Unquote(tok))
}

// insertColumns parses the parenthesized column list of INSERT INTO
// table (...). A parenthesis opening a SELECT is a subquery, not a
// column list.
func insertColumns(sql, target string) []ColumnRef {
	if target == "" {
		return nil
	}
	for _, w := range scanWords(sql) {
		if !strings.EqualFold(w.text, "into") || !freestanding(sql, w) {
			continue
		}
		_, next := sqlscan.ReadToken(sql, w.end)
		open := sqlscan.SkipSpace(sql, next)
		if open >= len(sql) || sql[open] != '(' {
			return nil
		}
		end := sqlscan.SkipBalancedParens(sql, open)
		if end <= open+1 {
			return nil
		}
		inner := sql[open+1 : end]
		if sql[end-1] == ')' {
			inner = sql[open+1 : end-1]
		}
		first, _ := sqlscan.ReadToken(inner, 0)
		if strings.EqualFold(first, "select") || strings.EqualFold(first, "with") {
			return nil
		}
		var refs []ColumnRef
		for _, item := range sqlscan.SplitTopLevelByComma(inner) {
			if col := bareIdent(item); col != "" {
				refs = append(refs, ColumnRef{Table: target, Column: col})
			}
		}
		return refs
	}
	return nil
}

// updateColumns resolves the left-hand side of each top-level SET
// assignment. Dotted targets go through the scope; bare targets belong
// to the statement's write target.
func updateColumns(sql string, sc *Scope, target string) []ColumnRef {
	start, end := -1, len(sql)
	for _, w := range scanWords(sql) {
		if start < 0 {
			if w.depth == 0 && strings.EqualFold(w.text, "set") && freestanding(sql, w) {
				start = w.end
			}
			continue
		}
		if w.depth == 0 && freestanding(sql, w) && isSetTerminator(w.text) {
			end = w.start
			break
		}
	}
	if start < 0 {
		return nil
	}

	var refs []ColumnRef
	for _, item := range sqlscan.SplitTopLevelByComma(sql[start:end]) {
		lhs, ok := assignmentLHS(item)
		if !ok {
			continue
		}
		tok, _ := sqlscan.ReadToken(lhs, 0)
		segs := identSegments(tok)
		switch {
		case len(segs) == 0:
		case len(segs) == 1:
			col := segs[0]
			if target != "" && !isReserved(col) && !isDigit(col[0]) {
				refs = append(refs, ColumnRef{Table: target, Column: col})
			}
		default:
			col := segs[len(segs)-1]
			if table, ok := sc.Resolve(strings.Join(segs[:len(segs)-1], ".")); ok && !isDigit(col[0]) {
				refs = append(refs, ColumnRef{Table: table, Column: col})
			}
		}
	}
	return refs
}

func isSetTerminator(w string) bool {
	switch strings.ToUpper(w) {
	case "WHERE", "FROM", "RETURNING":
		return true
	}
	return false
}

// assignmentLHS returns the text before the first top-level unquoted
// '=' of one SET item, or false when the item has none.
func assignmentLHS(item string) (string, bool) {
	s := sqlscan.NewScanner(item)
	for {
		c, ok := s.Next()
		if !ok {
			return "", false
		}
		if c.State == sqlscan.StateNormal && c.Depth == 0 && c.Ch == '=' {
			return strings.TrimSpace(item[:c.Pos]), true
		}
	}
}
