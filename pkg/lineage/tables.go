package lineage

import (
	"sort"
	"strings"

	"github.com/querylens/querylens/pkg/sqlscan"
)

// Scope holds the tables one statement has in play: a lookup map from
// aliases, bare names, and full identifiers to canonical table ids,
// plus which ids were introduced by reading keywords (FROM, JOIN,
// USING) as opposed to writing ones (UPDATE, INTO, DELETE FROM). A
// Scope is built once per statement and discarded.
type Scope struct {
	lookup        map[string]string
	tables        map[string]struct{}
	reads         map[string]struct{}
	order         []string
	ctes          map[string]struct{}
	defaultSchema string
}

// word is one unquoted identifier word with its location in the input.
type word struct {
	text  string
	start int
	end   int
	depth int
}

// BuildScope scans comment-stripped SQL for table references following
// FROM, JOIN, UPDATE, INTO, and USING (plus the DELETE FROM form) and
// registers each under its bare name, full id, and alias. The first
// registration of a key wins; later duplicates are ignored. Bare names
// found in ctes are pseudo-tables and are dropped entirely.
func BuildScope(sql, defaultSchema string, ctes map[string]struct{}) *Scope {
	sc := &Scope{
		lookup:        make(map[string]string),
		tables:        make(map[string]struct{}),
		reads:         make(map[string]struct{}),
		ctes:          ctes,
		defaultSchema: strings.ToLower(strings.TrimSpace(defaultSchema)),
	}

	words := scanWords(sql)
	for idx, w := range words {
		if !isTableKeyword(w.text) || !freestanding(sql, w) {
			continue
		}
		kw := strings.ToUpper(w.text)
		writeSide := kw == "UPDATE" || kw == "INTO"
		if kw == "FROM" && idx > 0 && strings.EqualFold(words[idx-1].text, "delete") {
			writeSide = true
		}

		pos := w.end
		for {
			raw, next := sqlscan.ReadToken(sql, pos)
			if raw == "" || isReserved(raw) {
				break
			}
			id, ok := sc.register(raw, !writeSide)
			pos = next

			// Optional alias, with or without AS. The token is consumed
			// even for a dropped CTE reference so a trailing comma list
			// still lines up.
			alias, aliasEnd := sqlscan.ReadToken(sql, pos)
			if strings.EqualFold(alias, "as") {
				alias, aliasEnd = sqlscan.ReadToken(sql, aliasEnd)
			}
			if alias != "" && !isReserved(alias) && !strings.Contains(alias, ".") {
				if ok {
					sc.addKey(strings.ToLower(sqlscan.Unquote(alias)), id)
				}
				pos = aliasEnd
			}
			// Comma-separated table lists only make sense on the read
			// side (FROM a, b or USING a, b).
			if writeSide {
				break
			}
			pos = sqlscan.SkipSpace(sql, pos)
			if pos >= len(sql) || sql[pos] != ',' {
				break
			}
			pos++
		}
	}

	return sc
}

// register resolves a raw dotted-or-bare identifier to a table id and
// adds it to the scope. Returns false when the reference is a CTE name
// or empty.
func (sc *Scope) register(raw string, read bool) (string, bool) {
	segs := identSegments(raw)
	if len(segs) == 0 {
		return "", false
	}

	var id string
	if len(segs) == 1 {
		name := segs[0]
		if _, isCTE := sc.ctes[name]; isCTE {
			return "", false
		}
		id = name
		if sc.defaultSchema != "" {
			id = sc.defaultSchema + "." + name
		}
	} else {
		// Keep the last two segments; any catalog prefix is dropped.
		id = segs[len(segs)-2] + "." + segs[len(segs)-1]
	}

	if _, exists := sc.tables[id]; !exists {
		sc.tables[id] = struct{}{}
		sc.order = append(sc.order, id)
	}
	if read {
		sc.reads[id] = struct{}{}
	}

	sc.addKey(segs[len(segs)-1], id)
	sc.addKey(id, id)
	if full := strings.Join(segs, "."); full != id {
		sc.addKey(full, id)
	}
	return id, true
}

// addKey records a lookup key if it is not already taken.
func (sc *Scope) addKey(key, id string) {
	if key == "" {
		return
	}
	if _, exists := sc.lookup[key]; !exists {
		sc.lookup[key] = id
	}
}

// Resolve maps a raw qualifier (alias, bare name, or dotted identifier)
// to a table id. CTE names resolve to nothing; an unknown dotted
// qualifier is re-parsed as schema.table; an unknown bare qualifier
// falls back to the sole table in scope when exactly one exists.
func (sc *Scope) Resolve(raw string) (string, bool) {
	segs := identSegments(raw)
	if len(segs) == 0 {
		return "", false
	}
	if len(segs) == 1 {
		if _, isCTE := sc.ctes[segs[0]]; isCTE {
			return "", false
		}
	}
	if id, ok := sc.lookup[strings.Join(segs, ".")]; ok {
		return id, true
	}
	if len(segs) >= 2 {
		return segs[len(segs)-2] + "." + segs[len(segs)-1], true
	}
	if len(sc.order) == 1 {
		return sc.order[0], true
	}
	return "", false
}

// Empty reports whether no tables were resolved.
func (sc *Scope) Empty() bool {
	return len(sc.tables) == 0
}

// Tables returns all table ids in scope, sorted.
func (sc *Scope) Tables() []string {
	ids := make([]string, len(sc.order))
	copy(ids, sc.order)
	sort.Strings(ids)
	return ids
}

// ReadTables returns the ids introduced by reading keywords, sorted.
func (sc *Scope) ReadTables() []string {
	ids := make([]string, 0, len(sc.reads))
	for id := range sc.reads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// isKnownTable reports whether key (a normalized dotted identifier) is
// registered as a table id, name, or alias. The column extractor uses
// it to avoid reading a schema-qualified table reference as a column.
func (sc *Scope) isKnownTable(key string) bool {
	_, ok := sc.lookup[key]
	return ok
}

// MatchesAny reports whether any table id in scope contains one of the
// lower-cased substring terms.
func (sc *Scope) MatchesAny(terms []string) bool {
	for _, id := range sc.order {
		for _, term := range terms {
			if strings.Contains(id, term) {
				return true
			}
		}
	}
	return false
}

// identSegments splits a raw identifier into unquoted, lower-cased
// segments, dropping empties (a trailing dot yields none for that
// position). Purely numeric tokens are not identifiers.
func identSegments(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || isDigit(raw[0]) {
		return nil
	}
	parts := sqlscan.SplitDotted(raw)
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(sqlscan.Unquote(p))
		if p == "" {
			continue
		}
		segs = append(segs, p)
	}
	return segs
}

// scanWords returns the bare identifier words of text that sit outside
// quotes and comments, with their byte ranges and paren depth. Dots are
// word breaks, so path segments come back as separate words; keyword
// matching pairs this with freestanding to reject them.
func scanWords(text string) []word {
	var words []word
	s := sqlscan.NewScanner(text)
	start := -1
	depth := 0
	flush := func(end int) {
		if start >= 0 {
			words = append(words, word{text: text[start:end], start: start, end: end, depth: depth})
			start = -1
		}
	}
	for {
		c, ok := s.Next()
		if !ok {
			flush(len(text))
			break
		}
		if c.State == sqlscan.StateNormal && isWordChar(c.Ch) {
			if start < 0 {
				start = c.Pos
				depth = c.Depth
			}
			continue
		}
		flush(c.Pos)
	}
	return words
}

// freestanding reports whether w is a standalone word rather than a
// segment of a dotted path.
func freestanding(text string, w word) bool {
	if w.start > 0 && text[w.start-1] == '.' {
		return false
	}
	if w.end < len(text) && text[w.end] == '.' {
		return false
	}
	return true
}

func isTableKeyword(w string) bool {
	switch strings.ToUpper(w) {
	case "FROM", "JOIN", "UPDATE", "INTO", "USING":
		return true
	}
	return false
}

// isWordChar matches identifier bytes minus the dot, so dotted paths
// split into their segments.
func isWordChar(ch byte) bool {
	return sqlscan.IsIdentChar(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
