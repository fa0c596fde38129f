package sqlscan

import "strings"

// CTENames collects the lower-cased names declared by a leading WITH
// clause. The input should already be comment-stripped. A statement
// that does not start with WITH yields an empty set; a malformed
// prologue yields whatever complete definitions were read before the
// shape broke down. Per-definition shape: name, optional column list
// in parentheses, AS, parenthesized body, then a comma or the end of
// the prologue.
func CTENames(sql string) map[string]struct{} {
	names := make(map[string]struct{})

	tok, i := ReadToken(sql, 0)
	if !strings.EqualFold(tok, "with") {
		return names
	}
	if next, j := ReadToken(sql, i); strings.EqualFold(next, "recursive") {
		i = j
	}

	for {
		name, j := ReadToken(sql, i)
		if name == "" {
			return names
		}
		i = j

		// Optional column list: name (col, ...) AS (...)
		i = SkipSpace(sql, i)
		if i < len(sql) && sql[i] == '(' {
			i = SkipBalancedParens(sql, i)
		}

		kw, j := ReadToken(sql, i)
		if !strings.EqualFold(kw, "as") {
			return names
		}

		i = SkipSpace(sql, j)
		if i >= len(sql) || sql[i] != '(' {
			return names
		}
		i = SkipBalancedParens(sql, i)

		names[strings.ToLower(Unquote(name))] = struct{}{}

		i = SkipSpace(sql, i)
		if i >= len(sql) || sql[i] != ',' {
			return names
		}
		i++
	}
}
