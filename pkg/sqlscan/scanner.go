// Package sqlscan provides tolerant, quote- and comment-aware scanning
// primitives for raw SQL text. It is deliberately not a parser: every
// routine is a single pass over the input that never fails, so callers
// can feed it malformed or dialect-specific SQL and still get useful
// structure out (comment-free text, top-level splits, balanced spans,
// identifier tokens).
package sqlscan

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// State identifies the region of SQL text a scanned character belongs to.
type State int

const (
	// StateNormal is plain SQL text outside comments and quotes.
	StateNormal State = iota
	// StateLineComment covers "--" through the end of the line. The
	// terminating newline itself is normal text.
	StateLineComment
	// StateBlockComment covers "/*" through "*/", non-nesting.
	StateBlockComment
	// StateQuote covers a single-, double-, or backtick-quoted region
	// including both delimiters. Only backslash escaping is honored
	// inside quotes.
	StateQuote
)

// Char is one scanned character together with the region it belongs to
// and the parenthesis depth of the surrounding normal text. Depth is
// measured after the character takes effect: an opening paren carries
// the depth it introduces, its closing partner carries the depth it
// restores.
type Char struct {
	Pos   int
	Ch    byte
	State State
	Depth int
}

// Scanner steps through SQL text one byte at a time, classifying each
// byte as normal text, comment, or quoted content. It is the single
// source of truth for "is this character really a separator" questions:
// every primitive in this package is built on it.
type Scanner struct {
	input   string
	pos     int
	state   State
	quote   byte // active quote character in StateQuote
	escaped bool // previous quoted char was a backslash
	opening bool // next char is the '*' opening a block comment
	closing bool // next char is the '/' closing a block comment
	depth   int
}

// NewScanner creates a Scanner positioned at the start of input.
func NewScanner(input string) *Scanner {
	return &Scanner{input: input}
}

// Next returns the next character and its classification. The second
// return is false once the input is exhausted.
func (s *Scanner) Next() (Char, bool) {
	if s.pos >= len(s.input) {
		return Char{}, false
	}
	i := s.pos
	ch := s.input[i]
	s.pos++

	var st State
	switch s.state {
	case StateNormal:
		switch {
		case ch == '-' && s.peek() == '-':
			s.state = StateLineComment
			st = StateLineComment
		case ch == '/' && s.peek() == '*':
			s.state = StateBlockComment
			s.opening = true
			st = StateBlockComment
		case isQuote(ch):
			s.state = StateQuote
			s.quote = ch
			s.escaped = false
			st = StateQuote
		default:
			if ch == '(' {
				s.depth++
			} else if ch == ')' && s.depth > 0 {
				s.depth--
			}
			st = StateNormal
		}

	case StateLineComment:
		if ch == '\n' {
			// The newline terminates the comment but is not part of it.
			s.state = StateNormal
			st = StateNormal
		} else {
			st = StateLineComment
		}

	case StateBlockComment:
		st = StateBlockComment
		switch {
		case s.opening:
			// The '*' of the opening "/*" cannot also close the comment.
			s.opening = false
		case s.closing:
			s.closing = false
			s.state = StateNormal
		case ch == '*' && s.peek() == '/':
			s.closing = true
		}

	case StateQuote:
		st = StateQuote
		switch {
		case s.escaped:
			s.escaped = false
		case ch == '\\':
			s.escaped = true
		case ch == s.quote:
			s.state = StateNormal
		}
	}

	return Char{Pos: i, Ch: ch, State: st, Depth: s.depth}, true
}

// peek returns the next byte without consuming it, or 0 at end of input.
func (s *Scanner) peek() byte {
	if s.pos >= len(s.input) {
		return 0
	}
	return s.input[s.pos]
}

// StripComments returns sql with line and block comments removed.
// Quoted content is preserved byte for byte, as is everything outside
// comments; the newline terminating a line comment is kept. An
// unterminated quote or block comment consumes the rest of the input
// without error.
func StripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	s := NewScanner(sql)
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		if c.State == StateLineComment || c.State == StateBlockComment {
			continue
		}
		b.WriteByte(c.Ch)
	}
	return b.String()
}

// HasMultipleStatements reports whether sql contains more than one
// statement: an unquoted, uncommented semicolon at parenthesis depth 0
// followed by any further content. A single trailing semicolon (with
// only whitespace or comments after it) does not count.
func HasMultipleStatements(sql string) bool {
	s := NewScanner(sql)
	sawSemi := false
	for {
		c, ok := s.Next()
		if !ok {
			return false
		}
		switch c.State {
		case StateLineComment, StateBlockComment:
			continue
		case StateQuote:
			if sawSemi {
				return true
			}
		case StateNormal:
			if c.Ch == ';' && c.Depth == 0 {
				sawSemi = true
				continue
			}
			if sawSemi && !IsSpace(c.Ch) {
				return true
			}
		}
	}
}

// SplitTopLevelByComma splits text at commas that sit at parenthesis
// depth 0 outside quotes and comments. Segments are trimmed; empty
// segments are preserved, so "a,,b" yields three parts. Comment bytes
// are dropped from the segments.
func SplitTopLevelByComma(text string) []string {
	var parts []string
	var cur strings.Builder
	s := NewScanner(text)
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		if c.State == StateLineComment || c.State == StateBlockComment {
			continue
		}
		if c.State == StateNormal && c.Ch == ',' && c.Depth == 0 {
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c.Ch)
	}
	parts = append(parts, strings.TrimSpace(cur.String()))
	return parts
}

// SkipBalancedParens returns the index just past the parenthesis that
// balances the one at openIdx. The scan starts from the beginning of
// text so the quote and comment state at openIdx is known. When openIdx
// does not sit on an opening paren in plain text, or the paren is never
// closed, the result is len(text).
func SkipBalancedParens(text string, openIdx int) int {
	s := NewScanner(text)
	target := -1
	for {
		c, ok := s.Next()
		if !ok {
			return len(text)
		}
		if c.Pos < openIdx {
			continue
		}
		if c.Pos == openIdx {
			if c.State != StateNormal || c.Ch != '(' {
				return len(text)
			}
			target = c.Depth - 1
			continue
		}
		if c.State == StateNormal && c.Ch == ')' && c.Depth == target {
			return c.Pos + 1
		}
	}
}

// ReadToken skips whitespace starting at idx and reads a maximal
// identifier run: letters, digits, '_', '$', '.', and complete quoted
// segments, so `"My Schema"."My Table"` comes back as one token. The
// returned index points just past the token. An empty token means the
// next character starts none of these.
func ReadToken(text string, idx int) (string, int) {
	i := SkipSpace(text, idx)
	start := i
	for i < len(text) {
		ch := text[i]
		if IsIdentChar(ch) || ch == '.' {
			i++
			continue
		}
		if isQuote(ch) {
			i = skipQuoted(text, i)
			continue
		}
		break
	}
	return text[start:i], i
}

// SkipSpace returns the index of the first non-whitespace byte at or
// after idx.
func SkipSpace(text string, idx int) int {
	i := idx
	for i < len(text) && IsSpace(text[i]) {
		i++
	}
	return i
}

// Unquote removes one level of surrounding quotes from an identifier
// segment, if present. Backslash escapes inside the quotes are reduced.
func Unquote(seg string) string {
	if len(seg) < 2 {
		return seg
	}
	q := seg[0]
	if !isQuote(q) || seg[len(seg)-1] != q {
		return seg
	}
	inner := seg[1 : len(seg)-1]
	if !strings.ContainsRune(inner, '\\') {
		return inner
	}
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

// SplitDotted splits a dotted identifier token into its segments,
// honoring quoted segments so `"a.b".c` yields two parts. Segments keep
// their quotes; pair with Unquote to get bare names.
func SplitDotted(tok string) []string {
	var segs []string
	var cur strings.Builder
	i := 0
	for i < len(tok) {
		ch := tok[i]
		if isQuote(ch) {
			j := skipQuoted(tok, i)
			cur.WriteString(tok[i:j])
			i = j
			continue
		}
		if ch == '.' {
			segs = append(segs, cur.String())
			cur.Reset()
			i++
			continue
		}
		cur.WriteByte(ch)
		i++
	}
	segs = append(segs, cur.String())
	return segs
}

// skipQuoted advances past the quoted segment opening at i, honoring
// backslash escapes. An unterminated quote runs to the end of text.
func skipQuoted(text string, i int) int {
	q := text[i]
	i++
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case q:
			return i + 1
		}
		i++
	}
	return len(text)
}

// IsSpace returns true for SQL whitespace.
func IsSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// IsIdentChar returns true for bytes that can appear in an unquoted
// identifier. Bytes above ASCII are accepted wholesale so multi-byte
// identifiers never split mid-rune.
func IsIdentChar(ch byte) bool {
	if ch >= utf8.RuneSelf {
		return true
	}
	return unicode.IsLetter(rune(ch)) || isDigit(ch) || ch == '_' || ch == '$'
}

func isQuote(ch byte) bool {
	return ch == '\'' || ch == '"' || ch == '`'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
