package sqlscan

import (
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// StripComments
// =============================================================================

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "no comments",
			sql:  "SELECT id FROM users",
			want: "SELECT id FROM users",
		},
		{
			name: "line comment at end",
			sql:  "SELECT id -- the id\nFROM users",
			want: "SELECT id \nFROM users",
		},
		{
			name: "line comment without newline",
			sql:  "SELECT id -- trailing",
			want: "SELECT id ",
		},
		{
			name: "block comment",
			sql:  "SELECT /* hint */ id FROM users",
			want: "SELECT  id FROM users",
		},
		{
			name: "block comment spanning lines",
			sql:  "SELECT id\n/* multi\nline */ FROM users",
			want: "SELECT id\n FROM users",
		},
		{
			name: "unterminated block comment",
			sql:  "SELECT id /* oops",
			want: "SELECT id ",
		},
		{
			name: "dashes inside single quotes survive",
			sql:  "SELECT '--not a comment' FROM t",
			want: "SELECT '--not a comment' FROM t",
		},
		{
			name: "block markers inside double quotes survive",
			sql:  `SELECT "/*weird*/" FROM t`,
			want: `SELECT "/*weird*/" FROM t`,
		},
		{
			name: "backslash escaped quote stays inside string",
			sql:  `SELECT 'it\'s -- fine' FROM t`,
			want: `SELECT 'it\'s -- fine' FROM t`,
		},
		{
			name: "comment between statements parts",
			sql:  "SELECT a,/*x*/b FROM t",
			want: "SELECT a,b FROM t",
		},
		{
			name: "backtick quoted content untouched",
			sql:  "SELECT `a -- b` FROM t",
			want: "SELECT `a -- b` FROM t",
		},
		{
			name: "single dash is not a comment",
			sql:  "SELECT a - b FROM t",
			want: "SELECT a - b FROM t",
		},
		{
			name: "slash star star slash is one complete comment",
			sql:  "a /**/ b",
			want: "a  b",
		},
		{
			name: "slash star slash stays open",
			sql:  "a /*/ b",
			want: "a ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripComments(tt.sql)
			if got != tt.want {
				t.Errorf("StripComments(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

// =============================================================================
// HasMultipleStatements
// =============================================================================

func TestHasMultipleStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{name: "single statement", sql: "SELECT 1", want: false},
		{name: "two statements", sql: "SELECT 1; SELECT 2", want: true},
		{name: "trailing semicolon", sql: "SELECT 1;", want: false},
		{name: "trailing semicolon and spaces", sql: "SELECT 1;   \n", want: false},
		{name: "double trailing semicolon", sql: "SELECT 1;;", want: true},
		{name: "semicolon in string literal", sql: "SELECT ';' AS x", want: false},
		{name: "semicolon in double quotes", sql: `SELECT ";" FROM t`, want: false},
		{name: "semicolon then comment only", sql: "SELECT 1; -- done", want: false},
		{name: "semicolon then block comment only", sql: "SELECT 1; /* done */", want: false},
		{name: "semicolon then quoted content", sql: "SELECT 1; 'x'", want: true},
		{name: "semicolon inside parens", sql: "SELECT f(');') FROM t", want: false},
		{name: "empty input", sql: "", want: false},
		{name: "statement after comment semicolon", sql: "SELECT 1 -- ;\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasMultipleStatements(tt.sql)
			if got != tt.want {
				t.Errorf("HasMultipleStatements(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SplitTopLevelByComma
// =============================================================================

func TestSplitTopLevelByComma(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain list",
			text: "a, b, c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "single item",
			text: "a",
			want: []string{"a"},
		},
		{
			name: "commas inside parens stay",
			text: "coalesce(a, b), c",
			want: []string{"coalesce(a, b)", "c"},
		},
		{
			name: "nested parens",
			text: "f(g(a, b), c), d",
			want: []string{"f(g(a, b), c)", "d"},
		},
		{
			name: "comma inside string literal",
			text: "'a,b', c",
			want: []string{"'a,b'", "c"},
		},
		{
			name: "empty segments preserved",
			text: "a,,b",
			want: []string{"a", "", "b"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{""},
		},
		{
			name: "whitespace trimmed",
			text: "  a  ,  b  ",
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTopLevelByComma(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTopLevelByComma(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SkipBalancedParens
// =============================================================================

func TestSkipBalancedParens(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		openIdx int
		want    int
	}{
		{
			name:    "simple pair",
			text:    "(a)",
			openIdx: 0,
			want:    3,
		},
		{
			name:    "nested",
			text:    "f(a,(b)) rest",
			openIdx: 1,
			want:    8,
		},
		{
			name:    "paren inside string ignored",
			text:    "(')') x",
			openIdx: 0,
			want:    5,
		},
		{
			name:    "unbalanced runs to end",
			text:    "(a",
			openIdx: 0,
			want:    2,
		},
		{
			name:    "index not on a paren",
			text:    "abc",
			openIdx: 1,
			want:    3,
		},
		{
			name:    "paren inside comment ignored",
			text:    "(a /* ) */ b) x",
			openIdx: 0,
			want:    13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkipBalancedParens(tt.text, tt.openIdx)
			if got != tt.want {
				t.Errorf("SkipBalancedParens(%q, %d) = %d, want %d", tt.text, tt.openIdx, got, tt.want)
			}
		})
	}
}

// =============================================================================
// ReadToken and identifier helpers
// =============================================================================

func TestReadToken(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		idx      int
		wantTok  string
		wantNext int
	}{
		{
			name:    "bare identifier",
			text:    "users u",
			idx:     0,
			wantTok: "users", wantNext: 5,
		},
		{
			name:    "skips leading whitespace",
			text:    "   users",
			idx:     0,
			wantTok: "users", wantNext: 8,
		},
		{
			name:    "dotted identifier",
			text:    "public.users rest",
			idx:     0,
			wantTok: "public.users", wantNext: 12,
		},
		{
			name:    "quoted segment",
			text:    `"My Table".col x`,
			idx:     0,
			wantTok: `"My Table".col`, wantNext: 14,
		},
		{
			name:    "stops at paren",
			text:    "count(*)",
			idx:     0,
			wantTok: "count", wantNext: 5,
		},
		{
			name:    "nothing to read",
			text:    "  (a)",
			idx:     0,
			wantTok: "", wantNext: 2,
		},
		{
			name:    "dollar identifier",
			text:    "$tmp rest",
			idx:     0,
			wantTok: "$tmp", wantNext: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, next := ReadToken(tt.text, tt.idx)
			if tok != tt.wantTok || next != tt.wantNext {
				t.Errorf("ReadToken(%q, %d) = (%q, %d), want (%q, %d)",
					tt.text, tt.idx, tok, next, tt.wantTok, tt.wantNext)
			}
		})
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"users"`, "users"},
		{"`users`", "users"},
		{"'users'", "users"},
		{"users", "users"},
		{`"it\"s"`, `it"s`},
		{`"`, `"`},
		{`"unclosed`, `"unclosed`},
	}

	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitDotted(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a.b.c", []string{"a", "b", "c"}},
		{"users", []string{"users"}},
		{`"a.b".c`, []string{`"a.b"`, "c"}},
		{"users.", []string{"users", ""}},
	}

	for _, tt := range tests {
		if got := SplitDotted(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitDotted(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Scanner state transitions
// =============================================================================

func TestScannerStates(t *testing.T) {
	sql := "a'q'--c\nb"
	var states []State
	s := NewScanner(sql)
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		states = append(states, c.State)
	}

	want := []State{
		StateNormal,      // a
		StateQuote,       // '
		StateQuote,       // q
		StateQuote,       // '
		StateLineComment, // -
		StateLineComment, // -
		StateLineComment, // c
		StateNormal,      // \n terminates the comment
		StateNormal,      // b
	}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestScannerDepth(t *testing.T) {
	sql := "f(a,(b))"
	s := NewScanner(sql)
	var depths []int
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		depths = append(depths, c.Depth)
	}

	// f ( a , ( b ) )
	want := []int{0, 1, 1, 1, 2, 2, 1, 0}
	if !reflect.DeepEqual(depths, want) {
		t.Errorf("depths = %v, want %v", depths, want)
	}
}

func TestScannerNeverPanicsOnMalformedInput(t *testing.T) {
	inputs := []string{
		"'unterminated",
		"/* unterminated",
		"((((",
		"))))",
		`\`,
		"'trailing escape\\",
		strings.Repeat("('", 100),
		"\x00\xff\xfe",
	}
	for _, in := range inputs {
		_ = StripComments(in)
		_ = HasMultipleStatements(in)
		_ = SplitTopLevelByComma(in)
		_ = SkipBalancedParens(in, 0)
		_, _ = ReadToken(in, 0)
	}
}
