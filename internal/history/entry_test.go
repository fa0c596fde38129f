package history

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Entry
	}{
		{
			name: "sql and duration_ms",
			json: `{"sql":"SELECT 1","duration_ms":12.5}`,
			want: Entry{SQL: "SELECT 1", DurationMs: 12.5},
		},
		{
			name: "query alias",
			json: `{"query":"SELECT 2","durationMs":3}`,
			want: Entry{SQL: "SELECT 2", DurationMs: 3},
		},
		{
			name: "sql wins over query",
			json: `{"sql":"a","query":"b"}`,
			want: Entry{SQL: "a"},
		},
		{
			name: "elapsed_ms alias",
			json: `{"sql":"x","elapsed_ms":7}`,
			want: Entry{SQL: "x", DurationMs: 7},
		},
		{
			name: "elapsedMs alias",
			json: `{"sql":"x","elapsedMs":8}`,
			want: Entry{SQL: "x", DurationMs: 8},
		},
		{
			name: "query_time_ms alias",
			json: `{"sql":"x","query_time_ms":9}`,
			want: Entry{SQL: "x", DurationMs: 9},
		},
		{
			name: "execution_time_ms alias",
			json: `{"sql":"x","execution_time_ms":10}`,
			want: Entry{SQL: "x", DurationMs: 10},
		},
		{
			name: "time_ms alias",
			json: `{"sql":"x","time_ms":11}`,
			want: Entry{SQL: "x", DurationMs: 11},
		},
		{
			name: "first duration alias wins",
			json: `{"sql":"x","duration_ms":1,"time_ms":99}`,
			want: Entry{SQL: "x", DurationMs: 1},
		},
		{
			name: "hash",
			json: `{"sql":"x","hash":"abc"}`,
			want: Entry{SQL: "x", Hash: "abc"},
		},
		{
			name: "digest alias",
			json: `{"sql":"x","digest":"d1"}`,
			want: Entry{SQL: "x", Hash: "d1"},
		},
		{
			name: "query_hash alias",
			json: `{"sql":"x","query_hash":"q1"}`,
			want: Entry{SQL: "x", Hash: "q1"},
		},
		{
			name: "hash wins over digest",
			json: `{"sql":"x","hash":"h","digest":"d"}`,
			want: Entry{SQL: "x", Hash: "h"},
		},
		{
			name: "empty hash falls through to digest",
			json: `{"sql":"x","hash":"","digest":"d"}`,
			want: Entry{SQL: "x", Hash: "d"},
		},
		{
			name: "calls",
			json: `{"sql":"x","calls":42}`,
			want: Entry{SQL: "x", Calls: 42},
		},
		{
			name: "extra fields ignored",
			json: `{"sql":"x","user":"bob","rows_sent":10,"ts":1.5}`,
			want: Entry{SQL: "x"},
		},
		{
			name: "empty object",
			json: `{}`,
			want: Entry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Entry
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntry_UnmarshalJSON_Array(t *testing.T) {
	data := `[{"sql":"SELECT 1","durationMs":5},{"query":"SELECT 2","elapsed_ms":6,"digest":"d2"}]`

	var entries []Entry
	require.NoError(t, json.Unmarshal([]byte(data), &entries))

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{SQL: "SELECT 1", DurationMs: 5}, entries[0])
	assert.Equal(t, Entry{SQL: "SELECT 2", DurationMs: 6, Hash: "d2"}, entries[1])
}

func TestEntry_UnmarshalJSON_Invalid(t *testing.T) {
	var e Entry
	assert.Error(t, json.Unmarshal([]byte(`"not an object"`), &e))
}

func TestToLineageEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantLen int
	}{
		{
			name:    "single execution",
			entries: []Entry{{SQL: "SELECT 1", DurationMs: 2}},
			wantLen: 1,
		},
		{
			name:    "zero calls means one execution",
			entries: []Entry{{SQL: "SELECT 1", Calls: 0}},
			wantLen: 1,
		},
		{
			name:    "negative calls means one execution",
			entries: []Entry{{SQL: "SELECT 1", Calls: -3}},
			wantLen: 1,
		},
		{
			name:    "calls repeat the entry",
			entries: []Entry{{SQL: "SELECT 1", Calls: 3}},
			wantLen: 3,
		},
		{
			name:    "mixed entries",
			entries: []Entry{{SQL: "a", Calls: 2}, {SQL: "b"}},
			wantLen: 3,
		},
		{
			name:    "empty input",
			entries: nil,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToLineageEntries(tt.entries)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestToLineageEntries_Fields(t *testing.T) {
	got := ToLineageEntries([]Entry{{SQL: "SELECT 1", DurationMs: 4.5, Hash: "h1", Calls: 2}})

	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, "SELECT 1", e.SQL)
		assert.Equal(t, 4.5, e.DurationMs)
		assert.Equal(t, "h1", e.Hash)
	}
}

func TestToLineageEntries_ClampPreservesTotalTime(t *testing.T) {
	got := ToLineageEntries([]Entry{{SQL: "SELECT 1", DurationMs: 2, Calls: 5000}})

	require.Len(t, got, maxCallExpansion)

	var total float64
	for _, e := range got {
		total += e.DurationMs
	}
	assert.InDelta(t, 2*5000, total, 0.001)
}
