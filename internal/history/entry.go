package history

import (
	"encoding/json"

	"github.com/querylens/querylens/pkg/lineage"
)

// maxCallExpansion bounds how many builder entries a single
// pre-aggregated history row may expand into.
const maxCallExpansion = 1000

// Entry is one query-history record as a source reads it from its store.
// Calls carries the execution count for pre-aggregated stores such as
// pg_stat_statements; zero or one means a single execution.
type Entry struct {
	SQL        string
	DurationMs float64
	Hash       string
	Calls      int64
}

// entryJSON mirrors Entry with every field name the desktop clients are
// known to emit. Pointers distinguish absent fields from zero values.
type entryJSON struct {
	SQL   *string `json:"sql"`
	Query *string `json:"query"`

	DurationMs      *float64 `json:"duration_ms"`
	DurationMsAlt   *float64 `json:"durationMs"`
	ElapsedMs       *float64 `json:"elapsed_ms"`
	ElapsedMsAlt    *float64 `json:"elapsedMs"`
	QueryTimeMs     *float64 `json:"query_time_ms"`
	ExecutionTimeMs *float64 `json:"execution_time_ms"`
	TimeMs          *float64 `json:"time_ms"`

	Hash      *string `json:"hash"`
	Digest    *string `json:"digest"`
	QueryHash *string `json:"query_hash"`

	Calls *int64 `json:"calls"`
}

// UnmarshalJSON accepts the loose field naming found in exported history:
// the statement under "sql" or "query", the duration under any of the
// known millisecond aliases, and an optional content hash under "hash",
// "digest" or "query_hash". Unknown fields are ignored.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entry{}
	if raw.SQL != nil {
		e.SQL = *raw.SQL
	} else if raw.Query != nil {
		e.SQL = *raw.Query
	}

	durations := []*float64{
		raw.DurationMs, raw.DurationMsAlt,
		raw.ElapsedMs, raw.ElapsedMsAlt,
		raw.QueryTimeMs, raw.ExecutionTimeMs, raw.TimeMs,
	}
	for _, ms := range durations {
		if ms != nil {
			e.DurationMs = *ms
			break
		}
	}

	for _, h := range []*string{raw.Hash, raw.Digest, raw.QueryHash} {
		if h != nil && *h != "" {
			e.Hash = *h
			break
		}
	}

	if raw.Calls != nil {
		e.Calls = *raw.Calls
	}
	return nil
}

// ToLineageEntries flattens history entries into the builder's input
// model. A pre-aggregated row repeats once per recorded call so execution
// counts survive aggregation; counts beyond maxCallExpansion are clamped
// with the per-call duration scaled to preserve total time.
func ToLineageEntries(entries []Entry) []lineage.Entry {
	out := make([]lineage.Entry, 0, len(entries))
	for _, e := range entries {
		calls := e.Calls
		if calls < 1 {
			calls = 1
		}
		duration := e.DurationMs
		if calls > maxCallExpansion {
			duration = duration * float64(calls) / float64(maxCallExpansion)
			calls = maxCallExpansion
		}
		for i := int64(0); i < calls; i++ {
			out = append(out, lineage.Entry{
				SQL:        e.SQL,
				DurationMs: duration,
				Hash:       e.Hash,
			})
		}
	}
	return out
}
