package lineage

import "strings"

// ViewMode selects the granularity of the produced graph.
type ViewMode string

const (
	// ViewModeFull keeps Query, Table, and Column nodes.
	ViewModeFull ViewMode = "FULL"
	// ViewModeTableQuery drops Column nodes.
	ViewModeTableQuery ViewMode = "TABLE_QUERY"
	// ViewModeTableOnly collapses queries into table-to-table edges.
	ViewModeTableOnly ViewMode = "TABLE_ONLY"
)

// FilterAll is the QueryTypeFilter value that matches every supported
// statement type. It is also what an empty or unrecognized filter
// normalizes to.
const FilterAll = "ALL"

// Options tune one Build call. The zero value means: every statement
// type, no table filter, no default schema, full view.
type Options struct {
	// QueryTypeFilter keeps only statements of one type: ALL, SELECT,
	// INSERT, UPDATE, or DELETE. Case-insensitive.
	QueryTypeFilter string `json:"queryTypeFilter,omitempty"`
	// TableFilter is a comma-separated list of case-insensitive
	// substrings; a statement survives when any table id in its scope
	// contains any of them.
	TableFilter string `json:"tableFilter,omitempty"`
	// DefaultSchema qualifies bare table names when set.
	DefaultSchema string `json:"defaultSchema,omitempty"`
	// ViewMode is FULL, TABLE_QUERY, or TABLE_ONLY. Anything else is
	// treated as FULL.
	ViewMode ViewMode `json:"viewMode,omitempty"`
}

// buildOptions is Options after defaulting and case folding, ready for
// direct comparison in the build loop.
type buildOptions struct {
	typeFilter    QueryType // empty means no filter
	tableTerms    []string
	defaultSchema string
	viewMode      ViewMode
}

func (o Options) normalized() buildOptions {
	b := buildOptions{
		defaultSchema: strings.TrimSpace(o.DefaultSchema),
		viewMode:      ViewModeFull,
	}
	switch ViewMode(strings.ToUpper(strings.TrimSpace(string(o.ViewMode)))) {
	case ViewModeTableQuery:
		b.viewMode = ViewModeTableQuery
	case ViewModeTableOnly:
		b.viewMode = ViewModeTableOnly
	}
	switch q := QueryType(strings.ToUpper(strings.TrimSpace(o.QueryTypeFilter))); q {
	case QuerySelect, QueryInsert, QueryUpdate, QueryDelete:
		b.typeFilter = q
	}
	for _, term := range strings.Split(o.TableFilter, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			b.tableTerms = append(b.tableTerms, term)
		}
	}
	return b
}
