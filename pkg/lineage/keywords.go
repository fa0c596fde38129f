package lineage

import "strings"

// reservedWords are SQL keywords that can directly follow a table
// reference, so a match here means "no alias" during scope building.
// The set errs on the side of inclusion: treating a rare keyword-named
// alias as absent only loses an alternate lookup key.
var reservedWords = map[string]struct{}{
	"all":       {},
	"and":       {},
	"as":        {},
	"asc":       {},
	"between":   {},
	"by":        {},
	"case":      {},
	"cross":     {},
	"current":   {},
	"delete":    {},
	"desc":      {},
	"distinct":  {},
	"else":      {},
	"end":       {},
	"except":    {},
	"exists":    {},
	"fetch":     {},
	"filter":    {},
	"for":       {},
	"from":      {},
	"full":      {},
	"group":     {},
	"having":    {},
	"ilike":     {},
	"in":        {},
	"inner":     {},
	"insert":    {},
	"intersect": {},
	"into":      {},
	"is":        {},
	"join":      {},
	"lateral":   {},
	"left":      {},
	"like":      {},
	"limit":     {},
	"natural":   {},
	"not":       {},
	"null":      {},
	"offset":    {},
	"on":        {},
	"or":        {},
	"order":     {},
	"outer":     {},
	"over":      {},
	"partition": {},
	"qualify":   {},
	"recursive": {},
	"returning": {},
	"right":     {},
	"select":    {},
	"set":       {},
	"then":      {},
	"union":     {},
	"update":    {},
	"using":     {},
	"values":    {},
	"when":      {},
	"where":     {},
	"window":    {},
	"with":      {},
}

// isReserved reports whether word is a SQL keyword, case-insensitively.
func isReserved(word string) bool {
	_, ok := reservedWords[strings.ToLower(word)]
	return ok
}
