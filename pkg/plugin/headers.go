package plugin

import (
	"database/sql"
	"strings"

	"github.com/dkowalski/ulidmq/pkg/topicmatch"
)

// headersSeparator joins surviving `k=v` pairs in the stored headers
// column. Resolves spec.md §9's open question: the source's test suite
// only ever checks for `k=v` substrings and never fixes a separator.
// ';' is chosen because '=' already separates key from value within a
// pair, matching the `k=v;k=v` convention found in other retrieved
// plugin/header-carrying code in the pack.
const headersSeparator = ";"

// formatHeaders serializes the surviving user properties of props into
// the stored headers column, per spec.md §4.7 step 4 / §6. Properties
// named in excluded are dropped first; if disableHeaders is true
// (the `exclude_headers=#` sentinel), the result is always NULL.
func formatHeaders(props []Property, excluded map[string]struct{}, disableHeaders bool) sql.NullString {
	if disableHeaders || len(props) == 0 {
		return sql.NullString{}
	}

	names := make([]string, len(props))
	byName := make(map[string]string, len(props))
	for i, p := range props {
		names[i] = p.Name
		byName[p.Name] = p.Value
	}

	surviving := topicmatch.FilterHeaders(names, excluded)
	if len(surviving) == 0 {
		return sql.NullString{}
	}

	pairs := make([]string, len(surviving))
	for i, name := range surviving {
		pairs[i] = name + "=" + byName[name]
	}

	return sql.NullString{String: strings.Join(pairs, headersSeparator), Valid: true}
}
