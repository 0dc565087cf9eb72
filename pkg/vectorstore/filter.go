package vectorstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Filter is a JSON metadata filter. Plain keys match by JSONB containment;
// "$and" and "$or" take a list of filters and "$not" takes a single filter.
type Filter = map[string]any

// whereClause compiles f into a SQL condition over the metadata column and
// the positional arguments it references.
func whereClause(f Filter) (string, []any, error) {
	var w whereBuilder
	sql, err := w.compile(f)
	if err != nil {
		return "", nil, err
	}
	return sql, w.args, nil
}

type whereBuilder struct {
	args []any
}

func (w *whereBuilder) compile(f Filter) (string, error) {
	var terms []string
	// sorted so placeholders are numbered the same way every time
	for _, key := range slices.Sorted(maps.Keys(f)) {
		term, err := w.term(key, f[key])
		if err != nil {
			return "", err
		}
		if term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return "TRUE", nil
	}
	return strings.Join(terms, " AND "), nil
}

func (w *whereBuilder) term(key string, value any) (string, error) {
	switch key {
	case "$and", "$or":
		list, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("%s expects a list of filters", key)
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			sub, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%s entries must be objects", key)
			}
			sql, err := w.compile(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+sql+")")
		}
		if len(parts) == 0 {
			return "", nil
		}
		sep := " AND "
		if key == "$or" {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil

	case "$not":
		sub, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("$not expects an object")
		}
		sql, err := w.compile(sub)
		if err != nil {
			return "", err
		}
		return "NOT (" + sql + ")", nil
	}

	pair, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return "", fmt.Errorf("encode filter %q: %w", key, err)
	}
	w.args = append(w.args, pair)
	return fmt.Sprintf("metadata @> $%d", len(w.args)), nil
}
