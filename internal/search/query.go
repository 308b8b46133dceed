package search

import "strings"

// buildGetBody translates a Query into the backend's request body. Shape:
//
//	{"from": o, "size": l,
//	 "sort": {field: "asc"|"desc"},
//	 "query": {"match": {field: {"query": v}}}}
//
// with the match clause replaced by a nested clause when the filter field
// names a sub-object path.
func buildGetBody(query Query) map[string]any {
	body := paginationFields(query.Limit, query.Offset)

	if query.SortBy != "" {
		field := query.SortBy
		direction := "asc"
		if strings.HasPrefix(field, "-") {
			field = field[1:]
			direction = "desc"
		}
		body["sort"] = map[string]any{field: direction}
	}

	if query.Filter != nil && !query.Filter.empty() {
		if path, field, ok := query.Filter.nested(); ok {
			body["query"] = map[string]any{
				"nested": map[string]any{
					"path": path,
					"query": map[string]any{
						"match": map[string]any{
							path + "." + field: map[string]any{"query": query.Filter.Value},
						},
					},
				},
			}
		} else {
			body["query"] = map[string]any{
				"match": map[string]any{
					query.Filter.Field: map[string]any{"query": query.Filter.Value},
				},
			}
		}
	}

	return body
}

// buildSearchBody translates a free-text search into a query_string clause
// with pagination. Matching semantics are backend-native, not exact match.
func buildSearchBody(text string, limit, offset int) map[string]any {
	body := paginationFields(limit, offset)
	body["query"] = map[string]any{
		"query_string": map[string]any{"query": text},
	}
	return body
}

func paginationFields(limit, offset int) map[string]any {
	return map[string]any{
		"from": offset,
		"size": limit,
	}
}
