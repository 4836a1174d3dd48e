package dataset

import "strings"

// Filter narrows a query to rows whose name contains the given substring,
// case-insensitively. The zero value matches every row.
type Filter struct {
	NameContains string
}

// Page is an offset/limit slice over the filtered result.
type Page struct {
	Offset int
	Limit  int
}

// QueryResult is one page of rows plus the counts the presentation layer
// needs: TotalCount is the full snapshot size, FilteredCount the post-filter
// size before pagination.
type QueryResult struct {
	Rows          []Record
	TotalCount    int
	FilteredCount int
}

// Query serves a filtered, paginated view of the snapshot. The result is
// stable because the snapshot is immutable; a caller that acquired this
// snapshot before a refresh keeps seeing it. An offset beyond the filtered
// set returns zero rows, not an error. A non-positive limit returns counts
// with no rows.
func (s *Snapshot) Query(f Filter, p Page) QueryResult {
	res := QueryResult{TotalCount: len(s.records)}

	var filtered []Record
	if f.NameContains == "" {
		filtered = s.records
	} else {
		needle := strings.ToLower(f.NameContains)
		filtered = make([]Record, 0, 64)
		for _, rec := range s.records {
			if strings.Contains(strings.ToLower(rec.Name), needle) {
				filtered = append(filtered, rec)
			}
		}
	}
	res.FilteredCount = len(filtered)

	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Offset >= len(filtered) {
		res.Rows = []Record{}
		return res
	}

	end := p.Offset + p.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	res.Rows = filtered[p.Offset:end]
	return res
}
