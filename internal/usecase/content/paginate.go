package content

// Paginate returns the 1-based page of items of size limit. Pages past the
// end are empty; a non-positive limit or page returns nothing.
func Paginate[T any](items []T, limit, page int) []T {
	if limit <= 0 || page <= 0 {
		return []T{}
	}
	if page-1 > len(items)/limit {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
