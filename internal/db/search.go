package db

// SearchQuery is the input for a paginated FT.SEARCH.
type SearchQuery struct {
	Index        string
	Query        string
	Offset       int
	Limit        int
	SortBy       string // index attribute; empty keeps index order
	SortDesc     bool
	ReturnFields []string
	NoContent    bool // return keys only
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}
