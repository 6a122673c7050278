package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker verifies that the search indexes of every content type exist.
type IndexChecker interface {
	CheckIndexes(ctx context.Context) error
}
