// Package fetch describes the store contract shared by the content
// pipeline and its storage backends.
package fetch

import (
	"context"

	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// CountFunc evaluates the unpaginated size of a fetch. Stores return it
// unevaluated so that single-record lookups never pay for a count.
type CountFunc func(ctx context.Context) (int, error)

// Options are the predicates a store evaluates natively.
type Options struct {
	Status record.StatusExpr
	Text   query.TextFilter
	Where  map[string]string
	Sort   query.Sort
	Offset int
	Limit  int // 0 means no limit
}

// Page is one fetched window plus its deferred total.
type Page struct {
	Records []record.Record
	Count   CountFunc
}

// StaticCount returns a CountFunc for an already known total.
func StaticCount(n int) CountFunc {
	return func(context.Context) (int, error) { return n, nil }
}
