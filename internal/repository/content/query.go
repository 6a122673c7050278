package content

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/contentrest/internal/db"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// buildQuery translates fetch options into an FT.SEARCH query string.
func buildQuery(opts fetch.Options) string {
	parts := []string{statusQuery(opts.Status)}
	if opts.Text.Term != "" {
		parts = append(parts, db.ContainsQuery(attrSearch, opts.Text.Term))
	}

	names := make([]string, 0, len(opts.Where))
	for name := range opts.Where {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		parts = append(parts, db.TagQuery(whereAttr(name), opts.Where[name]))
	}
	return db.And(parts...)
}

func statusQuery(expr record.StatusExpr) string {
	if expr.IsZero() {
		return ""
	}
	var parts []string
	if inc := expr.Include(); len(inc) > 0 {
		parts = append(parts, db.TagQuery(attrStatus, statusStrings(inc)...))
	}
	if exc := expr.Exclude(); len(exc) > 0 {
		parts = append(parts, db.Not(db.TagQuery(attrStatus, statusStrings(exc)...)))
	}
	return db.And(parts...)
}

func statusStrings(in []record.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// sortEdges gives hydrated records a stable edge order. Sets are unordered.
func sortEdges(edges []record.Edge) {
	slices.SortFunc(edges, func(a, b record.Edge) int {
		return cmp.Or(
			cmp.Compare(a.FromType, b.FromType),
			fetch.Compare(a.FromID, b.FromID),
			cmp.Compare(a.ToType, b.ToType),
			fetch.Compare(a.ToID, b.ToID),
		)
	})
}
