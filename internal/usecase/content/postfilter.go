package content

import (
	"context"
	"slices"

	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// PostFilter applies relation filters to a candidate set. Positive filters
// keep records related to at least one allowed id (or to anything of the
// type when no ids were given); negative filters drop records related to
// an excluded id unless they are also related to an except id.
func PostFilter(ctx context.Context, sc *Scope, recs []record.Record, filters []query.RelationFilter) ([]record.Record, error) {
	if len(filters) == 0 {
		return recs, nil
	}
	out := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		keep, err := keepRecord(ctx, sc, rec, filters)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out, nil
}

func keepRecord(ctx context.Context, sc *Scope, rec record.Record, filters []query.RelationFilter) (bool, error) {
	for _, f := range filters {
		related, err := sc.RelatedIDs(ctx, rec, f.Type)
		if err != nil {
			return false, err
		}
		if f.Negated {
			if len(related) == 0 {
				continue
			}
			hit := len(f.IDs) == 0 || intersects(related, f.IDs)
			if hit && !intersects(related, f.Except) {
				return false, nil
			}
			continue
		}
		if len(related) == 0 {
			return false, nil
		}
		if len(f.IDs) > 0 && !intersects(related, f.IDs) {
			return false, nil
		}
	}
	return true, nil
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}
