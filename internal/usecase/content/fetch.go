package content

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// ResultSet is a filtered record list and its unpaginated size.
type ResultSet struct {
	Records []record.Record
	Total   int
}

// collect runs the primary query and, when needed, the post-filter stage.
// Only the final page of records is returned.
func (s *Service) collect(ctx context.Context, sc *Scope, ct contenttype.ContentType, in query.Intent) (ResultSet, error) {
	if !in.NeedsPostFilter() {
		page, err := s.surface(ctx, ct, in, true)
		if err != nil {
			return ResultSet{}, err
		}
		sc.cache.Prime(page.Records...)
		total, err := page.Count(ctx)
		if err != nil {
			return ResultSet{}, fmt.Errorf("count %s: %w", ct.Slug(), err)
		}
		return ResultSet{Records: page.Records, Total: total}, nil
	}

	var candidates []record.Record
	if in.Deep() && in.Text().Term != "" {
		recs, err := s.deep(ctx, sc, ct, in)
		if err != nil {
			return ResultSet{}, err
		}
		candidates = recs
	} else {
		page, err := s.surface(ctx, ct, in, false)
		if err != nil {
			return ResultSet{}, err
		}
		sc.cache.Prime(page.Records...)
		candidates = page.Records
	}

	filtered, err := PostFilter(ctx, sc, candidates, in.Relations())
	if err != nil {
		return ResultSet{}, fmt.Errorf("post-filter %s: %w", ct.Slug(), err)
	}
	p := in.Page()
	return ResultSet{Records: Paginate(filtered, p.Size, p.Number), Total: len(filtered)}, nil
}

// surface asks the store for the type directly. paged=false fetches every
// matching record so that pagination can follow in-memory filtering.
func (s *Service) surface(ctx context.Context, ct contenttype.ContentType, in query.Intent, paged bool) (fetch.Page, error) {
	opts := fetch.Options{
		Status: in.Status(),
		Text:   in.Text(),
		Where:  in.Where(),
		Sort:   in.Sort(),
	}
	if paged {
		opts.Offset = in.Page().Offset()
		opts.Limit = in.Page().Size
	}
	page, err := s.store.Fetch(ctx, ct.Slug(), opts)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("fetch %s: %w", ct.Slug(), err)
	}
	if page.Count == nil {
		page.Count = fetch.StaticCount(len(page.Records))
	}
	return page, nil
}

// deep searches every type for the term and maps each hit onto records of
// ct: hits of ct itself are kept, hits of other types contribute the ct
// records they are related to. Candidates are deduplicated by id.
func (s *Service) deep(ctx context.Context, sc *Scope, ct contenttype.ContentType, in query.Intent) ([]record.Record, error) {
	hits, err := s.store.SearchAll(ctx, in.Text().Term, in.Status())
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", in.Text().Term, err)
	}

	// the term already matched the hit; only status and where apply to targets
	opts := fetch.Options{Status: in.Status(), Where: in.Where()}
	seen := make(map[string]bool)
	var out []record.Record
	add := func(id string) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		rec, found, err := sc.Lookup(ctx, ct.Slug(), id)
		if err != nil {
			return err
		}
		if found && fetch.Matches(rec, opts) {
			out = append(out, rec)
		}
		return nil
	}

	for _, hit := range hits {
		if hit.Type() == ct.Slug() {
			sc.cache.Prime(hit)
			if err := add(hit.ID()); err != nil {
				return nil, err
			}
			continue
		}
		ids, err := sc.RelatedIDs(ctx, hit, ct.Slug())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if err := add(id); err != nil {
				return nil, err
			}
		}
	}

	fetch.SortRecords(out, in.Sort())
	return out, nil
}
