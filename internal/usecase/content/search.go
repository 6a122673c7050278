package content

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
)

// Search lists free-text hits of every type the principal may view. Hits
// keep their own type; include and relation filters accept any of those types.
func (s *Service) Search(ctx context.Context, sc *Scope, raw url.Values) (ListResult, error) {
	p := principal.FromContext(ctx)
	var visible []string
	for _, ct := range s.registry.All() {
		if !ct.Viewless() && s.gate.Allowed(p, Action(ct.Slug(), ActionView)) {
			visible = append(visible, ct.Slug())
		}
	}
	pseudo := contenttype.Reconstruct(contenttype.Definition{
		Slug:      contenttype.SearchSlug,
		Relations: visible,
	})

	in, err := query.Digest(raw, pseudo, s.defaults)
	if err != nil {
		return ListResult{}, err
	}
	term := in.Text().Term
	if term == "" {
		return ListResult{}, fmt.Errorf("filter[contain] is required: %w", domain.ErrInvalidQuery)
	}

	hits, err := s.store.SearchAll(ctx, term, in.Status())
	if err != nil {
		return ListResult{}, fmt.Errorf("search %q: %w", term, err)
	}
	recs := hits[:0:0]
	for _, hit := range hits {
		if slices.Contains(visible, hit.Type()) {
			recs = append(recs, hit)
		}
	}
	sc.cache.Prime(recs...)
	fetch.SortRecords(recs, in.Sort())

	recs, err = PostFilter(ctx, sc, recs, in.Relations())
	if err != nil {
		return ListResult{}, fmt.Errorf("post-filter search: %w", err)
	}
	pg := in.Page()
	return ListResult{Type: pseudo, Intent: in, Records: Paginate(recs, pg.Size, pg.Number), Total: len(recs)}, nil
}
