package content

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Permission verbs checked through the Gate.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Action builds the permission string for a verb on a content type.
func Action(typ, verb string) string {
	return fmt.Sprintf("contenttype:%s:%s", typ, verb)
}

// ListResult is one page of records of a type.
type ListResult struct {
	Type    contenttype.ContentType
	Intent  query.Intent
	Records []record.Record
	Total   int
}

// ItemResult is a single record.
type ItemResult struct {
	Type   contenttype.ContentType
	Intent query.Intent
	Record record.Record
}

// Service lists, reads and writes content records.
type Service struct {
	registry      contenttype.Registry
	store         Store
	gate          Gate
	defaults      query.Defaults
	editorStatus  string
	softDelete    bool
	deletedStatus record.Status
	now           func() time.Time
}

// New creates a content service.
func New(registry contenttype.Registry, store Store, gate Gate) *Service {
	return &Service{
		registry:     registry,
		store:        store,
		gate:         gate,
		defaults:     query.Defaults{Status: string(record.Published), Limit: 20, MaxSize: 100},
		editorStatus: "published || draft || held",
		now:          time.Now,
	}
}

// WithDefaults overrides the query defaults. Zero values keep the current ones.
func (s *Service) WithDefaults(d query.Defaults) *Service {
	if d.Status != "" {
		s.defaults.Status = d.Status
	}
	if d.Limit > 0 {
		s.defaults.Limit = d.Limit
	}
	if d.MaxSize > 0 {
		s.defaults.MaxSize = d.MaxSize
	}
	if d.Sort != "" {
		s.defaults.Sort = d.Sort
	}
	return s
}

// WithEditorStatus sets the default status expression for principals who may edit a type.
func (s *Service) WithEditorStatus(expr string) *Service {
	if expr != "" {
		s.editorStatus = expr
	}
	return s
}

// WithSoftDelete makes Delete set status instead of removing the record.
func (s *Service) WithSoftDelete(status string) *Service {
	s.softDelete = true
	s.deletedStatus = record.NormalizeStatus(status)
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Registry returns the content type registry.
func (s *Service) Registry() contenttype.Registry { return s.registry }

// List returns a page of records of typ matching the raw query parameters.
func (s *Service) List(ctx context.Context, sc *Scope, typ string, raw url.Values) (ListResult, error) {
	ct, in, err := s.prepare(ctx, typ, raw)
	if err != nil {
		return ListResult{}, err
	}
	rs, err := s.collect(ctx, sc, ct, in)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Type: ct, Intent: in, Records: rs.Records, Total: rs.Total}, nil
}

// Get returns one record of typ by slug or id.
func (s *Service) Get(ctx context.Context, sc *Scope, typ, idOrSlug string, raw url.Values) (ItemResult, error) {
	ct, in, err := s.prepare(ctx, typ, raw)
	if err != nil {
		return ItemResult{}, err
	}
	rec, err := s.find(ctx, sc, ct, in.Status(), idOrSlug)
	if err != nil {
		return ItemResult{}, err
	}
	return ItemResult{Type: ct, Intent: in, Record: rec}, nil
}

// Related lists the records of relatedType linked to typ/id. The query
// parameters apply to the related type.
func (s *Service) Related(
	ctx context.Context, sc *Scope, typ, id, relatedType string, raw url.Values,
) (ListResult, error) {
	parent, err := s.Get(ctx, sc, typ, id, nil)
	if err != nil {
		return ListResult{}, err
	}
	if !parent.Type.HasRelation(relatedType) {
		return ListResult{}, fmt.Errorf("%s has no relation %q: %w", typ, relatedType, domain.ErrNotFound)
	}
	ct, in, err := s.prepare(ctx, relatedType, raw)
	if err != nil {
		return ListResult{}, err
	}

	ids, err := sc.RelatedIDs(ctx, parent.Record, relatedType)
	if err != nil {
		return ListResult{}, fmt.Errorf("resolve %s: %w", relatedType, err)
	}
	opts := fetch.Options{Status: in.Status(), Text: in.Text(), Where: in.Where()}
	recs := make([]record.Record, 0, len(ids))
	for _, rid := range ids {
		rec, found, err := sc.Lookup(ctx, relatedType, rid)
		if err != nil {
			return ListResult{}, fmt.Errorf("lookup %s/%s: %w", relatedType, rid, err)
		}
		if found && fetch.Matches(rec, opts) {
			recs = append(recs, rec)
		}
	}
	fetch.SortRecords(recs, in.Sort())
	recs, err = PostFilter(ctx, sc, recs, in.Relations())
	if err != nil {
		return ListResult{}, fmt.Errorf("post-filter %s: %w", relatedType, err)
	}
	p := in.Page()
	return ListResult{Type: ct, Intent: in, Records: Paginate(recs, p.Size, p.Number), Total: len(recs)}, nil
}

// prepare resolves the content type, checks view permission and digests
// the query. Nothing touches the store before it succeeds.
func (s *Service) prepare(ctx context.Context, typ string, raw url.Values) (contenttype.ContentType, query.Intent, error) {
	ct, err := s.registry.Viewable(typ)
	if err != nil {
		return contenttype.ContentType{}, query.Intent{}, err
	}
	p := principal.FromContext(ctx)
	if !s.gate.Allowed(p, Action(ct.Slug(), ActionView)) {
		return contenttype.ContentType{}, query.Intent{}, fmt.Errorf("view %s: %w", ct.Slug(), domain.ErrForbidden)
	}
	in, err := query.Digest(raw, ct, s.defaultsFor(p, ct))
	if err != nil {
		return contenttype.ContentType{}, query.Intent{}, err
	}
	return ct, in, nil
}

func (s *Service) defaultsFor(p principal.Principal, ct contenttype.ContentType) query.Defaults {
	d := s.defaults
	if s.gate.Allowed(p, Action(ct.Slug(), ActionEdit)) {
		d.Status = s.editorStatus
	}
	return d
}

// find looks a record up by slug first, then by id.
func (s *Service) find(
	ctx context.Context, sc *Scope, ct contenttype.ContentType, status record.StatusExpr, idOrSlug string,
) (record.Record, error) {
	if ct.HasSlug() {
		page, err := s.store.Fetch(ctx, ct.Slug(), fetch.Options{
			Status: status,
			Where:  map[string]string{contenttype.SlugField: idOrSlug},
			Limit:  1,
		})
		if err != nil {
			return record.Record{}, fmt.Errorf("find %s by slug: %w", ct.Slug(), err)
		}
		if len(page.Records) > 0 {
			sc.cache.Prime(page.Records[0])
			return page.Records[0], nil
		}
	}

	rec, found, err := sc.Lookup(ctx, ct.Slug(), idOrSlug)
	if err != nil {
		return record.Record{}, err
	}
	if !found || !status.Matches(rec.Status()) {
		return record.Record{}, fmt.Errorf("%s/%s: %w", ct.Slug(), idOrSlug, domain.ErrNotFound)
	}
	return rec, nil
}
