package jsonapi

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/metrics"
)

// Source resolves related records for one request. Implementations are
// expected to memoize lookups.
type Source interface {
	Lookup(ctx context.Context, typ, id string) (record.Record, bool, error)
	RelatedIDs(ctx context.Context, rec record.Record, targetType string) ([]string, error)
}

// Config holds the URL settings used for links and file fields.
type Config struct {
	BaseURL     string // canonical scheme://host
	Endpoint    string // REST mount point, e.g. /api
	FilesPath   string
	ThumbWidth  int
	ThumbHeight int
	// PrefetchLimit bounds concurrent include lookups; 0 means 8.
	PrefetchLimit int
}

// Serializer turns records into documents.
type Serializer struct {
	registry   contenttype.Registry
	cfg        Config
	formatters map[field.Type]Formatter
}

// NewSerializer creates a serializer with the built-in field formatters.
func NewSerializer(registry contenttype.Registry, cfg Config) *Serializer {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Endpoint = "/" + strings.Trim(cfg.Endpoint, "/")
	if cfg.Endpoint == "/" {
		cfg.Endpoint = ""
	}
	if cfg.PrefetchLimit <= 0 {
		cfg.PrefetchLimit = 8
	}
	return &Serializer{registry: registry, cfg: cfg, formatters: defaultFormatters()}
}

// WithFormatter overrides the formatter of one field type.
func (s *Serializer) WithFormatter(ft field.Type, f Formatter) *Serializer {
	s.formatters[ft] = f
	return s
}

// ListPage locates a collection document.
type ListPage struct {
	Path  string     // path below the endpoint, e.g. /books
	Query url.Values // request query, reused for pagination links
	Total int
}

// Collection serializes a page of records.
func (s *Serializer) Collection(
	ctx context.Context, src Source, ct contenttype.ContentType,
	recs []record.Record, in query.Intent, lp ListPage,
) (Document, error) {
	acc := newAccumulator(recs)
	data := make([]Resource, 0, len(recs))
	for _, rec := range recs {
		rct := ct
		if rec.Type() != ct.Slug() {
			// search results mix types
			var err error
			if rct, err = s.registry.Get(rec.Type()); err != nil {
				return Document{}, err
			}
		}
		res, err := s.resource(ctx, src, rct, rec, in, acc)
		if err != nil {
			return Document{}, err
		}
		data = append(data, res)
	}
	included, err := s.included(ctx, src, in, acc)
	if err != nil {
		return Document{}, err
	}

	p := in.Page()
	metrics.DocumentResources.WithLabelValues("data").Observe(float64(len(data)))
	metrics.DocumentResources.WithLabelValues("included").Observe(float64(len(included)))
	return Document{
		Data:     data,
		Included: included,
		Links:    s.pageLinks(lp, p),
		Meta:     &Meta{Count: lp.Total, Page: p.Number, Limit: p.Size},
	}, nil
}

// One serializes a single record.
func (s *Serializer) One(
	ctx context.Context, src Source, ct contenttype.ContentType, rec record.Record, in query.Intent,
) (Document, error) {
	acc := newAccumulator([]record.Record{rec})
	res, err := s.resource(ctx, src, ct, rec, in, acc)
	if err != nil {
		return Document{}, err
	}
	included, err := s.included(ctx, src, in, acc)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Data:     &res,
		Included: included,
		Links:    Links{"self": s.ResourceURL(rec.Type(), rec.ID())},
	}, nil
}

// ResourceURL returns the canonical URL of a record.
func (s *Serializer) ResourceURL(typ, id string) string {
	return s.cfg.BaseURL + s.cfg.Endpoint + "/" + typ + "/" + url.PathEscape(id)
}

// resource serializes rec. When acc is non-nil, ids of requested include
// types are queued on it; children pass nil and never recurse.
func (s *Serializer) resource(
	ctx context.Context, src Source, ct contenttype.ContentType,
	rec record.Record, in query.Intent, acc *accumulator,
) (Resource, error) {
	res := Resource{
		Type:       rec.Type(),
		ID:         rec.ID(),
		Attributes: s.attributes(ct, rec, in),
		Links:      Links{"self": s.ResourceURL(rec.Type(), rec.ID())},
	}

	for _, rel := range ct.Relations() {
		ids, err := src.RelatedIDs(ctx, rec, rel)
		if err != nil {
			return Resource{}, fmt.Errorf("relationships %s/%s -> %s: %w", rec.Type(), rec.ID(), rel, err)
		}
		if ids, err = s.visible(ctx, src, in, rel, ids); err != nil {
			return Resource{}, fmt.Errorf("relationships %s/%s -> %s: %w", rec.Type(), rec.ID(), rel, err)
		}
		if len(ids) == 0 {
			continue
		}
		ident := make([]Identifier, 0, len(ids))
		for _, id := range ids {
			ident = append(ident, Identifier{Type: rel, ID: id})
		}
		if res.Relationships == nil {
			res.Relationships = make(map[string]Relationship)
		}
		base := s.ResourceURL(rec.Type(), rec.ID())
		res.Relationships[rel] = Relationship{
			Data: ident,
			Links: Links{
				"self":    base + "/relationships/" + rel,
				"related": base + "/" + rel,
			},
		}
		if acc != nil && in.Includes(rel) {
			for _, id := range ids {
				acc.add(rel, id)
			}
		}
	}
	return res, nil
}

func (s *Serializer) attributes(ct contenttype.ContentType, rec record.Record, in query.Intent) map[string]any {
	sparse, restricted := in.Fields(rec.Type())
	wanted := func(name string) bool { return !restricted || slices.Contains(sparse, name) }

	attrs := make(map[string]any, len(ct.Fields())+5)
	for _, f := range ct.Fields() {
		if !wanted(f.Name()) {
			continue
		}
		format, ok := s.formatters[f.FieldType()]
		if !ok {
			format = formatRaw
		}
		v, ok := format(s, rec, f)
		if !ok {
			v = nil
		}
		attrs[f.Name()] = v
	}

	meta := map[string]any{
		"status":      string(rec.Status()),
		"ownerid":     rec.Owner(),
		"datecreated": isoTime(rec.DateCreated()),
		"datechanged": isoTime(rec.DateChanged()),
		"datepublish": isoTime(rec.DatePublish()),
	}
	for name, v := range meta {
		if wanted(name) {
			attrs[name] = v
		}
	}
	return attrs
}

func isoTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// prefetch warms the source with parallel lookups of keys.
func (s *Serializer) prefetch(ctx context.Context, src Source, keys []includeKey) error {
	if len(keys) < 2 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PrefetchLimit)
	for _, k := range keys {
		g.Go(func() error {
			_, _, err := src.Lookup(gctx, k.typ, k.id)
			return err
		})
	}
	return g.Wait()
}

// visible keeps the related ids whose records exist and pass the request's
// status expression, the same check included applies.
func (s *Serializer) visible(ctx context.Context, src Source, in query.Intent, typ string, ids []string) ([]string, error) {
	keys := make([]includeKey, len(ids))
	for i, id := range ids {
		keys[i] = includeKey{typ: typ, id: id}
	}
	if err := s.prefetch(ctx, src, keys); err != nil {
		return nil, err
	}
	out := ids[:0:0]
	for _, id := range ids {
		rec, found, err := src.Lookup(ctx, typ, id)
		if err != nil {
			return nil, err
		}
		if found && in.Status().Matches(rec.Status()) {
			out = append(out, id)
		}
	}
	return out, nil
}

// included resolves queued ids through the source. Lookups run in
// parallel; assembly is sequential so that order follows discovery.
func (s *Serializer) included(ctx context.Context, src Source, in query.Intent, acc *accumulator) ([]Resource, error) {
	if len(acc.order) == 0 {
		return nil, nil
	}
	if err := s.prefetch(ctx, src, acc.order); err != nil {
		return nil, fmt.Errorf("prefetch included: %w", err)
	}

	out := make([]Resource, 0, len(acc.order))
	for _, k := range acc.order {
		rec, found, err := src.Lookup(ctx, k.typ, k.id)
		if err != nil {
			return nil, fmt.Errorf("include %s/%s: %w", k.typ, k.id, err)
		}
		if !found || !in.Status().Matches(rec.Status()) {
			continue
		}
		ct, err := s.registry.Get(k.typ)
		if err != nil {
			continue
		}
		res, err := s.resource(ctx, src, ct, rec, in, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Serializer) pageLinks(lp ListPage, p query.Page) Links {
	lastPage := 1
	if p.Size > 0 && lp.Total > 0 {
		lastPage = (lp.Total + p.Size - 1) / p.Size
	}
	links := Links{
		"self":  s.pageURL(lp, p.Number, p.Size),
		"first": s.pageURL(lp, 1, p.Size),
		"last":  s.pageURL(lp, lastPage, p.Size),
	}
	if p.Number > 1 {
		links["prev"] = s.pageURL(lp, min(p.Number-1, lastPage), p.Size)
	}
	if p.Number < lastPage {
		links["next"] = s.pageURL(lp, p.Number+1, p.Size)
	}
	return links
}

func (s *Serializer) pageURL(lp ListPage, number, size int) string {
	q := url.Values{}
	for k, v := range lp.Query {
		q[k] = slices.Clone(v)
	}
	q.Set("page[number]", strconv.Itoa(number))
	q.Set("page[size]", strconv.Itoa(size))
	return s.cfg.BaseURL + s.cfg.Endpoint + lp.Path + "?" + q.Encode()
}

type includeKey struct {
	typ string
	id  string
}

// accumulator collects include candidates once each, skipping primaries.
type accumulator struct {
	seen  map[includeKey]bool
	order []includeKey
}

func newAccumulator(primaries []record.Record) *accumulator {
	acc := &accumulator{seen: make(map[includeKey]bool, len(primaries))}
	for _, r := range primaries {
		acc.seen[includeKey{typ: r.Type(), id: r.ID()}] = true
	}
	return acc
}

func (a *accumulator) add(typ, id string) {
	k := includeKey{typ: typ, id: id}
	if a.seen[k] {
		return
	}
	a.seen[k] = true
	a.order = append(a.order, k)
}
