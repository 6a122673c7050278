// Package content stores records as RedisJSON documents with one FT index
// per content type and relation edges in SETs at both endpoints.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/contentrest/internal/db"
	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/metrics"
)

const driverName = "redis"

// maxWindow bounds unpaged fetches; it matches the FT.SEARCH default MAXSEARCHRESULTS.
const maxWindow = 10000

// store is the consumer interface for content records (ISP).
//
//nolint:interfacebloat // records, edges, counters and indexes share one keyspace
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements usecase/content.Store over Redis.
type Repo struct {
	store    store
	registry contenttype.Registry
	keys     keys
}

// New creates a content repository. prefix namespaces every key.
func New(s store, registry contenttype.Registry, prefix string) *Repo {
	return &Repo{store: s, registry: registry, keys: keys{prefix: prefix}}
}

// EnsureIndexes creates missing FT indexes for every registered type. The
// FT.CREATE form of each index is stored next to it; an index whose stored
// form differs from the current schema is dropped and rebuilt. Records stay
// in place and are re-indexed by Redis.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, ct := range r.registry.All() {
		def, err := buildIndex(r.keys, ct)
		if err != nil {
			return fmt.Errorf("build index %s: %w", ct.Slug(), err)
		}
		if err := r.ensureIndex(ctx, ct.Slug(), def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ensureIndex(ctx context.Context, slug string, def *db.IndexDefinition) error {
	want := def.String()
	stored, err := r.store.Get(ctx, r.keys.schema(slug))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("read schema %s: %w", slug, err)
	}
	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", def.Name, err)
	}

	switch {
	case exists && (stored == nil || string(stored) == want):
		// unchanged, or created before schemas were recorded
	case exists:
		if err := r.store.DropIndex(ctx, def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop stale index %s: %w", def.Name, err)
		}
		fallthrough
	default:
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
	}

	if string(stored) == want {
		return nil
	}
	if err := r.store.Set(ctx, r.keys.schema(slug), []byte(want)); err != nil {
		return fmt.Errorf("record schema %s: %w", slug, err)
	}
	return nil
}

// CheckIndexes reports the first registered type whose FT index is missing.
func (r *Repo) CheckIndexes(ctx context.Context) error {
	for _, slug := range r.registry.Slugs() {
		name := r.keys.index(slug)
		exists, err := r.store.IndexExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		if !exists {
			return fmt.Errorf("index %s: %w", name, db.ErrIndexNotFound)
		}
	}
	return nil
}

// Fetch runs one FT.SEARCH window. The count is a separate LIMIT 0 0 query
// issued only when the caller asks for it.
func (r *Repo) Fetch(ctx context.Context, typ string, opts fetch.Options) (_ fetch.Page, err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "fetch", start, err) }(time.Now())

	q := buildQuery(opts)
	count := func(ctx context.Context) (int, error) {
		n, err := r.store.SearchCount(ctx, r.keys.index(typ), q)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", typ, err)
		}
		return n, nil
	}
	// FT.SEARCH rejects windows past MAXSEARCHRESULTS
	if opts.Offset >= maxWindow {
		return fetch.Page{Records: []record.Record{}, Count: count}, nil
	}
	sq := &db.SearchQuery{
		Index:        r.keys.index(typ),
		Query:        q,
		Offset:       opts.Offset,
		Limit:        opts.Limit,
		ReturnFields: []string{"$"},
	}
	if sq.Limit <= 0 {
		sq.Limit = maxWindow
	}
	if !opts.Sort.IsZero() {
		sq.SortBy, sq.SortDesc = sortAttr(opts.Sort.Field), opts.Sort.Desc
	} else {
		sq.SortBy = sortAttr("id")
	}

	recs, err := r.search(ctx, sq)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("fetch %s: %w", typ, err)
	}
	return fetch.Page{Records: recs, Count: count}, nil
}

// SearchAll runs the text query against every type index in registry order.
func (r *Repo) SearchAll(ctx context.Context, term string, status record.StatusExpr) (_ []record.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "search_all", start, err) }(time.Now())

	q := db.And(statusQuery(status), db.ContainsQuery(attrSearch, term))
	var out []record.Record
	for _, slug := range r.registry.Slugs() {
		recs, err := r.search(ctx, &db.SearchQuery{
			Index:        r.keys.index(slug),
			Query:        q,
			Limit:        maxWindow,
			SortBy:       sortAttr("id"),
			ReturnFields: []string{"$"},
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", slug, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// FindByID loads one record and its edges.
func (r *Repo) FindByID(ctx context.Context, typ, id string) (_ record.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "find", start, err) }(time.Now())

	key := r.keys.doc(typ, id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return record.Record{}, fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
		}
		return record.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	doc, err := parseJSONGetResult(raw)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return r.hydrate(ctx, doc)
}

// NextID increments the per-type counter.
func (r *Repo) NextID(ctx context.Context, typ string) (string, error) {
	n, err := r.store.IncrBy(ctx, r.keys.seq(typ), 1)
	if err != nil {
		return "", fmt.Errorf("next id %s: %w", typ, err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Save writes the JSON document, then replaces its outgoing edges.
func (r *Repo) Save(ctx context.Context, rec record.Record) (err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "save", start, err) }(time.Now())

	ct, err := r.registry.Get(rec.Type())
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.Type(), err)
	}
	key := r.keys.doc(rec.Type(), rec.ID())
	data, err := json.Marshal(buildJSONRecord(ct, rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return r.replaceOutgoing(ctx, rec.Type(), rec.ID(), rec.OutgoingEdges())
}

// Delete removes the document, its edge sets and the mirrored entries on
// the far side of every edge.
func (r *Repo) Delete(ctx context.Context, typ, id string) (err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "delete", start, err) }(time.Now())

	key := r.keys.doc(typ, id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
	}

	if err := r.replaceOutgoing(ctx, typ, id, nil); err != nil {
		return err
	}
	incoming, err := r.store.SMembers(ctx, r.keys.in(typ, id))
	if err != nil {
		return fmt.Errorf("smembers %s: %w", r.keys.in(typ, id), err)
	}
	for _, m := range incoming {
		fromType, fromID, ok := splitMember(m)
		if !ok {
			continue
		}
		if err := r.store.SRem(ctx, r.keys.out(fromType, fromID), member(typ, id)); err != nil {
			return fmt.Errorf("srem %s: %w", m, err)
		}
	}

	if err := r.store.Del(ctx, key, r.keys.out(typ, id), r.keys.in(typ, id)); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (r *Repo) replaceOutgoing(ctx context.Context, typ, id string, edges []record.Edge) error {
	outKey := r.keys.out(typ, id)
	old, err := r.store.SMembers(ctx, outKey)
	if err != nil {
		return fmt.Errorf("smembers %s: %w", outKey, err)
	}
	for _, m := range old {
		toType, toID, ok := splitMember(m)
		if !ok {
			continue
		}
		if err := r.store.SRem(ctx, r.keys.in(toType, toID), member(typ, id)); err != nil {
			return fmt.Errorf("srem %s: %w", m, err)
		}
	}
	if err := r.store.Del(ctx, outKey); err != nil {
		return fmt.Errorf("del %s: %w", outKey, err)
	}

	members := make([]string, 0, len(edges))
	for _, e := range edges {
		members = append(members, member(e.ToType, e.ToID))
		if err := r.store.SAdd(ctx, r.keys.in(e.ToType, e.ToID), member(typ, id)); err != nil {
			return fmt.Errorf("sadd %s: %w", r.keys.in(e.ToType, e.ToID), err)
		}
	}
	if err := r.store.SAdd(ctx, outKey, members...); err != nil {
		return fmt.Errorf("sadd %s: %w", outKey, err)
	}
	return nil
}

func (r *Repo) search(ctx context.Context, sq *db.SearchQuery) ([]record.Record, error) {
	res, err := r.store.Search(ctx, sq)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with type context
	}
	if res == nil {
		return nil, nil
	}
	out := make([]record.Record, 0, len(res.Entries))
	for _, entry := range res.Entries {
		raw := entry.Fields["$"]
		if raw == "" {
			continue
		}
		var doc jsonRecord
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Key, err)
		}
		rec, err := r.hydrate(ctx, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// hydrate attaches the edges of both directions.
func (r *Repo) hydrate(ctx context.Context, doc jsonRecord) (record.Record, error) {
	d := doc.toData()

	out, err := r.store.SMembers(ctx, r.keys.out(d.Type, d.ID))
	if err != nil {
		return record.Record{}, fmt.Errorf("edges of %s/%s: %w", d.Type, d.ID, err)
	}
	in, err := r.store.SMembers(ctx, r.keys.in(d.Type, d.ID))
	if err != nil {
		return record.Record{}, fmt.Errorf("edges of %s/%s: %w", d.Type, d.ID, err)
	}

	for _, m := range out {
		if toType, toID, ok := splitMember(m); ok {
			d.Relations = append(d.Relations, record.Edge{FromType: d.Type, FromID: d.ID, ToType: toType, ToID: toID})
		}
	}
	for _, m := range in {
		if fromType, fromID, ok := splitMember(m); ok {
			d.Relations = append(d.Relations, record.Edge{FromType: fromType, FromID: fromID, ToType: d.Type, ToID: d.ID})
		}
	}
	sortEdges(d.Relations)
	return record.Reconstruct(d), nil
}
