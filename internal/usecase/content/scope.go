package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/fetchcache"
)

// Scope holds the state of one request: the fetch cache and the
// relationship resolver built on it. It must not outlive the request.
type Scope struct {
	cache    *fetchcache.Cache
	resolver Resolver
}

// NewScope starts a request scope over the service store.
func (s *Service) NewScope() *Scope {
	cache := fetchcache.New(func(ctx context.Context, typ, id string) (record.Record, bool, error) {
		rec, err := s.store.FindByID(ctx, typ, id)
		if errors.Is(err, domain.ErrNotFound) {
			return record.Record{}, false, nil
		}
		if err != nil {
			return record.Record{}, false, fmt.Errorf("find %s/%s: %w", typ, id, err)
		}
		return rec, true, nil
	})
	return &Scope{
		cache:    cache,
		resolver: Resolver{cache: cache, softDelete: s.softDelete, deleted: s.deletedStatus},
	}
}

// Lookup returns a record through the request cache.
func (sc *Scope) Lookup(ctx context.Context, typ, id string) (record.Record, bool, error) {
	return sc.cache.GetOrFetch(ctx, typ, id)
}

// RelatedIDs returns the live related ids of rec in targetType.
func (sc *Scope) RelatedIDs(ctx context.Context, rec record.Record, targetType string) ([]string, error) {
	return sc.resolver.RelatedIDs(ctx, rec, targetType)
}

// Cache exposes the request cache for instrumentation and tests.
func (sc *Scope) Cache() *fetchcache.Cache { return sc.cache }

// Resolver lists related ids in either edge direction. With soft delete
// enabled, ids of missing or deleted records are dropped.
type Resolver struct {
	cache      *fetchcache.Cache
	softDelete bool
	deleted    record.Status
}

// RelatedIDs returns the related ids of rec in targetType.
func (r Resolver) RelatedIDs(ctx context.Context, rec record.Record, targetType string) ([]string, error) {
	ids := rec.RelatedIDs(targetType)
	if !r.softDelete || len(ids) == 0 {
		return ids, nil
	}
	live := ids[:0:0]
	for _, id := range ids {
		related, found, err := r.cache.GetOrFetch(ctx, targetType, id)
		if err != nil {
			return nil, err
		}
		if found && related.Status() != r.deleted {
			live = append(live, id)
		}
	}
	return live, nil
}
