// Package memory is an in-process content store. It backs the "memory"
// database driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Store keeps records and relation edges in maps guarded by one lock.
type Store struct {
	registry contenttype.Registry

	mu      sync.RWMutex
	records map[string]map[string]record.Data
	edges   []record.Edge
	seq     map[string]int64
}

// New creates an empty store. The registry supplies each type's search fields.
func New(registry contenttype.Registry) *Store {
	return &Store{
		registry: registry,
		records:  make(map[string]map[string]record.Data),
		seq:      make(map[string]int64),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Fetch filters, sorts and windows one type.
func (s *Store) Fetch(_ context.Context, typ string, opts fetch.Options) (fetch.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.matching(typ, opts)
	fetch.SortRecords(all, opts.Sort)
	window := slices.Clone(fetch.Window(all, opts.Offset, opts.Limit))
	return fetch.Page{
		Records: window,
		Count: func(context.Context) (int, error) {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return len(s.matching(typ, opts)), nil
		},
	}, nil
}

// SearchAll matches term against the search fields of every registered
// type, in registry order.
func (s *Store) SearchAll(_ context.Context, term string, status record.StatusExpr) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term = strings.ToLower(term)
	var out []record.Record
	for _, ct := range s.registry.All() {
		var hits []record.Record
		for _, d := range s.records[ct.Slug()] {
			if !status.IsZero() && !status.Matches(d.Status) {
				continue
			}
			if containsTerm(d.Fields, ct.SearchFields(), term) {
				hits = append(hits, s.hydrate(d))
			}
		}
		fetch.SortRecords(hits, query.Sort{})
		out = append(out, hits...)
	}
	return out, nil
}

// FindByID returns one record with its edges.
func (s *Store) FindByID(_ context.Context, typ, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.records[typ][id]
	if !ok {
		return record.Record{}, fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
	}
	return s.hydrate(d), nil
}

// NextID returns the next numeric id of typ.
func (s *Store) NextID(_ context.Context, typ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[typ]++
	return strconv.FormatInt(s.seq[typ], 10), nil
}

// Save stores rec and replaces its outgoing edges.
func (s *Store) Save(_ context.Context, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := rec.Data()
	outgoing := rec.OutgoingEdges()
	d.Relations = nil
	if s.records[d.Type] == nil {
		s.records[d.Type] = make(map[string]record.Data)
	}
	s.records[d.Type][d.ID] = d
	if n, err := strconv.ParseInt(d.ID, 10, 64); err == nil && n > s.seq[d.Type] {
		s.seq[d.Type] = n
	}

	s.edges = slices.DeleteFunc(s.edges, func(e record.Edge) bool {
		return e.FromType == d.Type && e.FromID == d.ID
	})
	s.edges = append(s.edges, outgoing...)
	return nil
}

// Delete removes a record and every edge touching it.
func (s *Store) Delete(_ context.Context, typ, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[typ][id]; !ok {
		return fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
	}
	delete(s.records[typ], id)
	s.edges = slices.DeleteFunc(s.edges, func(e record.Edge) bool { return e.Touches(typ, id) })
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) matching(typ string, opts fetch.Options) []record.Record {
	out := make([]record.Record, 0, len(s.records[typ]))
	for _, d := range s.records[typ] {
		rec := s.hydrate(d)
		if fetch.Matches(rec, opts) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) hydrate(d record.Data) record.Record {
	var edges []record.Edge
	for _, e := range s.edges {
		if e.Touches(d.Type, d.ID) {
			edges = append(edges, e)
		}
	}
	d.Relations = edges
	return record.Reconstruct(d)
}

func containsTerm(fields map[string]any, names []string, term string) bool {
	for _, name := range names {
		if str, ok := fields[name].(string); ok && strings.Contains(strings.ToLower(str), term) {
			return true
		}
	}
	return false
}
