package content

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/contentrest/internal/db"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// fakeStore keeps JSON documents, sets and counters in maps. Index and
// search calls go through optional hooks.
type fakeStore struct {
	docs     map[string][]byte
	sets     map[string][]string
	counters map[string]int64
	kv       map[string][]byte
	indexes  map[string]*db.IndexDefinition
	dropped  []string

	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	searchFn      func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[string][]byte),
		sets:     make(map[string][]string),
		counters: make(map[string]int64),
		kv:       make(map[string][]byte),
		indexes:  make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	f.docs[key] = slices.Clone(data)
	return nil
}

func (f *fakeStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	data, ok := f.docs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append(append([]byte("["), data...), ']'), nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.docs, k)
		delete(f.sets, k)
	}
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.docs[key]
	return ok, nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) error {
	for _, m := range members {
		if !slices.Contains(f.sets[key], m) {
			f.sets[key] = append(f.sets[key], m)
		}
	}
	return nil
}

func (f *fakeStore) SRem(_ context.Context, key string, members ...string) error {
	f.sets[key] = slices.DeleteFunc(f.sets[key], func(m string) bool { return slices.Contains(members, m) })
	if len(f.sets[key]) == 0 {
		delete(f.sets, key)
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	return slices.Clone(f.sets[key]), nil
}

func (f *fakeStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	f.counters[key] += val
	return f.counters[key], nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.kv[key] = slices.Clone(value)
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string) error {
	if _, ok := f.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if f.createIndexFn != nil {
		return f.createIndexFn(ctx, def)
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (f *fakeStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if f.searchCountFn != nil {
		return f.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func testRegistry(t *testing.T) contenttype.Registry {
	t.Helper()
	books, err := contenttype.New(contenttype.Definition{
		Slug: "books",
		Fields: []field.Field{
			field.Reconstruct("title", field.Text, false),
			field.Reconstruct("price", field.Float, false),
			field.Reconstruct("tags", field.Select, true),
		},
		Relations:    []string{"author"},
		FilterFields: []string{"tags", "ownerid"},
	})
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	author, err := contenttype.New(contenttype.Definition{
		Slug:      "author",
		Fields:    []field.Field{field.Reconstruct("name", field.Text, false)},
		Relations: []string{"books"},
	})
	if err != nil {
		t.Fatalf("author: %v", err)
	}
	reg, err := contenttype.NewRegistry(books, author)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newTestRepo(t *testing.T) (*Repo, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	return New(fs, testRegistry(t), "cr:"), fs
}

func testBook(id string, edges ...record.Edge) record.Record {
	return record.Reconstruct(record.Data{
		Type:   "books",
		ID:     id,
		Status: record.Published,
		Fields: map[string]any{
			"title": "Dune Messiah",
			"price": 9.5,
			"tags":  []any{"scifi", "classic"},
		},
		Relations: edges,
		Owner:     "admin",
		Created:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
}

func testAuthor(id string) record.Record {
	return record.Reconstruct(record.Data{
		Type: "author", ID: id, Status: record.Published,
		Fields: map[string]any{"name": "Frank Herbert"},
	})
}

func toAuthor(bookID, authorID string) record.Edge {
	return record.Edge{FromType: "books", FromID: bookID, ToType: "author", ToID: authorID}
}
