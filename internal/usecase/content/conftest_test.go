package content

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/repository/memory"
)

// --- Mocks ---

// countingStore wraps the memory store and counts calls.
type countingStore struct {
	*memory.Store
	fetches  atomic.Int32
	finds    atomic.Int32
	searches atomic.Int32
}

func (c *countingStore) Fetch(ctx context.Context, typ string, opts fetch.Options) (fetch.Page, error) {
	c.fetches.Add(1)
	return c.Store.Fetch(ctx, typ, opts)
}

func (c *countingStore) FindByID(ctx context.Context, typ, id string) (record.Record, error) {
	c.finds.Add(1)
	return c.Store.FindByID(ctx, typ, id)
}

func (c *countingStore) SearchAll(ctx context.Context, term string, st record.StatusExpr) ([]record.Record, error) {
	c.searches.Add(1)
	return c.Store.SearchAll(ctx, term, st)
}

func (c *countingStore) calls() int32 {
	return c.fetches.Load() + c.finds.Load() + c.searches.Load()
}

type mockGate struct {
	deny        []string
	denyTargets []record.Status
}

func (g *mockGate) Allowed(_ principal.Principal, action string) bool {
	return !slices.Contains(g.deny, action)
}

func (g *mockGate) TransitionAllowed(_ principal.Principal, _ string, _, to record.Status) bool {
	return !slices.Contains(g.denyTargets, to)
}

// --- Fixtures ---

func testRegistry(t *testing.T) contenttype.Registry {
	t.Helper()
	books := contenttype.Reconstruct(contenttype.Definition{
		Slug: "books",
		Fields: []field.Field{
			field.Reconstruct("title", field.Text, false),
			field.Reconstruct("slug", field.Slug, false),
			field.Reconstruct("price", field.Float, false),
			field.Reconstruct("in_stock", field.Checkbox, false),
			field.Reconstruct("tags", field.Select, true),
			field.Reconstruct("released", field.Date, false),
			field.Reconstruct("notes", field.Textarea, false),
		},
		Relations:    []string{"author", "tags"},
		FilterFields: []string{"title"},
	})
	author := contenttype.Reconstruct(contenttype.Definition{
		Slug:      "author",
		Fields:    []field.Field{field.Reconstruct("name", field.Text, false)},
		Relations: []string{"books"},
	})
	tags := contenttype.Reconstruct(contenttype.Definition{
		Slug:      "tags",
		Fields:    []field.Field{field.Reconstruct("name", field.Text, false)},
		Relations: []string{"books"},
	})
	blocks := contenttype.Reconstruct(contenttype.Definition{Slug: "blocks", Viewless: true})
	reg, err := contenttype.NewRegistry(books, author, tags, blocks)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func put(t *testing.T, s *memory.Store, d record.Data) {
	t.Helper()
	if d.Status == "" {
		d.Status = record.Published
	}
	if err := s.Save(context.Background(), record.Reconstruct(d)); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func bookAuthor(book, author string) record.Edge {
	return record.Edge{FromType: "books", FromID: book, ToType: "author", ToID: author}
}

// booksAndAuthor seeds books 1..3 and author A related to books 1 and 2.
func booksAndAuthor(t *testing.T) *countingStore {
	t.Helper()
	s := memory.New(testRegistry(t))
	put(t, s, record.Data{Type: "author", ID: "A", Fields: map[string]any{"name": "Herbert"}})
	put(t, s, record.Data{Type: "author", ID: "B", Fields: map[string]any{"name": "Asimov"}})
	put(t, s, record.Data{Type: "books", ID: "1", Fields: map[string]any{"title": "Dune", "slug": "dune"},
		Relations: []record.Edge{bookAuthor("1", "A")}})
	put(t, s, record.Data{Type: "books", ID: "2", Fields: map[string]any{"title": "Dune Messiah"},
		Relations: []record.Edge{bookAuthor("2", "A")}})
	put(t, s, record.Data{Type: "books", ID: "3", Fields: map[string]any{"title": "Foundation"},
		Relations: []record.Edge{bookAuthor("3", "B")}})
	return &countingStore{Store: s}
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, store Store, gate Gate) *Service {
	t.Helper()
	if gate == nil {
		gate = &mockGate{}
	}
	return New(testRegistry(t), store, gate).WithClock(func() time.Time { return fixedNow })
}

func ids(recs []record.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID())
	}
	return out
}
