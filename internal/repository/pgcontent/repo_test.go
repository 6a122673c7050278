package pgcontent

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// setupRepo connects to CONTENTREST_TEST_POSTGRES_DSN and resets the schema.
func setupRepo(t *testing.T) *Repo {
	t.Helper()

	dsn := os.Getenv("CONTENTREST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONTENTREST_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	if err := Migrate(dsn, zap.NewNop()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "TRUNCATE content, relations, sequences"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	author := contenttype.Reconstruct(contenttype.Definition{Slug: "author", Relations: []string{"books"}})
	reg, err := contenttype.NewRegistry(booksType(), author)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(pool, reg)
}

func TestRepo_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, title := range []string{"Dune", "Children of Dune", "Emma"} {
		id, err := repo.NextID(ctx, "books")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		rec := record.Reconstruct(record.Data{
			Type: "books", ID: id, Status: record.Published,
			Fields:    map[string]any{"title": title, "price": float64(10 - i)},
			Relations: []record.Edge{{FromType: "books", FromID: id, ToType: "author", ToID: "A"}},
			Created:   created,
		})
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := repo.Save(ctx, record.Reconstruct(record.Data{Type: "author", ID: "A", Status: record.Published})); err != nil {
		t.Fatalf("Save author: %v", err)
	}

	author, err := repo.FindByID(ctx, "author", "A")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got := author.RelatedIDs("books"); len(got) != 3 {
		t.Errorf("related = %v", got)
	}

	page, err := repo.Fetch(ctx, "books", fetch.Options{
		Text:  query.TextFilter{Term: "dune", Fields: []string{"title"}},
		Sort:  query.Sort{Field: "price"},
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].String("title") != "Children of Dune" {
		t.Errorf("records = %v", page.Records)
	}
	if n, err := page.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}

	if err := repo.Delete(ctx, "author", "A"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	book, err := repo.FindByID(ctx, "books", "1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(book.Relations()) != 0 {
		t.Errorf("edges survived delete: %v", book.Relations())
	}
	if !book.DateCreated().Equal(created) {
		t.Errorf("created = %v", book.DateCreated())
	}
	if err := repo.Delete(ctx, "author", "A"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}
