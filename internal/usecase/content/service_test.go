package content

import (
	"context"
	"errors"
	"math"
	"net/url"
	"reflect"
	"testing"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/repository/memory"
)

func q(t *testing.T, s string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(s)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", s, err)
	}
	return v
}

func TestList_RelatedFilter(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	res, err := svc.List(context.Background(), svc.NewScope(), "books",
		q(t, "filter[related]=author:A&page[size]=10&page[number]=1"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Records); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("records = %v, want [1 2]", got)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestList_InvalidSortNoStoreCall(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	_, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "sort=--bad"))
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
	if n := store.calls(); n != 0 {
		t.Errorf("store calls = %d, want 0", n)
	}
}

func TestList_UnknownAndViewlessTypes(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	for _, typ := range []string{"pages", "blocks"} {
		_, err := svc.List(context.Background(), svc.NewScope(), typ, nil)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", typ, err)
		}
	}
}

func TestList_Forbidden(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), &mockGate{deny: []string{Action("books", ActionView)}})
	_, err := svc.List(context.Background(), svc.NewScope(), "books", nil)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestList_PaginationExact(t *testing.T) {
	s := memory.New(testRegistry(t))
	for i := 1; i <= 7; i++ {
		id := string(rune('0' + i))
		put(t, s, record.Data{Type: "books", ID: id, Fields: map[string]any{"title": "b" + id}})
	}
	for _, filtered := range []bool{false, true} {
		svc := newService(t, s, nil)
		var seen []string
		for page := 1; page <= 4; page++ {
			raw := q(t, "sort=id&page[size]=3&page[number]="+string(rune('0'+page)))
			if filtered {
				raw.Set("filter[unrelated]", "author")
			}
			res, err := svc.List(context.Background(), svc.NewScope(), "books", raw)
			if err != nil {
				t.Fatalf("List page %d: %v", page, err)
			}
			if res.Total != 7 {
				t.Errorf("page %d total = %d, want 7", page, res.Total)
			}
			if page == 4 && len(res.Records) != 0 {
				t.Errorf("page 4 = %v, want empty", ids(res.Records))
			}
			seen = append(seen, ids(res.Records)...)
		}
		if want := []string{"1", "2", "3", "4", "5", "6", "7"}; !reflect.DeepEqual(seen, want) {
			t.Errorf("filtered=%v pages = %v, want %v", filtered, seen, want)
		}
	}
}

func TestList_HugePageNumberIsEmpty(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	for _, raw := range []string{
		"page[size]=100&page[number]=9223372036854775807",
		"filter[related]=author&page[size]=100&page[number]=9223372036854775807",
	} {
		res, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if len(res.Records) != 0 {
			t.Errorf("%s: records = %v, want empty", raw, ids(res.Records))
		}
		if res.Total != 3 {
			t.Errorf("%s: total = %d, want 3", raw, res.Total)
		}
	}
}

func TestList_PositiveNegativeComplement(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	pos, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[related]=author:A"))
	if err != nil {
		t.Fatalf("positive: %v", err)
	}
	neg, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[unrelated]=author!A"))
	if err != nil {
		t.Fatalf("negative: %v", err)
	}
	if !reflect.DeepEqual(ids(pos.Records), []string{"1", "2"}) || !reflect.DeepEqual(ids(neg.Records), []string{"3"}) {
		t.Errorf("positive = %v, negative = %v", ids(pos.Records), ids(neg.Records))
	}
}

func TestList_NegativeExcept(t *testing.T) {
	store := booksAndAuthor(t)
	put(t, store.Store, record.Data{Type: "books", ID: "4", Fields: map[string]any{"title": "Collab"},
		Relations: []record.Edge{bookAuthor("4", "A"), bookAuthor("4", "B")}})
	svc := newService(t, store, nil)

	res, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[unrelated]=author!A!B&sort=id"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Records); !reflect.DeepEqual(got, []string{"3", "4"}) {
		t.Errorf("records = %v, want [3 4]", got)
	}
}

func TestList_DeepSearch(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	res, err := svc.List(context.Background(), svc.NewScope(), "books",
		q(t, "filter[contain]=herbert&filter[deep]=true&sort=id"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Records); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("records = %v, want [1 2]", got)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestList_DeepSearchDedup(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	// "dune" hits books 1 and 2 directly; nothing else maps onto them twice
	res, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[contain]=dune&filter[deep]=1"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestList_SoftDeletedRelationsIgnored(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil).WithSoftDelete("deleted")
	if err := svc.Delete(context.Background(), "author", "A"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	res, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[related]=author"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Records); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("records = %v, want [3]", got)
	}
	neg, err := svc.List(context.Background(), svc.NewScope(), "books", q(t, "filter[unrelated]=author!A&sort=id"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(neg.Records); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("negative records = %v, want [1 2 3]", got)
	}
}

func TestGet_BySlugAndID(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	for _, key := range []string{"dune", "1"} {
		res, err := svc.Get(context.Background(), svc.NewScope(), "books", key, nil)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if res.Record.ID() != "1" {
			t.Errorf("Get(%s) id = %s, want 1", key, res.Record.ID())
		}
	}
	_, err := svc.Get(context.Background(), svc.NewScope(), "books", "missing", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_StatusHidden(t *testing.T) {
	store := booksAndAuthor(t)
	put(t, store.Store, record.Data{Type: "books", ID: "9", Status: record.Draft, Fields: map[string]any{"title": "wip"}})

	viewer := newService(t, store, &mockGate{deny: []string{Action("books", ActionEdit)}})
	if _, err := viewer.Get(context.Background(), viewer.NewScope(), "books", "9", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("viewer err = %v, want ErrNotFound", err)
	}
	editor := newService(t, store, nil)
	if _, err := editor.Get(context.Background(), editor.NewScope(), "books", "9", nil); err != nil {
		t.Errorf("editor err = %v", err)
	}
}

func TestRelated(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	res, err := svc.Related(context.Background(), svc.NewScope(), "author", "A", "books", q(t, "sort=-id"))
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if got := ids(res.Records); !reflect.DeepEqual(got, []string{"2", "1"}) {
		t.Errorf("records = %v, want [2 1]", got)
	}
	if res.Type.Slug() != "books" || res.Total != 2 {
		t.Errorf("type/total = %s/%d", res.Type.Slug(), res.Total)
	}

	_, err = svc.Related(context.Background(), svc.NewScope(), "author", "A", "tags", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("undeclared relation err = %v, want ErrNotFound", err)
	}
}

func TestScope_SingleFetchPerKey(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)
	sc := svc.NewScope()

	for range 3 {
		if _, _, err := sc.Lookup(context.Background(), "author", "A"); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if n := store.finds.Load(); n != 1 {
		t.Errorf("FindByID calls = %d, want 1", n)
	}
}

func TestCreate_Defaults(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)
	ctx := principal.ContextWith(context.Background(), principal.Principal{Name: "alice"})

	rec, err := svc.Create(ctx, "books", Input{
		Fields:    map[string]any{"title": "Children of Dune", "price": "12,50"},
		Relations: map[string][]string{"author": {"A", "A"}},
		Note:      "imported",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID() != "4" {
		t.Errorf("id = %s, want 4", rec.ID())
	}
	if rec.Status() != record.Published || rec.Owner() != "alice" {
		t.Errorf("status/owner = %s/%s", rec.Status(), rec.Owner())
	}
	if v, _ := rec.Value("price"); v != 12.5 {
		t.Errorf("price = %v, want 12.5", v)
	}
	if v, _ := rec.Value("in_stock"); v != float64(0) {
		t.Errorf("in_stock = %v, want 0", v)
	}
	if v, _ := rec.Value("tags"); !reflect.DeepEqual(v, []any{}) {
		t.Errorf("tags = %v, want []", v)
	}
	if slug := rec.String("slug"); len(slug) < 6 || slug[:5] != "slug-" {
		t.Errorf("slug = %q, want generated", slug)
	}
	if rec.String("notes") != "imported" {
		t.Errorf("notes = %q", rec.String("notes"))
	}
	if !rec.DateCreated().Equal(fixedNow) {
		t.Errorf("datecreated = %v", rec.DateCreated())
	}

	a, _ := store.Store.FindByID(context.Background(), "author", "A")
	if got := a.RelatedIDs("books"); !reflect.DeepEqual(got, []string{"1", "2", "4"}) {
		t.Errorf("author books = %v, want [1 2 4]", got)
	}
}

func TestCreate_DefaultStatusAlias(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	rec, err := svc.Create(context.Background(), "author", Input{Status: "publish", Fields: map[string]any{"name": "Le Guin"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status() != record.Published {
		t.Errorf("status = %s, want published", rec.Status())
	}
}

func TestCreate_Invalid(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), nil)
	tests := []struct {
		name string
		in   Input
	}{
		{"unknown field", Input{Fields: map[string]any{"isbn": "x"}}},
		{"bad float", Input{Fields: map[string]any{"price": "cheap"}}},
		{"bad date", Input{Fields: map[string]any{"released": "yesterday"}}},
		{"text as number", Input{Fields: map[string]any{"title": 42.0}}},
		{"undeclared relation", Input{Relations: map[string][]string{"pages": {"1"}}}},
		{"bad datepublish", Input{DatePublish: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "books", tt.in)
			if !errors.Is(err, domain.ErrInvalidRecord) {
				t.Errorf("err = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestUpdate_TransitionDenied(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), &mockGate{denyTargets: []record.Status{record.Held}})
	_, err := svc.Update(context.Background(), "books", "1", Input{Status: "held"})
	if !errors.Is(err, domain.ErrTransitionDenied) {
		t.Fatalf("err = %v, want ErrTransitionDenied", err)
	}
	var tde *domain.TransitionDeniedError
	if !errors.As(err, &tde) || tde.From != "published" || tde.To != "held" {
		t.Errorf("transition error = %+v", tde)
	}
}

func TestUpdate_MergesAndKeepsRelations(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	rec, err := svc.Update(context.Background(), "books", "1", Input{
		Fields: map[string]any{"price": 9.99},
		Status: "draft",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.String("title") != "Dune" || rec.Status() != record.Draft {
		t.Errorf("title/status = %q/%s", rec.String("title"), rec.Status())
	}
	if got := rec.RelatedIDs("author"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("author = %v, want [A]", got)
	}

	rec, err = svc.Update(context.Background(), "books", "1", Input{Relations: map[string][]string{"author": {"B"}}})
	if err != nil {
		t.Fatalf("Update relations: %v", err)
	}
	if got := rec.RelatedIDs("author"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("author = %v, want [B]", got)
	}
}

func TestDelete_Hard(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)
	if err := svc.Delete(context.Background(), "books", "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Store.FindByID(context.Background(), "books", "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(context.Background(), "books", "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDelete_Forbidden(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), &mockGate{deny: []string{Action("books", ActionDelete)}})
	if err := svc.Delete(context.Background(), "books", "1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		limit, page int
		want        []int
	}{
		{2, 1, []int{1, 2}},
		{2, 3, []int{5}},
		{2, 4, []int{}},
		{10, 1, []int{1, 2, 3, 4, 5}},
		{0, 1, []int{}},
		{2, math.MaxInt, []int{}},
		{math.MaxInt, 2, []int{}},
		{math.MaxInt, 1, []int{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		if got := Paginate(items, tt.limit, tt.page); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Paginate(%d, %d) = %v, want %v", tt.limit, tt.page, got, tt.want)
		}
	}
}

func TestSearch_MixedTypes(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	res, err := svc.Search(context.Background(), svc.NewScope(), q(t, "filter[contain]=o"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := map[string]bool{}
	for _, r := range res.Records {
		got[r.Type()+"/"+r.ID()] = true
	}
	want := map[string]bool{"books/3": true, "author/B": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hits = %v, want %v", got, want)
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestSearch_HidesForbiddenTypes(t *testing.T) {
	svc := newService(t, booksAndAuthor(t), &mockGate{deny: []string{Action("author", ActionView)}})

	res, err := svc.Search(context.Background(), svc.NewScope(), q(t, "filter[contain]=o"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Type() != "books" {
		t.Errorf("records = %v", res.Records)
	}
}

func TestSearch_RequiresTerm(t *testing.T) {
	store := booksAndAuthor(t)
	svc := newService(t, store, nil)

	_, err := svc.Search(context.Background(), svc.NewScope(), q(t, "page[size]=5"))
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
	if n := store.calls(); n != 0 {
		t.Errorf("store calls = %d, want 0", n)
	}
}
