package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/auth"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	"github.com/kailas-cloud/contentrest/internal/repository/memory"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
	healthuc "github.com/kailas-cloud/contentrest/internal/usecase/health"
)

const (
	testBaseURL = "https://example.com"
	editorKey   = "editor-key"
	testSecret  = "test-secret"
)

func testRegistry(t *testing.T) contenttype.Registry {
	t.Helper()
	books := contenttype.Reconstruct(contenttype.Definition{
		Slug: "books",
		Fields: []field.Field{
			field.Reconstruct("title", field.Text, false),
			field.Reconstruct("slug", field.Slug, false),
		},
		Relations:    []string{"author"},
		FilterFields: []string{"title"},
	})
	author := contenttype.Reconstruct(contenttype.Definition{
		Slug:      "author",
		Fields:    []field.Field{field.Reconstruct("name", field.Text, false)},
		Relations: []string{"books"},
	})
	reg, err := contenttype.NewRegistry(books, author)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func testGate() *auth.Gate {
	return auth.NewGate(map[string]auth.Policy{
		"anonymous": {Actions: []string{"contenttype:*:view"}},
		"editor": {
			Actions:     []string{"contenttype:*:*"},
			Transitions: []auth.Transition{{Type: "*", From: auth.AnyStatus, To: auth.AnyStatus}},
		},
	})
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

// seed stores books 1..3, author A on books 1 and 2, author B on book 3.
func seed(t *testing.T) *memory.Store {
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
	return s
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	reg := testRegistry(t)
	store := seed(t)

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	dir := auth.NewDirectory(
		[]auth.User{{Name: "alice", PasswordHash: hash, Roles: []string{"editor"}}},
		[]auth.APIKey{{Key: editorKey, Name: "ci", Roles: []string{"editor"}}},
	)
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	svc := contentuc.New(reg, store, testGate())
	ser := jsonapi.NewSerializer(reg, jsonapi.Config{BaseURL: testBaseURL, Endpoint: "/api"})
	srv := NewServer(svc, ser, healthuc.New(store, nil), tokens, dir, opts, zap.NewNop())
	return srv.Handler()
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) doc(t *testing.T) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(r.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", r.Body.String(), err)
	}
	return v
}

// dataIDs returns the ids of a collection document's primary data.
func (r response) dataIDs(t *testing.T) []string {
	t.Helper()
	data, ok := r.doc(t)["data"].([]any)
	if !ok {
		t.Fatalf("data is not a list: %s", r.Body.String())
	}
	out := make([]string, 0, len(data))
	for _, d := range data {
		out = append(out, d.(map[string]any)["id"].(string))
	}
	return out
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	errs, ok := r.doc(t)["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatalf("no errors in %s", r.Body.String())
	}
	return errs[0].(map[string]any)["code"].(string)
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, headers ...string) response {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return response{rr}
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }
