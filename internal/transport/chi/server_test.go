package chi

import (
	"net/http"
	"reflect"
	"strings"
	"testing"
)

func TestList_RelatedFilter(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/books?filter[related]=author:A&page[size]=10&page[number]=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if got := rr.dataIDs(t); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("ids = %v, want [1 2]", got)
	}
	for header, want := range map[string]string{
		headerTotalCount:      "2",
		headerPaginationPage:  "1",
		headerPaginationLimit: "10",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestList_IncludeAuthor(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/books?include=author&sort=id", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	included, _ := rr.doc(t)["included"].([]any)
	got := make(map[string]bool)
	for _, inc := range included {
		res := inc.(map[string]any)
		got[res["type"].(string)+"/"+res["id"].(string)] = true
	}
	if !reflect.DeepEqual(got, map[string]bool{"author/A": true, "author/B": true}) {
		t.Errorf("included = %v, want author/A and author/B", got)
	}
}

func TestList_BadQuery_400(t *testing.T) {
	h := newTestServer(t, Options{})

	for _, target := range []string{
		"/api/books?sort=--bad",
		"/api/books?include=nope",
		"/api/books?page[size]=0",
	} {
		rr := do(t, h, http.MethodGet, target, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rr.Code)
			continue
		}
		if code := rr.errorCode(t); code != codeInvalidQuery {
			t.Errorf("%s: code = %q, want %q", target, code, codeInvalidQuery)
		}
	}
}

func TestList_UnknownType_404(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestNegotiation(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		accept     string
		wantStatus int
		wantType   string
	}{
		{"", http.StatusOK, "application/json"},
		{"application/vnd.api+json", http.StatusOK, "application/vnd.api+json"},
		{"*/*", http.StatusOK, "application/json"},
		{"text/html", http.StatusUnsupportedMediaType, ""},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, "/api/books", nil, "Accept", tt.accept)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantType != "" && !strings.HasPrefix(rr.Header().Get("Content-Type"), tt.wantType) {
				t.Errorf("Content-Type = %q, want %s", rr.Header().Get("Content-Type"), tt.wantType)
			}
		})
	}
}

func TestGet_BySlugAndID(t *testing.T) {
	h := newTestServer(t, Options{})

	for _, target := range []string{"/api/books/dune", "/api/books/1"} {
		rr := do(t, h, http.MethodGet, target, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rr.Code)
		}
		data := rr.doc(t)["data"].(map[string]any)
		if data["id"] != "1" {
			t.Errorf("%s: id = %v, want 1", target, data["id"])
		}
	}
}

func TestRelated(t *testing.T) {
	h := newTestServer(t, Options{})

	for _, target := range []string{"/api/author/A/books?sort=id", "/api/author/A/relationships/books?sort=id"} {
		rr := do(t, h, http.MethodGet, target, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200: %s", target, rr.Code, rr.Body.String())
		}
		if got := rr.dataIDs(t); !reflect.DeepEqual(got, []string{"1", "2"}) {
			t.Errorf("%s: ids = %v, want [1 2]", target, got)
		}
	}

	rr := do(t, h, http.MethodGet, "/api/books/1/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown relation: status = %d, want 404", rr.Code)
	}
}

func TestSearch(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/search?filter[contain]=dune&sort=id", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if got := rr.dataIDs(t); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("ids = %v, want [1 2]", got)
	}

	rr = do(t, h, http.MethodGet, "/api/search", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("no term: status = %d, want 400", rr.Code)
	}
}

func TestCreate(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/api/books",
		jsonBody(`{"title":"Children of Dune","relation":{"author":["A"]}}`),
		"Content-Type", "application/json", "Authorization", "Bearer "+editorKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	data := rr.doc(t)["data"].(map[string]any)
	id, _ := data["id"].(string)
	if want := testBaseURL + "/api/books/" + id; rr.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rr.Header().Get("Location"), want)
	}
	if attrs := data["attributes"].(map[string]any); attrs["title"] != "Children of Dune" {
		t.Errorf("title = %v", attrs["title"])
	}

	rr = do(t, h, http.MethodGet, "/api/books?filter[related]=author:A&sort=id", nil)
	if got := rr.dataIDs(t); !reflect.DeepEqual(got, []string{"1", "2", id}) {
		t.Errorf("books of A = %v, want [1 2 %s]", got, id)
	}
}

func TestCreate_Rejected(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"form body", "application/x-www-form-urlencoded", "title=x", http.StatusUnsupportedMediaType},
		{"malformed json", "application/json", `{"title":`, http.StatusBadRequest},
		{"unknown field", "application/json", `{"nope":1}`, http.StatusBadRequest},
		{"unknown relation", "application/json", `{"title":"x","relation":{"tags":["1"]}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/books", jsonBody(tt.body),
				"Content-Type", tt.contentType, "Authorization", "Bearer "+editorKey)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestUpdate_JSONAPIBody(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPatch, "/api/books/3",
		jsonBody(`{"data":{"type":"books","id":"3","attributes":{"title":"Foundation and Empire","status":"draft"}}}`),
		"Content-Type", "application/vnd.api+json", "Authorization", "Bearer "+editorKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	attrs := rr.doc(t)["data"].(map[string]any)["attributes"].(map[string]any)
	if attrs["title"] != "Foundation and Empire" || attrs["status"] != "draft" {
		t.Errorf("attributes = %v", attrs)
	}

	// drafts are hidden from anonymous readers
	rr = do(t, h, http.MethodGet, "/api/books/3", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("anonymous draft read: status = %d, want 404", rr.Code)
	}
}

func TestDelete(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodDelete, "/api/books/1", nil, "Authorization", "Bearer "+editorKey)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/api/books/1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("after delete: status = %d, want 404", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, Options{CORS: CORSOptions{Enabled: true, AllowOrigin: "https://app.example.com"}})

	rr := do(t, h, http.MethodOptions, "/api/books", nil, "Origin", "https://app.example.com")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}

	rr = do(t, h, http.MethodGet, "/api/books", nil)
	if !strings.Contains(rr.Header().Get("Access-Control-Expose-Headers"), headerTotalCount) {
		t.Errorf("Expose-Headers = %q", rr.Header().Get("Access-Control-Expose-Headers"))
	}
}

func TestCORS_Disabled(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodOptions, "/api/books/1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers set while disabled")
	}
	if got := rr.Header().Get("Allow"); got != "GET, PATCH, DELETE, OPTIONS" {
		t.Errorf("Allow = %q", got)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.doc(t)["status"] != "ok" {
		t.Errorf("body = %s", rr.Body.String())
	}
}
