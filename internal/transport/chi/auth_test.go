package chi

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestIdentity_AnonymousCannotWrite(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/api/books", jsonBody(`{"title":"X"}`), "Content-Type", "application/json")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rr.Code, rr.Body.String())
	}
	if code := rr.errorCode(t); code != codeForbidden {
		t.Errorf("code = %q, want %q", code, codeForbidden)
	}
}

func TestIdentity_InvalidToken_401(t *testing.T) {
	h := newTestServer(t, Options{})

	for _, header := range []string{"Bearer nope", "garbage"} {
		rr := do(t, h, http.MethodGet, "/api/books", nil, "Authorization", header)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want 401", header, rr.Code)
		}
	}
}

func TestIdentity_ExemptPaths(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/health", nil, "Authorization", "Bearer nope")
	if rr.Code != http.StatusOK {
		t.Errorf("health with bad token: status = %d, want 200", rr.Code)
	}
}

func TestIdentity_APIKey(t *testing.T) {
	h := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/api/books", jsonBody(`{"title":"Children of Dune"}`),
		"Content-Type", "application/json", "Authorization", "Bearer "+editorKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	h := newTestServer(t, Options{})

	form := url.Values{"username": {"alice"}, "password": {"s3cret"}}
	rr := do(t, h, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()),
		"Content-Type", "application/x-www-form-urlencoded")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	header := rr.Header().Get("X-Access-Token")
	if !strings.HasPrefix(header, "Bearer ") {
		t.Fatalf("X-Access-Token = %q, want Bearer prefix", header)
	}
	if tok, _ := rr.doc(t)["token"].(string); "Bearer "+tok != header {
		t.Errorf("body token %q does not match header %q", tok, header)
	}

	rr = do(t, h, http.MethodDelete, "/api/books/3", nil, "Authorization", header)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete with token: status = %d, want 204: %s", rr.Code, rr.Body.String())
	}
}

func TestLogin_JSONBody(t *testing.T) {
	h := newTestServer(t, Options{Token: TokenOptions{UserParam: "user", PassParam: "pass"}})

	rr := do(t, h, http.MethodPost, "/auth/login", jsonBody(`{"user":"alice","pass":"s3cret"}`),
		"Content-Type", "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestLogin_Rejected(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", "username=alice&password=nope"},
		{"unknown user", "username=bob&password=s3cret"},
		{"missing password", "username=alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/auth/login", strings.NewReader(tt.body),
				"Content-Type", "application/x-www-form-urlencoded")
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			if rr.Header().Get("X-Access-Token") != "" {
				t.Error("token header set on failed login")
			}
		})
	}
}
