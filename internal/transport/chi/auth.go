package chi

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/logger"
)

// exemptPaths are routes that never look at credentials.
var exemptPaths = map[string]struct{}{
	"/health":     {},
	"/metrics":    {},
	"/auth/login": {},
}

// IdentityMiddleware resolves the caller from the token header and stores
// it in the request context. Requests without credentials proceed as
// Anonymous; credentials that do not verify are rejected with 401.
func (s *Server) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := exemptPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		p, err := s.identify(r)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}

		ctx := principal.ContextWith(r.Context(), p)
		ctx = logger.With(ctx, zap.String("principal", p.Name))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) identify(r *http.Request) (principal.Principal, error) {
	raw := strings.TrimSpace(r.Header.Get(s.opts.Token.RequestHeader))
	if raw == "" {
		return principal.Anonymous(), nil
	}
	if prefix := s.opts.Token.Prefix + " "; len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		raw = strings.TrimSpace(raw[len(prefix):])
	}

	if p, ok := s.directory.ByAPIKey(raw); ok {
		return p, nil
	}
	if s.tokens == nil {
		return principal.Principal{}, fmt.Errorf("token auth disabled: %w", domain.ErrUnauthorized)
	}
	p, err := s.tokens.Verify(raw)
	if err != nil {
		return principal.Principal{}, err
	}
	// roles may have changed since the token was issued
	if current, ok := s.directory.Lookup(p.Name); ok {
		return current, nil
	}
	return p, nil
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /auth/login. Credentials come from a form or a JSON
// object keyed by the configured user and password parameter names.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "login is disabled", "")
		return
	}

	name, password, err := s.credentials(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	p, err := s.directory.Login(name, password)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	token, exp, err := s.tokens.Issue(p)
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("issue token: %w", err))
		return
	}

	logger.FromContext(r.Context()).Info("login", zap.String("principal", p.Name))
	w.Header().Set(s.opts.Token.ResponseHeader, s.opts.Token.Prefix+" "+token)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.UTC()})
}

func (s *Server) credentials(r *http.Request) (name, password string, err error) {
	userKey, passKey := s.opts.Token.UserParam, s.opts.Token.PassParam

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", fmt.Errorf("decode login body: %v: %w", err, domain.ErrInvalidRecord)
		}
		name, _ = body[userKey].(string)
		password, _ = body[passKey].(string)
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("parse login form: %v: %w", err, domain.ErrInvalidRecord)
		}
		name, password = r.PostForm.Get(userKey), r.PostForm.Get(passKey)
	}

	if name == "" || password == "" {
		return "", "", fmt.Errorf("%s and %s are required: %w", userKey, passKey, domain.ErrUnauthorized)
	}
	return name, password, nil
}
