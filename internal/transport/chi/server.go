// Package chi exposes the content API over HTTP with the chi router.
package chi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/auth"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
	healthuc "github.com/kailas-cloud/contentrest/internal/usecase/health"
)

// Options holds the HTTP surface settings.
type Options struct {
	// Endpoint is the REST mount point, e.g. /api.
	Endpoint string
	CORS     CORSOptions
	Token    TokenOptions
}

// CORSOptions holds cross-origin settings.
type CORSOptions struct {
	Enabled     bool
	AllowOrigin string
}

// TokenOptions names the headers and login parameters of token auth.
type TokenOptions struct {
	RequestHeader  string
	ResponseHeader string
	Prefix         string
	UserParam      string
	PassParam      string
}

func (o *Options) applyDefaults() {
	o.Endpoint = "/" + strings.Trim(o.Endpoint, "/")
	if o.Endpoint == "/" {
		o.Endpoint = "/api"
	}
	if o.CORS.AllowOrigin == "" {
		o.CORS.AllowOrigin = "*"
	}
	if o.Token.RequestHeader == "" {
		o.Token.RequestHeader = "Authorization"
	}
	if o.Token.ResponseHeader == "" {
		o.Token.ResponseHeader = "X-Access-Token"
	}
	if o.Token.Prefix == "" {
		o.Token.Prefix = "Bearer"
	}
	if o.Token.UserParam == "" {
		o.Token.UserParam = "username"
	}
	if o.Token.PassParam == "" {
		o.Token.PassParam = "password"
	}
}

// Server serves the content API.
type Server struct {
	content       *contentuc.Service
	serializer    *jsonapi.Serializer
	health        *healthuc.Service
	tokens        *auth.TokenService
	directory     *auth.Directory
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. tokens may be nil when login is disabled.
func NewServer(
	content *contentuc.Service,
	serializer *jsonapi.Serializer,
	health *healthuc.Service,
	tokens *auth.TokenService,
	directory *auth.Directory,
	opts Options,
	logger *zap.Logger,
) *Server {
	opts.applyDefaults()
	if directory == nil {
		directory = auth.NewDirectory(nil, nil)
	}
	return &Server{
		content:       content,
		serializer:    serializer,
		health:        health,
		tokens:        tokens,
		directory:     directory,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts every route on r. Identity and CORS run as middleware
// ahead of routing so that OPTIONS preflights see them too.
func (s *Server) Routes(r chi.Router) {
	r.Use(s.CORSMiddleware)
	r.Use(s.IdentityMiddleware)

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.Login)
	r.Options("/auth/login", s.preflight("POST, OPTIONS"))

	r.Route(s.opts.Endpoint, func(r chi.Router) {
		r.Get("/"+contenttype.SearchSlug, s.Search)
		r.Options("/"+contenttype.SearchSlug, s.preflight("GET, OPTIONS"))

		r.Get("/{type}", s.List)
		r.Post("/{type}", s.Create)
		r.Options("/{type}", s.preflight("GET, POST, OPTIONS"))

		r.Get("/{type}/{id}", s.Get)
		r.Patch("/{type}/{id}", s.Update)
		r.Delete("/{type}/{id}", s.Delete)
		r.Options("/{type}/{id}", s.preflight("GET, PATCH, DELETE, OPTIONS"))

		r.Get("/{type}/{id}/relationships/{related}", s.Related)
		r.Options("/{type}/{id}/relationships/{related}", s.preflight("GET, OPTIONS"))
		r.Get("/{type}/{id}/{related}", s.Related)
		r.Options("/{type}/{id}/{related}", s.preflight("GET, OPTIONS"))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed", "")
	})
}

// Handler returns a router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}
