package chi

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
)

// Headers set on collection responses.
const (
	headerTotalCount      = "X-Total-Count"
	headerPaginationPage  = "X-Pagination-Page"
	headerPaginationLimit = "X-Pagination-Limit"
)

// List handles GET /{type}.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	typ := chi.URLParam(r, "type")
	sc := s.content.NewScope()
	res, err := s.content.List(r.Context(), sc, typ, r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeCollection(w, r, rd, sc, res, "/"+typ)
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	sc := s.content.NewScope()
	res, err := s.content.Search(r.Context(), sc, r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeCollection(w, r, rd, sc, res, "/"+contenttype.SearchSlug)
}

// Get handles GET /{type}/{id}. The id may also be a slug.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	sc := s.content.NewScope()
	res, err := s.content.Get(r.Context(), sc, chi.URLParam(r, "type"), chi.URLParam(r, "id"), r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	doc, err := s.serializer.One(r.Context(), sc, res.Type, res.Record, res.Intent)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	render(w, http.StatusOK, rd, doc)
}

// Related handles GET /{type}/{id}/{related} and
// GET /{type}/{id}/relationships/{related}.
func (s *Server) Related(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	typ, id, related := chi.URLParam(r, "type"), chi.URLParam(r, "id"), chi.URLParam(r, "related")
	sc := s.content.NewScope()
	res, err := s.content.Related(r.Context(), sc, typ, id, related, r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeCollection(w, r, rd, sc, res, "/"+typ+"/"+url.PathEscape(id)+"/"+related)
}

// Create handles POST /{type}.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	typ := chi.URLParam(r, "type")
	rec, err := s.content.Create(r.Context(), typ, in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeRecord(w, r, rd, http.StatusCreated, typ, rec.ID())
}

// Update handles PATCH /{type}/{id}.
func (s *Server) Update(w http.ResponseWriter, r *http.Request) {
	rd, ok := s.negotiate(w, r)
	if !ok {
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	typ, id := chi.URLParam(r, "type"), chi.URLParam(r, "id")
	if _, err := s.content.Update(r.Context(), typ, id, in); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeRecord(w, r, rd, http.StatusOK, typ, id)
}

// Delete handles DELETE /{type}/{id}.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	if err := s.content.Delete(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeRecord renders a freshly written record. It is read back through a
// new scope so that the response honours the caller's view permission and
// query parameters such as include.
func (s *Server) writeRecord(
	w http.ResponseWriter, r *http.Request, rd jsonapi.Renderer, status int, typ, id string,
) {
	q := r.URL.Query()
	if q.Get("filter[status]") == "" {
		// the record was just written; show it whatever its status
		q.Set("filter[status]", "!"+unreachableStatus)
	}
	sc := s.content.NewScope()
	res, err := s.content.Get(r.Context(), sc, typ, id, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	doc, err := s.serializer.One(r.Context(), sc, res.Type, res.Record, res.Intent)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if status == http.StatusCreated {
		w.Header().Set("Location", s.serializer.ResourceURL(typ, id))
	}
	render(w, status, rd, doc)
}

// unreachableStatus is a status no record carries; "!x" matches everything.
const unreachableStatus = "none"

func (s *Server) writeCollection(
	w http.ResponseWriter, r *http.Request, rd jsonapi.Renderer,
	sc *contentuc.Scope, res contentuc.ListResult, path string,
) {
	doc, err := s.serializer.Collection(r.Context(), sc, res.Type, res.Records, res.Intent, jsonapi.ListPage{
		Path:  path,
		Query: r.URL.Query(),
		Total: res.Total,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	p := res.Intent.Page()
	w.Header().Set(headerTotalCount, strconv.Itoa(res.Total))
	w.Header().Set(headerPaginationPage, strconv.Itoa(p.Number))
	w.Header().Set(headerPaginationLimit, strconv.Itoa(p.Size))
	render(w, http.StatusOK, rd, doc)
}

// negotiate picks the renderer from the Accept header or answers 415.
func (s *Server) negotiate(w http.ResponseWriter, r *http.Request) (jsonapi.Renderer, bool) {
	rd, err := jsonapi.Negotiate(r.Header.Get("Accept"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return nil, false
	}
	return rd, true
}
