package chi

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	"github.com/kailas-cloud/contentrest/internal/logger"
)

// Error codes carried in error documents.
const (
	codeNotFound         = "not_found"
	codeForbidden        = "forbidden"
	codeUnauthorized     = "unauthorized"
	codeInvalidQuery     = "invalid_query"
	codeInvalidRecord    = "invalid_record"
	codeInvalidSchema    = "invalid_schema"
	codeUnsupportedMedia = "unsupported_media_type"
	codeTransitionDenied = "transition_denied"
	codeBadRequest       = "bad_request"
	codeInternalError    = "internal_error"
	internalErrorMessage = "internal error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		transitionDeniedHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidRecord, http.StatusBadRequest, codeInvalidRecord),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, codeInvalidSchema),
		sentinelHandler(domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, codeUnsupportedMedia),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error(), err.Error())
		return true
	}
}

// transitionDeniedHandler reports the attempted status change.
func transitionDeniedHandler(w http.ResponseWriter, err error) bool {
	var tde *domain.TransitionDeniedError
	if !errors.As(err, &tde) {
		return false
	}
	writeError(w, http.StatusConflict, codeTransitionDenied, domain.ErrTransitionDenied.Error(),
		"status change from "+strconv.Quote(tde.From)+" to "+strconv.Quote(tde.To)+" is not allowed")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, internalErrorMessage, "")
}

func writeError(w http.ResponseWriter, status int, code, message, detail string) {
	writeJSON(w, status, jsonapi.ErrorDocument{
		Message: message,
		Errors: []jsonapi.ErrorObject{{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  http.StatusText(status),
			Detail: detail,
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	render(w, status, jsonapi.DefaultRenderer(), v)
}

func render(w http.ResponseWriter, status int, rd jsonapi.Renderer, v any) {
	w.Header().Set("Content-Type", rd.ContentType())
	w.WriteHeader(status)
	_ = rd.Render(w, v)
}
