package chi

import (
	"net/http"
	"strings"
)

// CORSMiddleware adds cross-origin headers when CORS is enabled.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	if !s.opts.CORS.Enabled {
		return next
	}
	expose := strings.Join([]string{
		headerTotalCount, headerPaginationPage, headerPaginationLimit, "Location", s.opts.Token.ResponseHeader,
	}, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.opts.CORS.AllowOrigin)
		h.Set("Access-Control-Expose-Headers", expose)
		if s.opts.CORS.AllowOrigin != "*" {
			h.Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

// preflight answers OPTIONS with the methods a route supports.
func (s *Server) preflight(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		h.Set("Allow", methods)
		if s.opts.CORS.Enabled {
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", "Accept, Content-Type, "+s.opts.Token.RequestHeader)
			h.Set("Access-Control-Max-Age", "86400")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
