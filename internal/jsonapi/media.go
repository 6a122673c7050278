package jsonapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/contentrest/internal/domain"
)

// Media types served by the API.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeJSONAPI = "application/vnd.api+json"
)

// Renderer writes a document in one media type.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, v any) error
}

type jsonRenderer struct {
	mediaType string
}

func (r jsonRenderer) ContentType() string { return r.mediaType + "; charset=utf-8" }

func (r jsonRenderer) Render(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v) //nolint:wrapcheck // caller wraps
}

// renderers is the negotiation table. Wildcards fall back to plain JSON.
var renderers = map[string]Renderer{
	MediaTypeJSON:    jsonRenderer{mediaType: MediaTypeJSON},
	MediaTypeJSONAPI: jsonRenderer{mediaType: MediaTypeJSONAPI},
	"application/*":  jsonRenderer{mediaType: MediaTypeJSON},
	"*/*":            jsonRenderer{mediaType: MediaTypeJSON},
}

// DefaultRenderer is used when the request has no Accept header.
func DefaultRenderer() Renderer { return renderers[MediaTypeJSON] }

type acceptEntry struct {
	mediaType string
	q         float64
}

// Negotiate picks the renderer for an Accept header value. Entries are
// tried by descending quality, then header order. No match returns
// domain.ErrUnsupportedMediaType.
func Negotiate(accept string) (Renderer, error) {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return DefaultRenderer(), nil
	}

	var entries []acceptEntry
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 {
			continue
		}
		entries = append(entries, acceptEntry{mediaType: mt, q: q})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })

	for _, e := range entries {
		if r, ok := renderers[e.mediaType]; ok {
			return r, nil
		}
	}
	return nil, fmt.Errorf("accept %q: %w", accept, domain.ErrUnsupportedMediaType)
}
