package contenttype

import (
	"fmt"

	"github.com/kailas-cloud/contentrest/internal/domain"
)

// Registry is the immutable set of content types known to the service.
type Registry struct {
	types map[string]ContentType
	order []string
}

// NewRegistry validates cross-type references and builds a Registry.
// Every declared relation must name a registered type.
func NewRegistry(types ...ContentType) (Registry, error) {
	r := Registry{types: make(map[string]ContentType, len(types))}
	for _, ct := range types {
		if _, dup := r.types[ct.Slug()]; dup {
			return Registry{}, fmt.Errorf("duplicate content type %q: %w", ct.Slug(), domain.ErrInvalidSchema)
		}
		r.types[ct.Slug()] = ct
		r.order = append(r.order, ct.Slug())
	}
	for _, ct := range types {
		for _, rel := range ct.Relations() {
			if _, ok := r.types[rel]; !ok {
				return Registry{}, fmt.Errorf("%s: relation to unknown type %q: %w",
					ct.Slug(), rel, domain.ErrInvalidSchema)
			}
		}
	}
	return r, nil
}

// Get returns the content type registered under slug, viewless or not.
func (r Registry) Get(slug string) (ContentType, error) {
	ct, ok := r.types[slug]
	if !ok {
		return ContentType{}, fmt.Errorf("content type %q: %w", slug, domain.ErrNotFound)
	}
	return ct, nil
}

// Viewable returns the content type for a URL slug. Viewless types and
// singular slugs that differ from the plural one are reported as not found.
func (r Registry) Viewable(slug string) (ContentType, error) {
	ct, err := r.Get(slug)
	if err != nil {
		return ContentType{}, err
	}
	if ct.Viewless() {
		return ContentType{}, fmt.Errorf("content type %q is viewless: %w", slug, domain.ErrNotFound)
	}
	return ct, nil
}

// All returns the content types in registration order.
func (r Registry) All() []ContentType {
	out := make([]ContentType, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.types[slug])
	}
	return out
}

// Slugs returns the registered slugs in registration order.
func (r Registry) Slugs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
