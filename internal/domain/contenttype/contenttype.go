package contenttype

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// SearchSlug is the pseudo type that lists free-text hits of every type.
const SearchSlug = "search"

// SlugField names the field that single-record lookups try before the id.
const SlugField = "slug"

// metaFields are record attributes present on every content type.
var metaFields = []string{"id", "status", "ownerid", "datecreated", "datechanged", "datepublish"}

// IsMetaField reports whether name is a record metadata attribute.
func IsMetaField(name string) bool { return slices.Contains(metaFields, name) }

// MetaFields returns the metadata attribute names.
func MetaFields() []string { return slices.Clone(metaFields) }

// Definition carries the raw settings of a content type before validation.
type Definition struct {
	Slug           string
	SingularSlug   string
	Fields         []field.Field
	Relations      []string
	Viewless       bool
	ListingRecords int
	Sort           string
	SearchFields   []string
	FilterFields   []string
	DefaultStatus  string
}

// ContentType is an immutable content type schema.
type ContentType struct {
	slug           string
	singularSlug   string
	fields         []field.Field
	relations      []string
	viewless       bool
	listingRecords int
	sort           string
	searchFields   []string
	filterFields   []string
	defaultStatus  string
}

// New validates a Definition and creates a ContentType.
func New(def Definition) (ContentType, error) {
	if def.Slug == "" {
		return ContentType{}, fmt.Errorf("content type slug is required")
	}
	if !slugRegex.MatchString(def.Slug) {
		return ContentType{}, fmt.Errorf("content type slug %q must be lowercase alphanumeric", def.Slug)
	}
	if def.Slug == SearchSlug {
		return ContentType{}, fmt.Errorf("content type slug %q is reserved", def.Slug)
	}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if seen[f.Name()] {
			return ContentType{}, fmt.Errorf("%s: duplicate field name: %s", def.Slug, f.Name())
		}
		seen[f.Name()] = true
	}
	for _, name := range def.SearchFields {
		if !seen[name] {
			return ContentType{}, fmt.Errorf("%s: search field %q is not defined", def.Slug, name)
		}
	}
	for _, name := range def.FilterFields {
		if !seen[name] && !IsMetaField(name) {
			return ContentType{}, fmt.Errorf("%s: filter field %q is not defined", def.Slug, name)
		}
	}
	if def.ListingRecords < 0 {
		return ContentType{}, fmt.Errorf("%s: listing_records must not be negative", def.Slug)
	}

	ct := Reconstruct(def)
	if ct.sort != "" {
		name := ct.sort
		if name[0] == '-' {
			name = name[1:]
		}
		if !ct.Sortable(name) {
			return ContentType{}, fmt.Errorf("%s: sort field %q is not defined", def.Slug, name)
		}
	}
	return ct, nil
}

// Reconstruct creates a ContentType without validation.
func Reconstruct(def Definition) ContentType {
	singular := def.SingularSlug
	if singular == "" {
		singular = def.Slug
	}
	search := slices.Clone(def.SearchFields)
	if len(search) == 0 {
		for _, f := range def.Fields {
			if f.FieldType().IsTextual() {
				search = append(search, f.Name())
			}
		}
	}
	return ContentType{
		slug:           def.Slug,
		singularSlug:   singular,
		fields:         slices.Clone(def.Fields),
		relations:      dedupe(def.Relations),
		viewless:       def.Viewless,
		listingRecords: def.ListingRecords,
		sort:           def.Sort,
		searchFields:   search,
		filterFields:   slices.Clone(def.FilterFields),
		defaultStatus:  def.DefaultStatus,
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Slug returns the plural slug used in URLs.
func (c ContentType) Slug() string { return c.slug }

// SingularSlug returns the singular slug.
func (c ContentType) SingularSlug() string { return c.singularSlug }

// Fields returns the schema fields in declaration order.
func (c ContentType) Fields() []field.Field { return c.fields }

// Relations returns the declared related content type slugs.
func (c ContentType) Relations() []string { return c.relations }

// HasRelation checks whether target is a declared relation of this type.
func (c ContentType) HasRelation(target string) bool { return slices.Contains(c.relations, target) }

// Viewless types are not exposed over the API.
func (c ContentType) Viewless() bool { return c.viewless }

// ListingRecords returns the default page size, 0 when unset.
func (c ContentType) ListingRecords() int { return c.listingRecords }

// Sort returns the default sort expression, "" when unset.
func (c ContentType) Sort() string { return c.sort }

// SearchFields returns the fields matched by free-text search.
func (c ContentType) SearchFields() []string { return c.searchFields }

// FilterFields returns the allow-list of fields usable as exact-match filters.
func (c ContentType) FilterFields() []string { return c.filterFields }

// LookupFields returns the filter fields plus the slug field when the type
// has one. Stores index these for exact matches.
func (c ContentType) LookupFields() []string {
	out := slices.Clone(c.filterFields)
	if c.HasSlug() && !slices.Contains(out, SlugField) {
		out = append(out, SlugField)
	}
	return out
}

// HasSlug reports whether records can be addressed by their slug field.
func (c ContentType) HasSlug() bool {
	f, ok := c.FieldByName(SlugField)
	return ok && f.FieldType() == field.Slug
}

// CanFilter checks whether name is in the filter allow-list.
func (c ContentType) CanFilter(name string) bool { return slices.Contains(c.filterFields, name) }

// DefaultStatus returns the status given to new records, "" when unset.
func (c ContentType) DefaultStatus() string { return c.defaultStatus }

// FieldByName looks up a schema field by name.
func (c ContentType) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// Sortable reports whether name is a schema or metadata field.
func (c ContentType) Sortable(name string) bool {
	if IsMetaField(name) {
		return true
	}
	_, ok := c.FieldByName(name)
	return ok
}
