package config

import (
	"fmt"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
)

// ContentTypeConfig declares one content type of the schema registry.
type ContentTypeConfig struct {
	Slug           string        `yaml:"slug"`
	SingularSlug   string        `yaml:"singular_slug"`
	Fields         []FieldConfig `yaml:"fields"`
	Relations      []string      `yaml:"relations"`
	Viewless       bool          `yaml:"viewless"`
	ListingRecords int           `yaml:"listing_records"`
	Sort           string        `yaml:"sort"`
	SearchFields   []string      `yaml:"search_fields"`
	FilterFields   []string      `yaml:"filter_fields"`
	DefaultStatus  string        `yaml:"default_status"`
}

// FieldConfig declares one field of a content type.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Multiple bool   `yaml:"multiple"`
}

// Registry builds the validated content type registry.
func (c *Config) Registry() (contenttype.Registry, error) {
	types := make([]contenttype.ContentType, 0, len(c.ContentTypes))
	for i, tc := range c.ContentTypes {
		ct, err := tc.build()
		if err != nil {
			return contenttype.Registry{}, fmt.Errorf("content_types[%d]: %w: %w", i, domain.ErrInvalidSchema, err)
		}
		types = append(types, ct)
	}
	return contenttype.NewRegistry(types...)
}

func (tc ContentTypeConfig) build() (contenttype.ContentType, error) {
	fields := make([]field.Field, 0, len(tc.Fields))
	for _, fc := range tc.Fields {
		f, err := field.New(fc.Name, field.Type(fc.Type), fc.Multiple)
		if err != nil {
			return contenttype.ContentType{}, fmt.Errorf("%s: %w", tc.Slug, err)
		}
		fields = append(fields, f)
	}
	return contenttype.New(contenttype.Definition{
		Slug:           tc.Slug,
		SingularSlug:   tc.SingularSlug,
		Fields:         fields,
		Relations:      tc.Relations,
		Viewless:       tc.Viewless,
		ListingRecords: tc.ListingRecords,
		Sort:           tc.Sort,
		SearchFields:   tc.SearchFields,
		FilterFields:   tc.FilterFields,
		DefaultStatus:  tc.DefaultStatus,
	})
}
