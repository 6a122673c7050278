// Package jsonapi renders content records as JSON:API documents.
package jsonapi

// Links maps link names (self, related, first, ...) to URLs.
type Links map[string]string

// Identifier is a resource linkage entry.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship lists the related identifiers of one type.
type Relationship struct {
	Data  []Identifier `json:"data"`
	Links Links        `json:"links,omitempty"`
}

// Resource is one serialized record.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         Links                   `json:"links,omitempty"`
}

// Meta describes the page of a collection document.
type Meta struct {
	Count int `json:"count"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Document is a top-level response. Data holds a *Resource or a []Resource.
type Document struct {
	Data     any        `json:"data"`
	Included []Resource `json:"included,omitempty"`
	Links    Links      `json:"links,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
}

// ErrorObject is one entry of an error document.
type ErrorObject struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ErrorDocument is returned on failures.
type ErrorDocument struct {
	Message string        `json:"message"`
	Errors  []ErrorObject `json:"errors"`
}
