package query

import (
	"maps"
	"math"
	"slices"

	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Page is a 1-based page window.
type Page struct {
	Number int
	Size   int
}

// Offset returns the index of the first record on the page. It saturates at
// math.MaxInt instead of overflowing.
func (p Page) Offset() int {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Sort orders records by one field.
type Sort struct {
	Field string
	Desc  bool
}

// IsZero reports whether no sort was requested.
func (s Sort) IsZero() bool { return s.Field == "" }

// String renders the sort in parameter form ("-field" for descending).
func (s Sort) String() string {
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// TextFilter is a free-text term matched against Fields.
type TextFilter struct {
	Term   string
	Fields []string
}

// RelationFilter keeps (or, when Negated, drops) records by their related
// ids of Type. Except ids rescue a record from a negative match.
type RelationFilter struct {
	Type    string
	IDs     []string
	Except  []string
	Negated bool
}

// Parts is the mutable form of an Intent.
type Parts struct {
	Status    record.StatusExpr
	Text      TextFilter
	Include   []string
	Fields    map[string][]string
	Sort      Sort
	Page      Page
	Relations []RelationFilter
	Where     map[string]string
	Deep      bool
}

// Intent is the validated, immutable description of what one request asks for.
type Intent struct {
	p Parts
}

// New freezes Parts into an Intent.
func New(p Parts) Intent {
	p.Include = slices.Clone(p.Include)
	p.Fields = maps.Clone(p.Fields)
	p.Relations = slices.Clone(p.Relations)
	p.Where = maps.Clone(p.Where)
	if p.Page.Number < 1 {
		p.Page.Number = 1
	}
	return Intent{p: p}
}

// Status returns the status expression.
func (i Intent) Status() record.StatusExpr { return i.p.Status }

// Text returns the free-text filter.
func (i Intent) Text() TextFilter { return i.p.Text }

// Include returns the related types to embed, in request order.
func (i Intent) Include() []string { return i.p.Include }

// Includes checks whether typ was requested in include.
func (i Intent) Includes(typ string) bool { return slices.Contains(i.p.Include, typ) }

// Fields returns the sparse fieldset for typ and whether one was requested.
func (i Intent) Fields(typ string) ([]string, bool) {
	f, ok := i.p.Fields[typ]
	return f, ok
}

// Sort returns the requested order.
func (i Intent) Sort() Sort { return i.p.Sort }

// Page returns the page window.
func (i Intent) Page() Page { return i.p.Page }

// Relations returns the relation filters.
func (i Intent) Relations() []RelationFilter { return i.p.Relations }

// Where returns the exact-match field filters.
func (i Intent) Where() map[string]string { return i.p.Where }

// Deep reports whether candidates come from a cross-type search.
func (i Intent) Deep() bool { return i.p.Deep }

// NeedsPostFilter reports whether pagination must happen after in-memory
// filtering instead of in the store.
func (i Intent) NeedsPostFilter() bool { return i.p.Deep || len(i.p.Relations) > 0 }

// Parts returns a copy of the intent contents.
func (i Intent) Parts() Parts {
	p := i.p
	p.Include = slices.Clone(p.Include)
	p.Fields = maps.Clone(p.Fields)
	p.Relations = slices.Clone(p.Relations)
	p.Where = maps.Clone(p.Where)
	return p
}
