package content

import (
	"github.com/kailas-cloud/contentrest/internal/db"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
)

// Index attribute names.
const (
	attrStatus = "__status"
	attrSearch = "__search"
)

func sortAttr(name string) string  { return "o_" + name }
func whereAttr(name string) string { return "w_" + name }

// buildIndex creates the FT index of one content type. Every schema and
// metadata field gets a sortable attribute; filter fields and the slug get a TAG.
func buildIndex(k keys, ct contenttype.ContentType) (*db.IndexDefinition, error) {
	b := db.NewIndex(k.index(ct.Slug())).
		OnJSON().
		Prefix(k.typePrefix(ct.Slug())).
		Tag("$.status", attrStatus).
		Text("$.__search", attrSearch).
		Numeric("$.o.id", sortAttr("id")).Sortable()

	for _, name := range contenttype.MetaFields() {
		if name == "id" {
			continue
		}
		b.Tag("$.o."+name, sortAttr(name)).Sortable()
	}
	for _, f := range ct.Fields() {
		if f.FieldType().IsNumeric() {
			b.Numeric("$.o."+f.Name(), sortAttr(f.Name())).Sortable()
			continue
		}
		b.Tag("$.o."+f.Name(), sortAttr(f.Name())).Sortable()
	}
	for _, name := range ct.LookupFields() {
		b.TagWithOpts("$.w."+name+"[*]", whereAttr(name), "", true)
	}
	return b.Build()
}
