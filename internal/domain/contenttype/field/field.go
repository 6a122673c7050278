package field

import "fmt"

// Type is the schema type of a content field. It selects the formatter
// used when the field is serialized and the coercion applied on write.
type Type string

// Field type constants.
const (
	Text     Type = "text"
	Textarea Type = "textarea"
	HTML     Type = "html"
	Markdown Type = "markdown"
	Slug     Type = "slug"
	Date     Type = "date"
	DateTime Type = "datetime"
	Image    Type = "image"
	File     Type = "file"
	Select   Type = "select"
	Integer  Type = "integer"
	Float    Type = "float"
	Checkbox Type = "checkbox"
)

var validTypes = map[Type]bool{
	Text: true, Textarea: true, HTML: true, Markdown: true, Slug: true,
	Date: true, DateTime: true, Image: true, File: true, Select: true,
	Integer: true, Float: true, Checkbox: true,
}

// IsValid checks if the field type is supported.
func (t Type) IsValid() bool { return validTypes[t] }

// IsTextual reports whether values of this type take part in free-text search.
func (t Type) IsTextual() bool {
	switch t {
	case Text, Textarea, HTML, Markdown, Slug:
		return true
	}
	return false
}

// IsNumeric reports whether values of this type are numbers on the wire.
func (t Type) IsNumeric() bool {
	return t == Integer || t == Float || t == Checkbox
}

// reserved names collide with record metadata attributes.
var reservedFieldNames = map[string]bool{
	"id": true, "type": true, "status": true, "ownerid": true,
	"datecreated": true, "datechanged": true, "datepublish": true,
	"relation": true,
}

// Field is an immutable value object describing one content type field.
type Field struct {
	name      string
	fieldType Type
	multiple  bool
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not reserved.
// Multiple is only meaningful for select fields.
func New(name string, ft Type, multiple bool) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !ft.IsValid() {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	if multiple && ft != Select {
		return Field{}, fmt.Errorf("field %q: only select fields can be multiple", name)
	}
	return Field{name: name, fieldType: ft, multiple: multiple}, nil
}

// Reconstruct creates a Field without validation.
func Reconstruct(name string, ft Type, multiple bool) Field {
	return Field{name: name, fieldType: ft, multiple: multiple}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's schema type.
func (f Field) FieldType() Type { return f.fieldType }

// Multiple reports whether a select field holds a list of values.
func (f Field) Multiple() bool { return f.multiple }
