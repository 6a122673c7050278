package record

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Data is the mutable form of a Record used for hydration and writes.
type Data struct {
	Type      string
	ID        string
	Status    Status
	Fields    map[string]any
	Relations []Edge
	Owner     string
	Created   time.Time
	Changed   time.Time
	Published time.Time
}

// Record is an immutable content record.
type Record struct {
	d Data
}

// Reconstruct creates a Record from stored data without validation.
func Reconstruct(d Data) Record {
	d.Fields = maps.Clone(d.Fields)
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	d.Relations = slices.Clone(d.Relations)
	return Record{d: d}
}

// Data returns a copy of the record contents.
func (r Record) Data() Data {
	d := r.d
	d.Fields = maps.Clone(r.d.Fields)
	d.Relations = slices.Clone(r.d.Relations)
	return d
}

// Type returns the content type slug.
func (r Record) Type() string { return r.d.Type }

// ID returns the record identifier, unique within its type.
func (r Record) ID() string { return r.d.ID }

// Status returns the publication status.
func (r Record) Status() Status { return r.d.Status }

// Owner returns the owning user name.
func (r Record) Owner() string { return r.d.Owner }

// DateCreated returns the creation time.
func (r Record) DateCreated() time.Time { return r.d.Created }

// DateChanged returns the last modification time.
func (r Record) DateChanged() time.Time { return r.d.Changed }

// DatePublish returns the publication time.
func (r Record) DatePublish() time.Time { return r.d.Published }

// Relations returns the edges touching this record.
func (r Record) Relations() []Edge { return r.d.Relations }

// Value returns the raw value of a field.
func (r Record) Value(name string) (any, bool) {
	v, ok := r.d.Fields[name]
	return v, ok
}

// String returns a field rendered as text, "" when absent.
func (r Record) String(name string) string {
	v, ok := r.d.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Meta returns a metadata attribute as text for filtering and sorting.
func (r Record) Meta(name string) (string, bool) {
	switch name {
	case "id":
		return r.d.ID, true
	case "status":
		return string(r.d.Status), true
	case "ownerid":
		return r.d.Owner, true
	case "datecreated":
		return r.d.Created.UTC().Format(time.RFC3339), true
	case "datechanged":
		return r.d.Changed.UTC().Format(time.RFC3339), true
	case "datepublish":
		return r.d.Published.UTC().Format(time.RFC3339), true
	}
	return "", false
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Time parses a date field.
func (r Record) Time(name string) (time.Time, bool) {
	s := r.String(name)
	if s == "" {
		return time.Time{}, false
	}
	return ParseTime(s)
}

// ParseTime accepts RFC 3339, "Y-m-d H:i:s" and "Y-m-d".
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FileRef is the value of a file or image field.
type FileRef struct {
	File  string
	Title string
}

// File returns a file or image field. The stored value is either a bare
// filename or an object with "file" and optional "title".
func (r Record) File(name string) (FileRef, bool) {
	switch v := r.d.Fields[name].(type) {
	case string:
		if v == "" {
			return FileRef{}, false
		}
		return FileRef{File: v}, true
	case map[string]any:
		f, _ := v["file"].(string)
		if f == "" {
			return FileRef{}, false
		}
		title, _ := v["title"].(string)
		return FileRef{File: f, Title: title}, true
	}
	return FileRef{}, false
}

// RelatedIDs returns the ids of records of targetType linked to this record
// in either direction, deduplicated in edge order.
func (r Record) RelatedIDs(targetType string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range r.d.Relations {
		typ, id, ok := e.Far(r.d.Type, r.d.ID)
		if !ok || typ != targetType || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RelatedTypes returns the distinct types this record is linked to.
func (r Record) RelatedTypes() []string {
	var out []string
	for _, e := range r.d.Relations {
		typ, _, ok := e.Far(r.d.Type, r.d.ID)
		if ok && !slices.Contains(out, typ) {
			out = append(out, typ)
		}
	}
	return out
}

// OutgoingEdges returns the edges where this record is the source.
func (r Record) OutgoingEdges() []Edge {
	var out []Edge
	for _, e := range r.d.Relations {
		if e.FromType == r.d.Type && e.FromID == r.d.ID {
			out = append(out, e)
		}
	}
	return out
}
