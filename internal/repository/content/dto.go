package content

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// jsonRecord is the stored form. W and O are derived projections that the
// FT index reads: W holds filterable values, O holds sort keys.
type jsonRecord struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Owner     string         `json:"owner,omitempty"`
	Created   string         `json:"created,omitempty"`
	Changed   string         `json:"changed,omitempty"`
	Published string         `json:"published,omitempty"`
	Fields    map[string]any `json:"fields"`

	Search string              `json:"__search,omitempty"`
	W      map[string][]string `json:"w,omitempty"`
	O      map[string]any      `json:"o,omitempty"`
}

func buildJSONRecord(ct contenttype.ContentType, rec record.Record) jsonRecord {
	doc := jsonRecord{
		Type:      rec.Type(),
		ID:        rec.ID(),
		Status:    string(rec.Status()),
		Owner:     rec.Owner(),
		Created:   formatTime(rec.DateCreated()),
		Changed:   formatTime(rec.DateChanged()),
		Published: formatTime(rec.DatePublish()),
		Fields:    rec.Data().Fields,
		W:         make(map[string][]string),
		O:         make(map[string]any),
	}

	var search []string
	for _, name := range ct.SearchFields() {
		if s := rec.String(name); s != "" {
			search = append(search, strings.ToLower(s))
		}
	}
	doc.Search = strings.Join(search, " ")

	for _, name := range ct.LookupFields() {
		if vals := whereValues(rec, name); len(vals) > 0 {
			doc.W[name] = vals
		}
	}

	for _, name := range contenttype.MetaFields() {
		if key := fetch.SortKey(rec, name); key != "" {
			doc.O[name] = key
		}
	}
	if n, err := strconv.ParseFloat(rec.ID(), 64); err == nil {
		doc.O["id"] = n
	} else {
		delete(doc.O, "id")
	}
	for _, f := range ct.Fields() {
		key := fetch.SortKey(rec, f.Name())
		if key == "" {
			continue
		}
		if f.FieldType().IsNumeric() {
			if n, err := strconv.ParseFloat(key, 64); err == nil {
				doc.O[f.Name()] = n
			}
			continue
		}
		doc.O[f.Name()] = key
	}
	return doc
}

// whereValues mirrors the in-memory where matching: metadata compares as
// text, list fields match any element.
func whereValues(rec record.Record, name string) []string {
	if v, ok := rec.Meta(name); ok {
		if v == "" {
			return nil
		}
		return []string{v}
	}
	v, ok := rec.Value(name)
	if !ok || v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := rec.String(name); s != "" {
		return []string{s}
	}
	return nil
}

func (d jsonRecord) toData() record.Data {
	return record.Data{
		Type:      d.Type,
		ID:        d.ID,
		Status:    record.Status(d.Status),
		Fields:    d.Fields,
		Owner:     d.Owner,
		Created:   parseTime(d.Created),
		Changed:   parseTime(d.Changed),
		Published: parseTime(d.Published),
	}
}

// parseJSONGetResult decodes the array form returned by JSON.GET key $.
func parseJSONGetResult(raw []byte) (jsonRecord, error) {
	var docs []jsonRecord
	if err := json.Unmarshal(raw, &docs); err != nil {
		return jsonRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if len(docs) == 0 {
		return jsonRecord{}, fmt.Errorf("empty JSON.GET result")
	}
	return docs[0], nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
