package jsonapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Formatter renders one field value. ok=false omits the attribute value
// and emits null instead.
type Formatter func(s *Serializer, rec record.Record, f field.Field) (v any, ok bool)

func defaultFormatters() map[field.Type]Formatter {
	return map[field.Type]Formatter{
		field.Date:     formatDate,
		field.DateTime: formatDate,
		field.File:     formatFile,
		field.Image:    formatImage,
		field.Integer:  formatInteger,
		field.Checkbox: formatInteger,
		field.Float:    formatRaw,
		field.Select:   formatSelect,
	}
}

func formatRaw(_ *Serializer, rec record.Record, f field.Field) (any, bool) {
	v, ok := rec.Value(f.Name())
	return v, ok && v != nil
}

func formatDate(_ *Serializer, rec record.Record, f field.Field) (any, bool) {
	t, ok := rec.Time(f.Name())
	if !ok {
		return nil, false
	}
	return t.Format(time.RFC3339), true
}

func formatInteger(_ *Serializer, rec record.Record, f field.Field) (any, bool) {
	v, ok := rec.Value(f.Name())
	if !ok || v == nil {
		return nil, false
	}
	if n, isFloat := v.(float64); isFloat && n == float64(int64(n)) {
		return int64(n), true
	}
	return v, true
}

func formatSelect(_ *Serializer, rec record.Record, f field.Field) (any, bool) {
	v, ok := rec.Value(f.Name())
	if !ok || v == nil {
		if f.Multiple() {
			return []any{}, true
		}
		return nil, false
	}
	return v, true
}

func formatFile(s *Serializer, rec record.Record, f field.Field) (any, bool) {
	ref, ok := rec.File(f.Name())
	if !ok {
		return nil, false
	}
	out := map[string]any{
		"file": ref.File,
		"url":  s.fileURL(ref.File),
	}
	if ref.Title != "" {
		out["title"] = ref.Title
	}
	return out, true
}

func formatImage(s *Serializer, rec record.Record, f field.Field) (any, bool) {
	v, ok := formatFile(s, rec, f)
	if !ok {
		return nil, false
	}
	if s.cfg.ThumbWidth > 0 && s.cfg.ThumbHeight > 0 {
		ref, _ := rec.File(f.Name())
		v.(map[string]any)["thumbnail"] = fmt.Sprintf("%s/thumbs/%dx%d/%s",
			s.cfg.BaseURL, s.cfg.ThumbWidth, s.cfg.ThumbHeight, ref.File)
	}
	return v, true
}

func (s *Serializer) fileURL(file string) string {
	file = strings.TrimLeft(file, "/")
	if dir := strings.Trim(s.cfg.FilesPath, "/"); dir != "" {
		return s.cfg.BaseURL + "/" + dir + "/" + file
	}
	return s.cfg.BaseURL + "/" + file
}
