package chi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/jsonapi"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
)

const maxBodyBytes = 4 << 20

// Reserved keys of a flat write body. Everything else is a field.
const (
	keyStatus      = "status"
	keyDatePublish = "datepublish"
	keyRelation    = "relation"
	keyNote        = "note"
)

// resourceBody is the JSON:API form of a write payload.
type resourceBody struct {
	Data *struct {
		Type          string         `json:"type"`
		ID            string         `json:"id"`
		Attributes    map[string]any `json:"attributes"`
		Relationships map[string]struct {
			Data []jsonapi.Identifier `json:"data"`
		} `json:"relationships"`
	} `json:"data"`
}

// decodeInput reads a write payload. Two shapes are accepted: a JSON:API
// document with data.attributes and data.relationships, or a flat object
// of field values with the reserved keys status, datepublish, relation
// and note.
func decodeInput(r *http.Request) (contentuc.Input, error) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mt != jsonapi.MediaTypeJSON && mt != jsonapi.MediaTypeJSONAPI) {
		return contentuc.Input{}, fmt.Errorf("content type %q: %w",
			r.Header.Get("Content-Type"), domain.ErrUnsupportedMediaType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return contentuc.Input{}, fmt.Errorf("read body: %w", err)
	}

	var doc resourceBody
	if err := json.Unmarshal(data, &doc); err == nil && doc.Data != nil {
		return fromResource(doc)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return contentuc.Input{}, fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidRecord)
	}
	return fromFlat(flat)
}

func fromResource(doc resourceBody) (contentuc.Input, error) {
	in := contentuc.Input{Fields: make(map[string]any, len(doc.Data.Attributes))}
	if err := splitReserved(doc.Data.Attributes, &in); err != nil {
		return contentuc.Input{}, err
	}
	if len(doc.Data.Relationships) > 0 {
		in.Relations = make(map[string][]string, len(doc.Data.Relationships))
		for typ, rel := range doc.Data.Relationships {
			ids := make([]string, 0, len(rel.Data))
			for _, ident := range rel.Data {
				if ident.Type != "" && ident.Type != typ {
					return contentuc.Input{}, fmt.Errorf("relationship %s holds %s/%s: %w",
						typ, ident.Type, ident.ID, domain.ErrInvalidRecord)
				}
				ids = append(ids, ident.ID)
			}
			in.Relations[typ] = ids
		}
	}
	return in, nil
}

func fromFlat(flat map[string]any) (contentuc.Input, error) {
	in := contentuc.Input{Fields: make(map[string]any, len(flat))}
	if raw, ok := flat[keyRelation]; ok {
		rels, err := decodeRelations(raw)
		if err != nil {
			return contentuc.Input{}, err
		}
		in.Relations = rels
		delete(flat, keyRelation)
	}
	if err := splitReserved(flat, &in); err != nil {
		return contentuc.Input{}, err
	}
	return in, nil
}

// splitReserved moves status, datepublish and note out of attrs into in
// and copies the rest into in.Fields.
func splitReserved(attrs map[string]any, in *contentuc.Input) error {
	for k, v := range attrs {
		switch k {
		case keyStatus, keyDatePublish, keyNote:
			s, ok := v.(string)
			if !ok && v != nil {
				return fmt.Errorf("%s must be a string: %w", k, domain.ErrInvalidRecord)
			}
			switch k {
			case keyStatus:
				in.Status = s
			case keyDatePublish:
				in.DatePublish = s
			default:
				in.Note = s
			}
		default:
			in.Fields[k] = v
		}
	}
	return nil
}

// decodeRelations accepts {"type": ["id", ...]} or {"type": "id"}.
func decodeRelations(raw any) (map[string][]string, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("relation must be an object: %w", domain.ErrInvalidRecord)
	}
	out := make(map[string][]string, len(obj))
	for typ, v := range obj {
		switch ids := v.(type) {
		case string:
			out[typ] = []string{ids}
		case []any:
			list := make([]string, 0, len(ids))
			for _, id := range ids {
				switch id := id.(type) {
				case string:
					list = append(list, id)
				case float64:
					list = append(list, fmt.Sprint(int64(id)))
				default:
					return nil, fmt.Errorf("relation %s: invalid id %v: %w", typ, id, domain.ErrInvalidRecord)
				}
			}
			out[typ] = list
		case nil:
			out[typ] = []string{}
		default:
			return nil, fmt.Errorf("relation %s must be a list of ids: %w", typ, domain.ErrInvalidRecord)
		}
	}
	return out, nil
}
