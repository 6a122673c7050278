package content

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype/field"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Input is a write payload. Nil maps and empty strings mean "not provided".
type Input struct {
	Fields      map[string]any
	Status      string
	DatePublish string
	Relations   map[string][]string
	Note        string
}

// Create stores a new record of typ.
func (s *Service) Create(ctx context.Context, typ string, in Input) (record.Record, error) {
	ct, err := s.writable(ctx, typ, ActionCreate)
	if err != nil {
		return record.Record{}, err
	}
	p := principal.FromContext(ctx)

	fields, err := coerceFields(ct, in.Fields, false)
	if err != nil {
		return record.Record{}, err
	}

	status := record.NormalizeStatus(in.Status)
	if in.Status == "" {
		status = record.NormalizeStatus(ct.DefaultStatus())
		if status == "" {
			status = record.Published
		}
	}
	if err := s.checkTransition(p, ct.Slug(), "", status); err != nil {
		return record.Record{}, err
	}

	id, err := s.store.NextID(ctx, ct.Slug())
	if err != nil {
		return record.Record{}, fmt.Errorf("allocate %s id: %w", ct.Slug(), err)
	}

	now := s.now().UTC()
	d := record.Data{
		Type:      ct.Slug(),
		ID:        id,
		Status:    status,
		Fields:    fields,
		Owner:     p.Name,
		Created:   now,
		Changed:   now,
		Published: now,
	}
	if err := applyDatePublish(&d, in.DatePublish); err != nil {
		return record.Record{}, err
	}
	if f, ok := ct.FieldByName("slug"); ok && f.FieldType() == field.Slug {
		if slug, _ := d.Fields["slug"].(string); slug == "" {
			d.Fields["slug"] = "slug-" + uuid.NewString()
		}
	}
	applyNote(ct, &d, in.Note)
	if d.Relations, err = relationEdges(ct, id, nil, in.Relations); err != nil {
		return record.Record{}, err
	}

	rec := record.Reconstruct(d)
	if err := s.store.Save(ctx, rec); err != nil {
		return record.Record{}, fmt.Errorf("save %s: %w", ct.Slug(), err)
	}
	return rec, nil
}

// Update merges the provided fields into an existing record.
func (s *Service) Update(ctx context.Context, typ, id string, in Input) (record.Record, error) {
	ct, err := s.writable(ctx, typ, ActionEdit)
	if err != nil {
		return record.Record{}, err
	}
	p := principal.FromContext(ctx)

	existing, err := s.store.FindByID(ctx, ct.Slug(), id)
	if err != nil {
		return record.Record{}, fmt.Errorf("find %s/%s: %w", ct.Slug(), id, err)
	}
	fields, err := coerceFields(ct, in.Fields, true)
	if err != nil {
		return record.Record{}, err
	}

	d := existing.Data()
	maps.Copy(d.Fields, fields)
	if in.Status != "" {
		to := record.NormalizeStatus(in.Status)
		if to != d.Status {
			if err := s.checkTransition(p, ct.Slug(), d.Status, to); err != nil {
				return record.Record{}, err
			}
			d.Status = to
		}
	}
	if err := applyDatePublish(&d, in.DatePublish); err != nil {
		return record.Record{}, err
	}
	d.Changed = s.now().UTC()
	applyNote(ct, &d, in.Note)
	if in.Relations != nil {
		if d.Relations, err = relationEdges(ct, id, existing.OutgoingEdges(), in.Relations); err != nil {
			return record.Record{}, err
		}
	} else {
		d.Relations = existing.OutgoingEdges()
	}

	if err := s.store.Save(ctx, record.Reconstruct(d)); err != nil {
		return record.Record{}, fmt.Errorf("save %s/%s: %w", ct.Slug(), id, err)
	}
	// reload so that incoming edges are part of the result
	rec, err := s.store.FindByID(ctx, ct.Slug(), id)
	if err != nil {
		return record.Record{}, fmt.Errorf("reload %s/%s: %w", ct.Slug(), id, err)
	}
	return rec, nil
}

// Delete removes a record, or marks it deleted when soft delete is on.
func (s *Service) Delete(ctx context.Context, typ, id string) error {
	ct, err := s.writable(ctx, typ, ActionDelete)
	if err != nil {
		return err
	}
	existing, err := s.store.FindByID(ctx, ct.Slug(), id)
	if err != nil {
		return fmt.Errorf("find %s/%s: %w", ct.Slug(), id, err)
	}

	if !s.softDelete {
		if err := s.store.Delete(ctx, ct.Slug(), id); err != nil {
			return fmt.Errorf("delete %s/%s: %w", ct.Slug(), id, err)
		}
		return nil
	}

	d := existing.Data()
	d.Status = s.deletedStatus
	d.Changed = s.now().UTC()
	d.Relations = existing.OutgoingEdges()
	if err := s.store.Save(ctx, record.Reconstruct(d)); err != nil {
		return fmt.Errorf("soft delete %s/%s: %w", ct.Slug(), id, err)
	}
	return nil
}

func (s *Service) writable(ctx context.Context, typ, verb string) (contenttype.ContentType, error) {
	ct, err := s.registry.Viewable(typ)
	if err != nil {
		return contenttype.ContentType{}, err
	}
	if !s.gate.Allowed(principal.FromContext(ctx), Action(ct.Slug(), verb)) {
		return contenttype.ContentType{}, fmt.Errorf("%s %s: %w", verb, ct.Slug(), domain.ErrForbidden)
	}
	return ct, nil
}

func (s *Service) checkTransition(p principal.Principal, typ string, from, to record.Status) error {
	if _, err := record.ParseStatusExpr(string(to)); err != nil {
		return fmt.Errorf("status %q: %w", to, domain.ErrInvalidRecord)
	}
	if !s.gate.TransitionAllowed(p, typ, from, to) {
		return domain.NewTransitionDenied(string(from), string(to))
	}
	return nil
}

func applyDatePublish(d *record.Data, v string) error {
	if v == "" {
		return nil
	}
	t, ok := record.ParseTime(v)
	if !ok {
		return fmt.Errorf("datepublish %q: %w", v, domain.ErrInvalidRecord)
	}
	d.Published = t.UTC()
	return nil
}

// applyNote appends a note to the notes field when the type has one.
func applyNote(ct contenttype.ContentType, d *record.Data, note string) {
	if note == "" {
		return
	}
	if _, ok := ct.FieldByName("notes"); !ok {
		return
	}
	prev, _ := d.Fields["notes"].(string)
	if prev != "" {
		note = prev + "\n" + note
	}
	d.Fields["notes"] = note
}

// relationEdges replaces the outgoing edges of the given types, keeping
// edges of types the payload does not mention.
func relationEdges(
	ct contenttype.ContentType, id string, current []record.Edge, payload map[string][]string,
) ([]record.Edge, error) {
	out := make([]record.Edge, 0, len(current))
	for _, e := range current {
		if _, replaced := payload[e.ToType]; !replaced {
			out = append(out, e)
		}
	}
	for _, typ := range ct.Relations() {
		ids, ok := payload[typ]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(ids))
		for _, rid := range ids {
			if rid == "" || seen[rid] {
				continue
			}
			seen[rid] = true
			out = append(out, record.Edge{FromType: ct.Slug(), FromID: id, ToType: typ, ToID: rid})
		}
	}
	for typ := range payload {
		if !ct.HasRelation(typ) {
			return nil, fmt.Errorf("%s has no relation %q: %w", ct.Slug(), typ, domain.ErrInvalidRecord)
		}
	}
	return out, nil
}

// coerceFields validates raw values against the schema. On create,
// missing numeric fields default to 0 and multiple selects to an empty list.
func coerceFields(ct contenttype.ContentType, raw map[string]any, partial bool) (map[string]any, error) {
	out := make(map[string]any, len(ct.Fields()))
	for name := range raw {
		if _, ok := ct.FieldByName(name); !ok {
			return nil, fmt.Errorf("%s has no field %q: %w", ct.Slug(), name, domain.ErrInvalidRecord)
		}
	}
	for _, f := range ct.Fields() {
		v, ok := raw[f.Name()]
		if !ok {
			if partial {
				continue
			}
			if def, hasDef := zeroValue(f); hasDef {
				out[f.Name()] = def
			}
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v: %w", f.Name(), err, domain.ErrInvalidRecord)
		}
		out[f.Name()] = cv
	}
	return out, nil
}

func zeroValue(f field.Field) (any, bool) {
	switch {
	case f.FieldType().IsNumeric():
		return float64(0), true
	case f.FieldType() == field.Select && f.Multiple():
		return []any{}, true
	}
	return nil, false
}

var errType = errors.New("unexpected value type")

func coerce(f field.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.FieldType() {
	case field.Float:
		return toFloat(v, true)
	case field.Integer:
		n, err := toFloat(v, false)
		if err != nil {
			return nil, err
		}
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return n, nil
	case field.Checkbox:
		switch t := v.(type) {
		case bool:
			if t {
				return float64(1), nil
			}
			return float64(0), nil
		case string:
			switch strings.ToLower(t) {
			case "1", "on", "true", "yes":
				return float64(1), nil
			case "", "0", "off", "false", "no":
				return float64(0), nil
			}
			return nil, fmt.Errorf("%q is not a checkbox value", t)
		}
		return toFloat(v, false)
	case field.Date, field.DateTime:
		s, ok := v.(string)
		if !ok {
			return nil, errType
		}
		if s == "" {
			return "", nil
		}
		if _, ok := record.ParseTime(s); !ok {
			return nil, fmt.Errorf("%q is not a date", s)
		}
		return s, nil
	case field.Image, field.File:
		switch t := v.(type) {
		case string:
			return t, nil
		case map[string]any:
			if _, ok := t["file"].(string); !ok {
				return nil, fmt.Errorf("missing file name")
			}
			return t, nil
		}
		return nil, errType
	case field.Select:
		if !f.Multiple() {
			if s, ok := v.(string); ok {
				return s, nil
			}
			return nil, errType
		}
		switch t := v.(type) {
		case string:
			return []any{t}, nil
		case []any:
			for _, item := range t {
				if _, ok := item.(string); !ok {
					return nil, errType
				}
			}
			return t, nil
		}
		return nil, errType
	default:
		s, ok := v.(string)
		if !ok {
			return nil, errType
		}
		return s, nil
	}
}

// toFloat accepts JSON numbers and numeric strings; comma decimals are
// allowed for float fields.
func toFloat(v any, comma bool) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		if t == "" {
			return 0, nil
		}
		if comma {
			t = strings.ReplaceAll(t, ",", ".")
		}
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return n, nil
	}
	return 0, errType
}
