package query

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

var sortRegex = regexp.MustCompile(`^(-?[a-zA-Z][a-zA-Z0-9_\-]*)(\s+(?i:(ASC|DESC)))?$`)

// reserved filter keys handled by the digester itself.
const (
	filterStatus    = "status"
	filterContain   = "contain"
	filterRelated   = "related"
	filterUnrelated = "unrelated"
	filterDeep      = "deep"
)

// Defaults supplies values for absent parameters.
type Defaults struct {
	Status  string
	Limit   int
	MaxSize int
	Sort    string
}

// pageParams is bound from page[number] and page[size].
type pageParams struct {
	Number *string `json:"number"`
	Size   *string `json:"size"`
}

// Digest validates raw query parameters against a content type and builds
// an Intent. Every failure wraps domain.ErrInvalidQuery.
func Digest(raw url.Values, ct contenttype.ContentType, def Defaults) (Intent, error) {
	var p Parts
	filters := parseFilter(raw)

	statusRaw := def.Status
	if v, ok := filters[filterStatus]; ok && strings.TrimSpace(v) != "" {
		statusRaw = v
	}
	if statusRaw == "" {
		statusRaw = string(record.Published)
	}
	status, err := record.ParseStatusExpr(statusRaw)
	if err != nil {
		return Intent{}, invalid("filter[status]: %v", err)
	}
	p.Status = status

	if term := strings.TrimSpace(filters[filterContain]); term != "" {
		p.Text = TextFilter{Term: term, Fields: ct.SearchFields()}
	}

	if v, ok := filters[filterDeep]; ok && v != "" {
		deep, err := strconv.ParseBool(v)
		if err != nil {
			return Intent{}, invalid("filter[deep] must be a boolean, got %q", v)
		}
		p.Deep = deep
	}

	if v := filters[filterRelated]; v != "" {
		rfs, err := parseRelationFilters(v, false, ct)
		if err != nil {
			return Intent{}, err
		}
		p.Relations = append(p.Relations, rfs...)
	}
	if v := filters[filterUnrelated]; v != "" {
		rfs, err := parseRelationFilters(v, true, ct)
		if err != nil {
			return Intent{}, err
		}
		p.Relations = append(p.Relations, rfs...)
	}

	for key, value := range filters {
		switch key {
		case filterStatus, filterContain, filterRelated, filterUnrelated, filterDeep:
			continue
		}
		if ct.CanFilter(key) {
			if p.Where == nil {
				p.Where = make(map[string]string)
			}
			p.Where[key] = value
		}
	}

	if p.Include, err = parseInclude(raw.Get("include"), ct); err != nil {
		return Intent{}, err
	}
	p.Fields = parseFields(raw)

	if p.Sort, err = parseSort(raw.Get("sort"), ct, def); err != nil {
		return Intent{}, err
	}
	if p.Page, err = parsePage(raw, ct, def); err != nil {
		return Intent{}, err
	}

	return New(p), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidQuery)
}

func parseInclude(v string, ct contenttype.ContentType) ([]string, error) {
	var out []string
	for _, typ := range splitList(v) {
		if strings.Contains(typ, ".") {
			return nil, invalid("include %q: nested includes are not supported", typ)
		}
		if !ct.HasRelation(typ) {
			return nil, invalid("include %q: %s has no such relation", typ, ct.Slug())
		}
		if !slices.Contains(out, typ) {
			out = append(out, typ)
		}
	}
	return out, nil
}

func parseSort(v string, ct contenttype.ContentType, def Defaults) (Sort, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultSort(ct, def), nil
	}
	m := sortRegex.FindStringSubmatch(v)
	if m == nil {
		return Sort{}, invalid("sort %q is malformed", v)
	}
	s := Sort{Field: m[1]}
	if strings.HasPrefix(s.Field, "-") {
		s.Field = s.Field[1:]
		s.Desc = true
	}
	if strings.EqualFold(m[3], "DESC") {
		s.Desc = true
	}
	if !ct.Sortable(s.Field) {
		return Sort{}, invalid("sort field %q is not defined on %s", s.Field, ct.Slug())
	}
	return s, nil
}

func defaultSort(ct contenttype.ContentType, def Defaults) Sort {
	for _, candidate := range []string{ct.Sort(), def.Sort} {
		if candidate == "" {
			continue
		}
		s := Sort{Field: strings.TrimPrefix(candidate, "-"), Desc: strings.HasPrefix(candidate, "-")}
		if ct.Sortable(s.Field) {
			return s
		}
	}
	return Sort{}
}

func parsePage(raw url.Values, ct contenttype.ContentType, def Defaults) (Page, error) {
	page := Page{Number: 1, Size: def.Limit}
	if ct.ListingRecords() > 0 {
		page.Size = ct.ListingRecords()
	}
	if page.Size <= 0 {
		page.Size = 20
	}

	var pp pageParams
	if err := runtime.BindQueryParameter("deepObject", true, false, "page", raw, &pp); err != nil {
		return Page{}, invalid("page: %v", err)
	}
	if pp.Number != nil {
		n, err := strconv.Atoi(*pp.Number)
		if err != nil || n <= 0 {
			return Page{}, invalid("page[number] must be a positive integer, got %q", *pp.Number)
		}
		page.Number = n
	}
	if pp.Size != nil {
		n, err := strconv.Atoi(*pp.Size)
		if err != nil || n <= 0 {
			return Page{}, invalid("page[size] must be a positive integer, got %q", *pp.Size)
		}
		page.Size = n
	}
	if def.MaxSize > 0 && page.Size > def.MaxSize {
		page.Size = def.MaxSize
	}
	return page, nil
}

// parseRelationFilters parses "type:id1,id2" terms separated by ";".
// Negative filters also accept "type!id1,id2" and "type!id1,id2!except1".
func parseRelationFilters(v string, negated bool, ct contenttype.ContentType) ([]RelationFilter, error) {
	var out []RelationFilter
	for _, term := range strings.Split(v, ";") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		rf := RelationFilter{Negated: negated}
		switch {
		case negated && strings.Contains(term, "!"):
			parts := strings.Split(term, "!")
			if len(parts) > 3 {
				return nil, invalid("filter[unrelated] %q is malformed", term)
			}
			rf.Type = strings.TrimSpace(parts[0])
			rf.IDs = splitList(parts[1])
			if len(parts) == 3 {
				rf.Except = splitList(parts[2])
			}
		case strings.Contains(term, ":"):
			typ, ids, _ := strings.Cut(term, ":")
			rf.Type = strings.TrimSpace(typ)
			rf.IDs = splitList(ids)
		default:
			rf.Type = term
		}
		if rf.Type == "" {
			return nil, invalid("relation filter %q has no type", term)
		}
		if !ct.HasRelation(rf.Type) {
			return nil, invalid("relation filter %q: %s has no such relation", term, ct.Slug())
		}
		out = append(out, rf)
	}
	if len(out) == 0 {
		return nil, invalid("relation filter %q is empty", v)
	}
	return out, nil
}
