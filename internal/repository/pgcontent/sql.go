package pgcontent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

const contentColumns = "type, id, status, owner, created, changed, published, fields"

// metaColumns maps metadata attributes to table columns.
var metaColumns = map[string]string{
	"status":      "status",
	"ownerid":     "owner",
	"datecreated": "created",
	"datechanged": "changed",
	"datepublish": "published",
}

// numericID orders numeric ids by value and the rest after them.
const numericID = "(CASE WHEN id ~ '^[0-9]+$' THEN id::numeric END)"

// selectQuery is a parameterized statement under construction.
type selectQuery struct {
	where []string
	args  []any
}

func (q *selectQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// key binds a JSONB object key. The cast picks the text overload of -> and ->>.
func (q *selectQuery) key(name string) string {
	return "(" + q.arg(name) + "::text)"
}

// buildWhere translates fetch options into a WHERE clause. Field names are
// always bound as parameters.
func buildWhere(typ string, opts fetch.Options) *selectQuery {
	q := &selectQuery{}
	q.where = append(q.where, "type = "+q.arg(typ))

	if !opts.Status.IsZero() {
		if inc := opts.Status.Include(); len(inc) > 0 {
			q.where = append(q.where, "status = ANY("+q.arg(statusStrings(inc))+")")
		}
		if exc := opts.Status.Exclude(); len(exc) > 0 {
			q.where = append(q.where, "status <> ALL("+q.arg(statusStrings(exc))+")")
		}
	}

	if opts.Text.Term != "" && len(opts.Text.Fields) > 0 {
		pattern := q.arg("%" + escapeLike(strings.ToLower(opts.Text.Term)) + "%")
		ors := make([]string, 0, len(opts.Text.Fields))
		for _, name := range opts.Text.Fields {
			ors = append(ors, fmt.Sprintf("lower(fields->>%s) LIKE %s", q.key(name), pattern))
		}
		q.where = append(q.where, "("+strings.Join(ors, " OR ")+")")
	}

	names := make([]string, 0, len(opts.Where))
	for name := range opts.Where {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		want := opts.Where[name]
		if name == "id" {
			q.where = append(q.where, "id = "+q.arg(want))
			continue
		}
		if col, ok := metaColumns[name]; ok {
			q.where = append(q.where, metaText(col)+" = "+q.arg(want))
			continue
		}
		key, val := q.key(name), q.arg(want)
		q.where = append(q.where, fmt.Sprintf(
			"(fields->>%s = %s OR (jsonb_typeof(fields->%s) = 'array' AND fields->%s @> jsonb_build_array(%s::text)))",
			key, val, key, key, val))
	}
	return q
}

// metaText renders a metadata column the way record metadata compares.
func metaText(col string) string {
	switch col {
	case "created", "changed", "published":
		return fmt.Sprintf(`to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`, col)
	}
	return col
}

// orderBy renders the ORDER BY clause from an allow-listed sort field.
func (q *selectQuery) orderBy(ct contenttype.ContentType, s fetch.Options) string {
	dir := "ASC"
	if s.Sort.Desc {
		dir = "DESC"
	}
	field := s.Sort.Field
	switch {
	case field == "":
		return fmt.Sprintf("ORDER BY %s ASC NULLS LAST, id ASC", numericID)
	case field == "id":
		return fmt.Sprintf("ORDER BY %s %s NULLS LAST, id %s", numericID, dir, dir)
	case metaColumns[field] != "":
		return fmt.Sprintf("ORDER BY %s %s NULLS LAST, %s ASC, id ASC", metaColumns[field], dir, numericID)
	}

	f, ok := ct.FieldByName(field)
	if !ok {
		return fmt.Sprintf("ORDER BY %s ASC, id ASC", numericID)
	}
	key := q.key(f.Name())
	expr := fmt.Sprintf("fields->>%s", key)
	if f.FieldType().IsNumeric() {
		expr = fmt.Sprintf("(CASE WHEN fields->>%s ~ '^-?[0-9]+(\\.[0-9]+)?$' THEN (fields->>%s)::numeric END)", key, key)
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, %s ASC, id ASC", expr, dir, numericID)
}

// listSQL renders the window statement; countSQL the matching total.
func (q *selectQuery) listSQL(ct contenttype.ContentType, opts fetch.Options) string {
	sql := "SELECT " + contentColumns + " FROM content WHERE " + strings.Join(q.where, " AND ") +
		" " + q.orderBy(ct, opts)
	if opts.Limit > 0 {
		sql += " LIMIT " + q.arg(opts.Limit)
	}
	if opts.Offset > 0 {
		sql += " OFFSET " + q.arg(opts.Offset)
	}
	return sql
}

func (q *selectQuery) countSQL() string {
	return "SELECT count(*) FROM content WHERE " + strings.Join(q.where, " AND ")
}

// queryText builds the text predicate SearchAll applies to one type.
func queryText(term string, ct contenttype.ContentType) query.TextFilter {
	return query.TextFilter{Term: term, Fields: ct.SearchFields()}
}

func statusStrings(in []record.Status) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
