package fetch

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/contentrest/internal/domain/query"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Matches evaluates status, text and where predicates in memory. Stores
// without native support for a predicate and the deep search path use it.
func Matches(r record.Record, opts Options) bool {
	if !opts.Status.IsZero() && !opts.Status.Matches(r.Status()) {
		return false
	}
	if opts.Text.Term != "" && !MatchText(r, opts.Text) {
		return false
	}
	for name, want := range opts.Where {
		if !matchWhere(r, name, want) {
			return false
		}
	}
	return true
}

// MatchText is a case-insensitive substring match over the text fields.
func MatchText(r record.Record, t query.TextFilter) bool {
	term := strings.ToLower(t.Term)
	for _, name := range t.Fields {
		if strings.Contains(strings.ToLower(r.String(name)), term) {
			return true
		}
	}
	return false
}

func matchWhere(r record.Record, name, want string) bool {
	if v, ok := r.Meta(name); ok {
		return v == want
	}
	v, ok := r.Value(name)
	if !ok {
		return false
	}
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
		return false
	}
	return r.String(name) == want
}

// SortKey returns the comparable text of a field or metadata attribute.
func SortKey(r record.Record, name string) string {
	if v, ok := r.Meta(name); ok {
		return v
	}
	return r.String(name)
}

// Compare orders two keys numerically when both parse as numbers.
func Compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	return strings.Compare(a, b)
}

// SortRecords orders records in place; ties keep id order.
func SortRecords(recs []record.Record, s query.Sort) {
	slices.SortStableFunc(recs, func(a, b record.Record) int {
		if !s.IsZero() {
			c := Compare(SortKey(a, s.Field), SortKey(b, s.Field))
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return Compare(a.ID(), b.ID())
	})
}

// Window returns recs[offset:offset+limit] clamped to bounds. limit 0 means no limit.
func Window(recs []record.Record, offset, limit int) []record.Record {
	if offset < 0 || offset >= len(recs) {
		return []record.Record{}
	}
	end := len(recs)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return recs[offset:end]
}
