package record

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Status is the publication state of a record.
type Status string

// Built-in statuses. Soft-deleted records carry a configurable status.
const (
	Published Status = "published"
	Draft     Status = "draft"
	Held      Status = "held"
	Timed     Status = "timed"
)

var statusRegex = regexp.MustCompile(`^[a-z][a-z_-]*$`)

// NormalizeStatus maps legacy aliases to canonical statuses.
func NormalizeStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "publish" {
		return Published
	}
	return Status(s)
}

// StatusExpr selects records by status: "published || draft" keeps either,
// "!held" keeps anything but held.
type StatusExpr struct {
	include []Status
	exclude []Status
	raw     string
}

// ParseStatusExpr parses a status expression.
func ParseStatusExpr(s string) (StatusExpr, error) {
	expr := StatusExpr{raw: strings.TrimSpace(s)}
	if expr.raw == "" {
		return StatusExpr{}, fmt.Errorf("empty status expression")
	}
	for _, term := range strings.Split(expr.raw, "||") {
		term = strings.TrimSpace(term)
		negate := strings.HasPrefix(term, "!")
		name := strings.TrimPrefix(term, "!")
		if !statusRegex.MatchString(name) {
			return StatusExpr{}, fmt.Errorf("invalid status %q", term)
		}
		st := NormalizeStatus(name)
		if negate {
			expr.exclude = append(expr.exclude, st)
		} else {
			expr.include = append(expr.include, st)
		}
	}
	return expr, nil
}

// MustStatusExpr is ParseStatusExpr that panics on error.
func MustStatusExpr(s string) StatusExpr {
	e, err := ParseStatusExpr(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Matches reports whether a record with status st is selected.
func (e StatusExpr) Matches(st Status) bool {
	if slices.Contains(e.exclude, st) {
		return false
	}
	return len(e.include) == 0 || slices.Contains(e.include, st)
}

// Include returns the positive terms.
func (e StatusExpr) Include() []Status { return e.include }

// Exclude returns the negated terms.
func (e StatusExpr) Exclude() []Status { return e.exclude }

// IsZero reports whether the expression was never parsed.
func (e StatusExpr) IsZero() bool { return e.raw == "" }

func (e StatusExpr) String() string { return e.raw }
