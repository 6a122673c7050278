package auth

import (
	"path"

	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// AnyStatus matches every status in a transition rule.
const AnyStatus = "*"

// Transition is a permitted status change. Type, From and To accept "*".
// An empty From matches record creation.
type Transition struct {
	Type string
	From string
	To   string
}

// Policy lists what one role may do. Actions are glob patterns such as
// "contenttype:*:view".
type Policy struct {
	Actions     []string
	Transitions []Transition
}

// Gate answers permission questions from role policies.
type Gate struct {
	roles map[string]Policy
}

// NewGate creates a Gate from role policies.
func NewGate(roles map[string]Policy) *Gate {
	return &Gate{roles: roles}
}

// Allowed reports whether any role of p grants action.
func (g *Gate) Allowed(p principal.Principal, action string) bool {
	for _, role := range p.Roles {
		for _, pattern := range g.roles[role].Actions {
			if matchPattern(pattern, action) {
				return true
			}
		}
	}
	return false
}

// TransitionAllowed reports whether any role of p may move a record of typ
// from one status to another.
func (g *Gate) TransitionAllowed(p principal.Principal, typ string, from, to record.Status) bool {
	for _, role := range p.Roles {
		for _, t := range g.roles[role].Transitions {
			if matchPattern(t.Type, typ) && matchFrom(t.From, from) && matchPattern(t.To, string(to)) {
				return true
			}
		}
	}
	return false
}

func matchFrom(pattern string, from record.Status) bool {
	if from == "" {
		return pattern == "" || pattern == AnyStatus
	}
	return pattern != "" && matchPattern(pattern, string(from))
}

// matchPattern treats ':' separated segments like path elements so that
// "*" never spans a separator.
func matchPattern(pattern, value string) bool {
	if pattern == AnyStatus && value != "" {
		return true
	}
	ok, err := path.Match(toPath(pattern), toPath(value))
	return err == nil && ok
}

func toPath(s string) string {
	b := []byte(s)
	for i := range b {
		switch b[i] {
		case ':':
			b[i] = '/'
		case '/':
			b[i] = ':'
		}
	}
	return string(b)
}
