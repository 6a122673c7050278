package content

import (
	"context"

	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
)

// Store is the content storage contract.
type Store interface {
	// Fetch returns one window of a type plus a deferred total.
	Fetch(ctx context.Context, typ string, opts fetch.Options) (fetch.Page, error)
	// SearchAll runs a free-text search across every content type.
	SearchAll(ctx context.Context, term string, status record.StatusExpr) ([]record.Record, error)
	// FindByID returns domain.ErrNotFound when the record does not exist.
	FindByID(ctx context.Context, typ, id string) (record.Record, error)
	// NextID allocates an identifier for a new record of typ.
	NextID(ctx context.Context, typ string) (string, error)
	// Save creates or replaces a record together with its outgoing edges.
	Save(ctx context.Context, rec record.Record) error
	// Delete removes a record and every edge touching it.
	Delete(ctx context.Context, typ, id string) error
}

// Gate decides what a principal may do.
type Gate interface {
	Allowed(p principal.Principal, action string) bool
	TransitionAllowed(p principal.Principal, typ string, from, to record.Status) bool
}
