// Package pgcontent stores records in PostgreSQL: one row per record with
// a JSONB field bag, and a relations table holding directed edges.
package pgcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/domain/fetch"
	"github.com/kailas-cloud/contentrest/internal/domain/record"
	"github.com/kailas-cloud/contentrest/internal/metrics"
)

const driverName = "postgres"

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a DBTX that can open transactions.
type Conn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Repo implements usecase/content.Store over PostgreSQL.
type Repo struct {
	conn     Conn
	registry contenttype.Registry
}

// New creates a PostgreSQL content repository.
func New(conn Conn, registry contenttype.Registry) *Repo {
	return &Repo{conn: conn, registry: registry}
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Fetch selects one window; the count statement runs on demand.
func (r *Repo) Fetch(ctx context.Context, typ string, opts fetch.Options) (_ fetch.Page, err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "fetch", start, err) }(time.Now())

	ct, err := r.registry.Get(typ)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("fetch %s: %w", typ, err)
	}
	q := buildWhere(typ, opts)
	countSQL, countArgs := q.countSQL(), slices.Clone(q.args)
	listSQL := q.listSQL(ct, opts)

	recs, err := r.query(ctx, r.conn, listSQL, q.args...)
	if err != nil {
		return fetch.Page{}, fmt.Errorf("fetch %s: %w", typ, err)
	}
	return fetch.Page{
		Records: recs,
		Count: func(ctx context.Context) (int, error) {
			var n int
			if err := r.conn.QueryRow(ctx, countSQL, countArgs...).Scan(&n); err != nil {
				return 0, fmt.Errorf("count %s: %w", typ, err)
			}
			return n, nil
		},
	}, nil
}

// SearchAll matches term against the search fields of every type.
func (r *Repo) SearchAll(ctx context.Context, term string, status record.StatusExpr) ([]record.Record, error) {
	var out []record.Record
	for _, ct := range r.registry.All() {
		page, err := r.Fetch(ctx, ct.Slug(), fetch.Options{
			Status: status,
			Text:   queryText(term, ct),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
	}
	return out, nil
}

// FindByID loads one record and its edges.
func (r *Repo) FindByID(ctx context.Context, typ, id string) (_ record.Record, err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "find", start, err) }(time.Now())

	recs, err := r.query(ctx, r.conn,
		"SELECT "+contentColumns+" FROM content WHERE type = $1 AND id = $2", typ, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("find %s/%s: %w", typ, id, err)
	}
	if len(recs) == 0 {
		return record.Record{}, fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
	}
	return recs[0], nil
}

// NextID advances the per-type sequence row.
func (r *Repo) NextID(ctx context.Context, typ string) (string, error) {
	const sql = `
		INSERT INTO sequences (type, value) VALUES ($1, 1)
		ON CONFLICT (type) DO UPDATE SET value = sequences.value + 1
		RETURNING value`
	var n int64
	if err := r.conn.QueryRow(ctx, sql, typ).Scan(&n); err != nil {
		return "", fmt.Errorf("next id %s: %w", typ, err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Save upserts the row and replaces its outgoing edges in one transaction.
func (r *Repo) Save(ctx context.Context, rec record.Record) (err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "save", start, err) }(time.Now())

	fields, err := json.Marshal(rec.Data().Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO content (type, id, status, owner, created, changed, published, fields)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (type, id) DO UPDATE SET
				status = EXCLUDED.status, owner = EXCLUDED.owner, created = EXCLUDED.created,
				changed = EXCLUDED.changed, published = EXCLUDED.published, fields = EXCLUDED.fields`
		if _, err := tx.Exec(ctx, upsert,
			rec.Type(), rec.ID(), string(rec.Status()), rec.Owner(),
			nullTime(rec.DateCreated()), nullTime(rec.DateChanged()), nullTime(rec.DatePublish()),
			fields,
		); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", rec.Type(), rec.ID(), err)
		}

		if _, err := tx.Exec(ctx,
			"DELETE FROM relations WHERE from_type = $1 AND from_id = $2", rec.Type(), rec.ID(),
		); err != nil {
			return fmt.Errorf("clear edges %s/%s: %w", rec.Type(), rec.ID(), err)
		}
		for _, e := range rec.OutgoingEdges() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO relations (from_type, from_id, to_type, to_id) VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING`,
				e.FromType, e.FromID, e.ToType, e.ToID,
			); err != nil {
				return fmt.Errorf("insert edge %s/%s -> %s/%s: %w", e.FromType, e.FromID, e.ToType, e.ToID, err)
			}
		}
		return nil
	})
}

// Delete removes the row and every edge touching it.
func (r *Repo) Delete(ctx context.Context, typ, id string) (err error) {
	defer func(start time.Time) { metrics.ObserveStore(driverName, "delete", start, err) }(time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM content WHERE type = $1 AND id = $2", typ, id)
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", typ, id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s/%s: %w", typ, id, domain.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM relations
			WHERE (from_type = $1 AND from_id = $2) OR (to_type = $1 AND to_id = $2)`, typ, id,
		); err != nil {
			return fmt.Errorf("delete edges %s/%s: %w", typ, id, err)
		}
		return nil
	})
}

// Close is a no-op; the pool is owned by the caller.
func (r *Repo) Close() {}

func (r *Repo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// query scans content rows and attaches their edges with one extra statement.
func (r *Repo) query(ctx context.Context, db DBTX, sql string, args ...any) ([]record.Record, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with record context
	}
	datas, err := pgx.CollectRows(rows, scanData)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	if len(datas) == 0 {
		return nil, nil
	}

	edges, err := r.edgesOf(ctx, db, datas)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, len(datas))
	for i, d := range datas {
		d.Relations = edges[edgeKey{typ: d.Type, id: d.ID}]
		out[i] = record.Reconstruct(d)
	}
	return out, nil
}

type edgeKey struct {
	typ string
	id  string
}

func (r *Repo) edgesOf(ctx context.Context, db DBTX, datas []record.Data) (map[edgeKey][]record.Edge, error) {
	typ := datas[0].Type
	ids := make([]string, 0, len(datas))
	for _, d := range datas {
		ids = append(ids, d.ID)
	}

	rows, err := db.Query(ctx, `
		SELECT from_type, from_id, to_type, to_id FROM relations
		WHERE (from_type = $1 AND from_id = ANY($2)) OR (to_type = $1 AND to_id = ANY($2))
		ORDER BY from_type, from_id, to_type, to_id`, typ, ids)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	all, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Edge, error) {
		var e record.Edge
		err := row.Scan(&e.FromType, &e.FromID, &e.ToType, &e.ToID)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}

	out := make(map[edgeKey][]record.Edge, len(datas))
	for _, e := range all {
		if e.FromType == typ {
			k := edgeKey{typ: e.FromType, id: e.FromID}
			out[k] = append(out[k], e)
		}
		if e.ToType == typ && (e.FromType != typ || e.FromID != e.ToID) {
			k := edgeKey{typ: e.ToType, id: e.ToID}
			out[k] = append(out[k], e)
		}
	}
	return out, nil
}

func scanData(row pgx.CollectableRow) (record.Data, error) {
	var (
		d                           record.Data
		status                      string
		created, changed, published *time.Time
		fields                      []byte
	)
	if err := row.Scan(&d.Type, &d.ID, &status, &d.Owner, &created, &changed, &published, &fields); err != nil {
		return record.Data{}, err //nolint:wrapcheck // CollectRows wraps
	}
	d.Status = record.Status(status)
	d.Created, d.Changed, d.Published = derefTime(created), derefTime(changed), derefTime(published)
	if err := json.Unmarshal(fields, &d.Fields); err != nil {
		return record.Data{}, fmt.Errorf("decode fields of %s/%s: %w", d.Type, d.ID, err)
	}
	return d, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
