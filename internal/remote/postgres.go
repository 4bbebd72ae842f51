package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperengineering/gatelog/internal/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of *pgxpool.Pool used by Postgres.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres implements Store directly against a PostgreSQL database holding
// the shared tables. Rows travel as JSON so column types are resolved by
// the server.
type Postgres struct {
	db   querier
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to databaseURL.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &Error{Op: "connect", Err: err}
	}
	return &Postgres{db: pool, pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Upsert(ctx context.Context, table string, rows []schema.Row, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}
	columns := rowColumns(rows)
	if err := validate(table, append([]string{conflictKey}, columns...)...); err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}
	if _, err := p.db.Exec(ctx, upsertSQL(table, columns, conflictKey), string(payload)); err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}
	return nil
}

func (p *Postgres) Select(ctx context.Context, table string, q Query) ([]schema.Row, error) {
	if err := validate(table, q.OwnerColumn); err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}

	query, args := selectSQL(table, q)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}
	defer rows.Close()

	var out []schema.Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &Error{Op: "select", Table: table, Err: err}
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row schema.Row
		if err := dec.Decode(&row); err != nil {
			return nil, &Error{Op: "select", Table: table, Err: err}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validate(table); err != nil {
		return &Error{Op: "delete", Table: table, Err: err}
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s::text = ANY($1)", ident(table), ident(schema.IDColumn))
	if _, err := p.db.Exec(ctx, sql, ids); err != nil {
		return &Error{Op: "delete", Table: table, Err: err}
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	sql := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", ident(PingTable))
	if _, err := p.db.Exec(ctx, sql); err != nil {
		return &Error{Op: "ping", Table: PingTable, Err: err}
	}
	return nil
}

func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// rowColumns returns the sorted union of the rows' keys.
func rowColumns(rows []schema.Row) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func upsertSQL(table string, columns []string, conflictKey string) string {
	quoted := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		quoted[i] = ident(c)
		if c != conflictKey {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}
	list := strings.Join(quoted, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM jsonb_populate_recordset(NULL::%s, $1::jsonb)",
		ident(table), list, list, ident(table))
	if conflictKey == "" {
		return b.String()
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s)", ident(conflictKey))
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		fmt.Fprintf(&b, " DO UPDATE SET %s", strings.Join(sets, ", "))
	}
	return b.String()
}

func selectSQL(table string, q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.OwnerColumn != "" {
		args = append(args, q.Owner)
		where = append(where, fmt.Sprintf("t.%s::text = $%d", ident(q.OwnerColumn), len(args)))
	}
	if !q.UpdatedSince.IsZero() {
		args = append(args, q.UpdatedSince.UTC())
		where = append(where, fmt.Sprintf("t.%s >= $%d", ident(schema.UpdatedColumn), len(args)))
	}
	sql := fmt.Sprintf("SELECT to_jsonb(t) FROM %s AS t", ident(table))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql, args
}
