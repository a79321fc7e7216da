package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cinepasse-backoffice/internal/backend"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// table describes how one record type maps onto its SQL table.
type table[T backend.Record] struct {
	name string
	// columns are selected in this order and handed to scan.
	columns []string
	// insertColumns exclude id and created_at, which the store assigns.
	insertColumns []string
	// queryable columns may appear in filters and orderings.
	queryable map[string]bool
	// updatable columns may appear in partial updates.
	updatable map[string]bool
	scan      func(rowScanner) (T, error)
	values    func(T) []any
}

// Collection is a backend.Collection over one PostgreSQL table.
type Collection[T backend.Record] struct {
	db  *sql.DB
	hub *backend.Hub
	t   table[T]

	mu      sync.Mutex
	indexed map[string]bool
}

func newCollection[T backend.Record](db *sql.DB, hub *backend.Hub, t table[T]) *Collection[T] {
	return &Collection[T]{db: db, hub: hub, t: t, indexed: make(map[string]bool)}
}

func (c *Collection[T]) Subscribe(q backend.Query, onSnapshot func([]T), onError func(error)) backend.Unsubscribe {
	return backend.Watch(c.hub, c.t.name, func(ctx context.Context) ([]T, error) {
		return c.List(ctx, q)
	}, onSnapshot, onError)
}

// List runs q once.
func (c *Collection[T]) List(ctx context.Context, q backend.Query) ([]T, error) {
	if err := c.checkIndex(ctx, q); err != nil {
		return nil, err
	}

	query, args, err := c.t.selectSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.t.name, mapError(err))
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := c.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c.t.name, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (c *Collection[T]) Create(ctx context.Context, v T) (string, error) {
	id := uuid.NewString()
	cols := append([]string{"id"}, c.t.insertColumns...)
	args := append([]any{id}, c.t.values(v)...)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.t.name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("create %s: %w", c.t.name, mapError(err))
	}
	return id, nil
}

func (c *Collection[T]) Update(ctx context.Context, id string, fields backend.Fields) error {
	query, args, err := c.t.updateSQL(id, fields)
	if err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.t.name, id, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s/%s: %w", c.t.name, id, backend.ErrNotFound)
	}
	return nil
}

// UpdateIf runs a single UPDATE guarded by the filters of match, so the
// check and the write cannot interleave with another writer.
func (c *Collection[T]) UpdateIf(ctx context.Context, id string, match backend.Query, fields backend.Fields) error {
	query, args, err := c.t.updateIfSQL(id, match, fields)
	if err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.t.name, id, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}

	var exists bool
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", c.t.name), id).Scan(&exists)
	switch {
	case err != nil:
		return fmt.Errorf("update %s/%s: %w", c.t.name, id, mapError(err))
	case !exists:
		return fmt.Errorf("update %s/%s: %w", c.t.name, id, backend.ErrNotFound)
	}
	return fmt.Errorf("update %s/%s where %s: %w", c.t.name, id, match, backend.ErrPreconditionFailed)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.t.name), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.t.name, id, mapError(err))
	}
	return nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(c.t.columns, ", "), c.t.name)
	item, err := c.t.scan(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s/%s: %w", c.t.name, id, backend.ErrNotFound)
		}
		return zero, fmt.Errorf("get %s/%s: %w", c.t.name, id, mapError(err))
	}
	return item, nil
}

// checkIndex refuses filtered, ordered queries that no composite index
// serves. Positive answers are cached for the life of the collection.
func (c *Collection[T]) checkIndex(ctx context.Context, q backend.Query) error {
	if !q.NeedsIndex() {
		return nil
	}

	fields := make([]string, 0, len(q.Filters)+1)
	for _, f := range q.Filters {
		fields = append(fields, f.Field)
	}
	fields = append(fields, q.OrderBy)
	key := strings.Join(fields, ", ")

	c.mu.Lock()
	ok := c.indexed[key]
	c.mu.Unlock()
	if ok {
		return nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1
	`, c.t.name)
	if err != nil {
		return fmt.Errorf("inspect indexes on %s: %w", c.t.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return fmt.Errorf("scan index definition: %w", err)
		}
		if indexServes(def, key) {
			c.mu.Lock()
			c.indexed[key] = true
			c.mu.Unlock()
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%s where %s: %w", c.t.name, q, backend.ErrIndexMissing)
}

// indexServes reports whether the index definition def leads with exactly
// the comma separated columns of key, as pg_indexes renders them.
func indexServes(def, key string) bool {
	i := strings.Index(def, "("+key)
	if i < 0 {
		return false
	}
	rest := def[i+1+len(key):]
	return rest == "" || rest[0] == ')' || rest[0] == ',' || rest[0] == ' '
}

func (t table[T]) selectSQL(q backend.Query) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(t.columns, ", "), t.name)

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		// Column names come from the whitelist, never from input
		if !t.queryable[f.Field] {
			return "", nil, fmt.Errorf("filter %s.%s: %w", t.name, f.Field, backend.ErrInvalidField)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", f.Field, len(args))
	}

	if q.OrderBy != "" {
		if !t.queryable[q.OrderBy] {
			return "", nil, fmt.Errorf("order %s.%s: %w", t.name, q.OrderBy, backend.ErrInvalidField)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s NULLS LAST", q.OrderBy, dir)
	}

	return b.String(), args, nil
}

func (t table[T]) updateSQL(id string, fields backend.Fields) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("update %s/%s: no fields", t.name, id)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !t.updatable[name] {
			return "", nil, fmt.Errorf("update %s.%s: %w", t.name, name, backend.ErrInvalidField)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		args = append(args, fields[name])
		sets[i] = fmt.Sprintf("%s = $%d", name, len(args))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", t.name, strings.Join(sets, ", "), len(args))
	return query, args, nil
}

func (t table[T]) updateIfSQL(id string, match backend.Query, fields backend.Fields) (string, []any, error) {
	query, args, err := t.updateSQL(id, fields)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(query)
	for _, f := range match.Filters {
		if !t.queryable[f.Field] {
			return "", nil, fmt.Errorf("condition %s.%s: %w", t.name, f.Field, backend.ErrInvalidField)
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, " AND %s = $%d", f.Field, len(args))
	}
	return b.String(), args, nil
}

// mapError translates PostgreSQL privilege failures into
// backend.ErrPermissionDenied.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "insufficient_privilege" {
		return fmt.Errorf("%s: %w", pqErr.Message, backend.ErrPermissionDenied)
	}
	return err
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
