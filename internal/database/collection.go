package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"vfm-go/internal/vfm"
)

// sqliteCollection stores records of type T as JSON documents in one table.
type sqliteCollection[T vfm.Record] struct {
	store  *SQLiteStore
	layout layout
}

var _ vfm.Collection[vfm.Record] = (*sqliteCollection[vfm.Record])(nil)

func newSQLiteCollection[T vfm.Record](store *SQLiteStore, l layout) *sqliteCollection[T] {
	return &sqliteCollection[T]{store: store, layout: l}
}

func (c *sqliteCollection[T]) Add(ctx context.Context, rec T) error {
	db, err := c.store.conn(ctx)
	if err != nil {
		return err
	}

	rec.Stamp(c.store.clock.Now(), true)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", c.layout.name, err)
	}

	query := "INSERT INTO " + c.layout.name + " (id, data) VALUES (?, ?)"
	if _, err := db.ExecContext(ctx, query, rec.RecordID(), string(data)); err != nil {
		return c.writeError("inserting", rec.RecordID(), err)
	}
	return nil
}

func (c *sqliteCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	db, err := c.store.conn(ctx)
	if err != nil {
		return zero, err
	}

	var data string
	query := "SELECT data FROM " + c.layout.name + " WHERE id = ?"
	if err := db.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, nil // Not found
		}
		return zero, fmt.Errorf("getting %s %s: %w", c.layout.name, id, err)
	}
	return c.decode(data)
}

func (c *sqliteCollection[T]) GetAll(ctx context.Context) ([]T, error) {
	return c.query(ctx, "SELECT data FROM "+c.layout.name)
}

func (c *sqliteCollection[T]) GetByIndex(ctx context.Context, index string, value string) ([]T, error) {
	if !c.layout.hasIndex(index) {
		return nil, fmt.Errorf("%s has no index %q", c.layout.name, index)
	}
	// The expression must match the index definition for SQLite to use it.
	query := "SELECT data FROM " + c.layout.name + " WHERE json_extract(data, '$." + index + "') = ?"
	return c.query(ctx, query, value)
}

func (c *sqliteCollection[T]) Update(ctx context.Context, rec T) error {
	db, err := c.store.conn(ctx)
	if err != nil {
		return err
	}

	rec.Stamp(c.store.clock.Now(), false)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", c.layout.name, err)
	}

	query := "INSERT INTO " + c.layout.name + " (id, data) VALUES (?, ?) " +
		"ON CONFLICT(id) DO UPDATE SET data = excluded.data"
	if _, err := db.ExecContext(ctx, query, rec.RecordID(), string(data)); err != nil {
		return c.writeError("updating", rec.RecordID(), err)
	}
	return nil
}

func (c *sqliteCollection[T]) Delete(ctx context.Context, id string) error {
	db, err := c.store.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM "+c.layout.name+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", c.layout.name, id, err)
	}
	return nil
}

func (c *sqliteCollection[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	db, err := c.store.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.layout.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", c.layout.name, err)
		}
		rec, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.layout.name, err)
	}
	return out, nil
}

func (c *sqliteCollection[T]) decode(data string) (T, error) {
	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		var zero T
		return zero, fmt.Errorf("decoding %s record: %w", c.layout.name, err)
	}
	return rec, nil
}

// writeError maps primary key and unique index violations to
// vfm.ErrDuplicateKey.
func (c *sqliteCollection[T]) writeError(op, id string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("%s %s %s: %w", op, c.layout.name, id, vfm.ErrDuplicateKey)
	}
	return fmt.Errorf("%s %s %s: %w", op, c.layout.name, id, err)
}
