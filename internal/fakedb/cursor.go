// (c) Copyright IBM Corp. 2024

package fakedb

import (
	"context"
	"fmt"
	"strings"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Cursor is a fake dbwrap.Cursor over scripted result sets
type Cursor struct {
	db       *DB
	sets     []ResultSet
	set      int
	row      int
	affected int64
	depth    int
	closed   bool
}

var _ dbwrap.Cursor = (*Cursor)(nil)

func newCursor(db *DB, sets []ResultSet, affected int64, depth int) *Cursor {
	return &Cursor{db: db, sets: sets, row: -1, affected: affected, depth: depth}
}

func (c *Cursor) current() *ResultSet {
	if c.set >= len(c.sets) {
		return nil
	}

	return &c.sets[c.set]
}

func (c *Cursor) Next() (bool, error) {
	c.db.record("Cursor.Next")

	if c.closed {
		return false, ErrClosed
	}

	rs := c.current()
	if rs == nil || c.row >= len(rs.Rows) {
		return false, nil
	}

	c.row++

	return c.row < len(rs.Rows), nil
}

func (c *Cursor) NextContext(ctx context.Context) (bool, error) {
	return dbwrap.CompleteSync(ctx, nil, c.Next)
}

func (c *Cursor) NextResultSet() (bool, error) {
	c.db.record("Cursor.NextResultSet")

	if c.closed {
		return false, ErrClosed
	}

	if c.set >= len(c.sets) {
		return false, nil
	}

	c.set++
	c.row = -1

	return c.set < len(c.sets), nil
}

func (c *Cursor) NextResultSetContext(ctx context.Context) (bool, error) {
	return dbwrap.CompleteSync(ctx, nil, c.NextResultSet)
}

func (c *Cursor) value(ordinal int) (any, error) {
	if c.closed {
		return nil, ErrClosed
	}

	rs := c.current()
	if rs == nil || c.row < 0 || c.row >= len(rs.Rows) {
		return nil, fmt.Errorf("fakedb: no current row")
	}

	row := rs.Rows[c.row]
	if ordinal < 0 || ordinal >= len(row) {
		return nil, fmt.Errorf("fakedb: ordinal %d out of range [0, %d)", ordinal, len(row))
	}

	return row[ordinal], nil
}

func (c *Cursor) Value(ordinal int) (any, error) {
	c.db.record("Cursor.Value")

	return c.value(ordinal)
}

func (c *Cursor) IsNull(ordinal int) (bool, error) {
	c.db.record("Cursor.IsNull")

	v, err := c.value(ordinal)
	if err != nil {
		return false, err
	}

	return v == nil, nil
}

// Nested returns a cursor over the ResultSet stored in the column
func (c *Cursor) Nested(ordinal int) (dbwrap.Cursor, error) {
	c.db.record("Cursor.Nested")

	v, err := c.value(ordinal)
	if err != nil {
		return nil, err
	}

	switch rs := v.(type) {
	case ResultSet:
		return newCursor(c.db, []ResultSet{rs}, -1, c.depth+1), nil
	case *ResultSet:
		return newCursor(c.db, []ResultSet{*rs}, -1, c.depth+1), nil
	default:
		return nil, fmt.Errorf("fakedb: column %d holds %T, not a result set", ordinal, v)
	}
}

func (c *Cursor) Close() error {
	c.db.record("Cursor.Close")
	c.closed = true

	return nil
}

func (c *Cursor) CloseContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, c.Close)
}

func (c *Cursor) Columns() []string {
	if rs := c.current(); rs != nil {
		return rs.Columns
	}

	return nil
}

func (c *Cursor) FieldCount() int { return len(c.Columns()) }

func (c *Cursor) Ordinal(name string) (int, error) {
	for i, col := range c.Columns() {
		if strings.EqualFold(col, name) {
			return i, nil
		}
	}

	return -1, fmt.Errorf("%w: column %q", dbwrap.ErrNotFound, name)
}

func (c *Cursor) HasRows() bool {
	rs := c.current()
	return rs != nil && len(rs.Rows) > 0
}

func (c *Cursor) RecordsAffected() int64 { return c.affected }
func (c *Cursor) IsClosed() bool         { return c.closed }
func (c *Cursor) Depth() int             { return c.depth }
