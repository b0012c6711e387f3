// (c) Copyright IBM Corp. 2024

package sqlprovider

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// ErrNoRow is returned when a value is read from a cursor that is not
// positioned on a row
var ErrNoRow = errors.New("sqlprovider: cursor is not positioned on a row")

// ErrCursorClosed is returned by operations on a closed cursor
var ErrCursorClosed = errors.New("sqlprovider: cursor is closed")

// Cursor is a dbwrap.Cursor over driver.Rows. The first row of each result
// set is read ahead so that HasRows can be answered before Next.
type Cursor struct {
	rows     driver.Rows
	behavior dbwrap.CommandBehavior
	depth    int
	onClose  func() error

	cols     []string
	row      []driver.Value
	ahead    []driver.Value
	hasAhead bool
	hasRows  bool
	eof      bool
	rowsRead int
	closed   bool
	children []*Cursor
}

var _ dbwrap.Cursor = (*Cursor)(nil)

func newCursor(rows driver.Rows, behavior dbwrap.CommandBehavior, depth int, onClose func() error) *Cursor {
	return &Cursor{
		rows:     rows,
		behavior: behavior,
		depth:    depth,
		onClose:  onClose,
		cols:     rows.Columns(),
	}
}

// prefetch reads the first row of the current result set
func (c *Cursor) prefetch() error {
	c.row, c.ahead, c.hasAhead, c.hasRows, c.eof, c.rowsRead = nil, nil, false, false, false, 0

	dest := make([]driver.Value, len(c.cols))
	switch err := c.rows.Next(dest); {
	case err == io.EOF:
		c.eof = true
		return nil
	case err != nil:
		return err
	}

	c.ahead, c.hasAhead, c.hasRows = dest, true, true

	return nil
}

func (c *Cursor) Next() (bool, error) {
	if c.closed {
		return false, ErrCursorClosed
	}

	if c.behavior.Has(dbwrap.BehaviorSingleRow) && c.rowsRead > 0 {
		c.row = nil
		return false, nil
	}

	if c.hasAhead {
		c.row, c.ahead, c.hasAhead = c.ahead, nil, false
		c.rowsRead++

		return true, nil
	}

	if c.eof {
		c.row = nil
		return false, nil
	}

	dest := make([]driver.Value, len(c.cols))
	if err := c.rows.Next(dest); err != nil {
		c.row = nil
		if err == io.EOF {
			c.eof = true
			return false, nil
		}

		return false, err
	}

	c.row = dest
	c.rowsRead++

	return true, nil
}

// NextContext advances to the next row. Cancellation of the execution itself
// is controlled by the context passed to the command.
func (c *Cursor) NextContext(ctx context.Context) (bool, error) {
	return dbwrap.CompleteSync(ctx, nil, c.Next)
}

// NextResultSet advances to the next result set if the driver supports
// driver.RowsNextResultSet and the cursor was not opened with
// BehaviorSingleResult
func (c *Cursor) NextResultSet() (bool, error) {
	if c.closed {
		return false, ErrCursorClosed
	}

	if c.behavior.Has(dbwrap.BehaviorSingleResult) {
		return false, nil
	}

	rs, ok := c.rows.(driver.RowsNextResultSet)
	if !ok || !rs.HasNextResultSet() {
		return false, nil
	}

	if err := rs.NextResultSet(); err != nil {
		if err == io.EOF {
			return false, nil
		}

		return false, err
	}

	c.cols = c.rows.Columns()

	if err := c.prefetch(); err != nil {
		return false, err
	}

	return true, nil
}

func (c *Cursor) NextResultSetContext(ctx context.Context) (bool, error) {
	return dbwrap.CompleteSync(ctx, nil, c.NextResultSet)
}

func (c *Cursor) Value(ordinal int) (any, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}

	if c.row == nil {
		return nil, ErrNoRow
	}

	if ordinal < 0 || ordinal >= len(c.row) {
		return nil, fmt.Errorf("%w: column %d", dbwrap.ErrNotFound, ordinal)
	}

	return c.row[ordinal], nil
}

func (c *Cursor) IsNull(ordinal int) (bool, error) {
	v, err := c.Value(ordinal)
	if err != nil {
		return false, err
	}

	return v == nil, nil
}

// Nested returns a cursor over a column holding driver.Rows, as returned by
// drivers that support cursor-typed columns. The nested cursor is closed
// together with its parent.
func (c *Cursor) Nested(ordinal int) (dbwrap.Cursor, error) {
	v, err := c.Value(ordinal)
	if err != nil {
		return nil, err
	}

	rows, ok := v.(driver.Rows)
	if !ok {
		return nil, fmt.Errorf("%w: column %d holds %T", ErrNotSupported, ordinal, v)
	}

	child := newCursor(rows, dbwrap.BehaviorDefault, c.depth+1, nil)
	if err := child.prefetch(); err != nil {
		child.Close()
		return nil, err
	}

	c.children = append(c.children, child)

	return child, nil
}

func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	c.row, c.ahead = nil, nil

	var errs []error
	for _, child := range c.children {
		errs = append(errs, child.Close())
	}
	c.children = nil

	errs = append(errs, c.rows.Close())

	if c.onClose != nil {
		errs = append(errs, c.onClose())
	}

	return errors.Join(errs...)
}

func (c *Cursor) CloseContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, c.Close)
}

func (c *Cursor) Columns() []string {
	return c.cols
}

func (c *Cursor) FieldCount() int {
	return len(c.cols)
}

// Ordinal returns the index of the column called name. An exact match takes
// precedence over a case-insensitive one.
func (c *Cursor) Ordinal(name string) (int, error) {
	for i, col := range c.cols {
		if col == name {
			return i, nil
		}
	}

	for i, col := range c.cols {
		if strings.EqualFold(col, name) {
			return i, nil
		}
	}

	return -1, fmt.Errorf("%w: column %q", dbwrap.ErrNotFound, name)
}

func (c *Cursor) HasRows() bool {
	return c.hasRows
}

// RecordsAffected always returns -1, driver.Rows do not report it
func (c *Cursor) RecordsAffected() int64 {
	return -1
}

func (c *Cursor) IsClosed() bool {
	return c.closed
}

func (c *Cursor) Depth() int {
	return c.depth
}
