// (c) Copyright IBM Corp. 2024

package fakedb

import (
	"context"
	"fmt"
	"sync"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Command is a fake dbwrap.Command answering with the script registered for
// its text
type Command struct {
	db      *DB
	conn    *Connection
	tx      *Transaction
	params  *dbwrap.ParameterList
	text    string
	typ     dbwrap.CommandType
	timeout time.Duration

	mu       sync.Mutex
	inflight chan struct{}
	prepared bool
}

var _ dbwrap.Command = (*Command)(nil)

func (c *Command) ExecuteNonQuery() (int64, error) {
	c.db.record("Command.ExecuteNonQuery")

	s, err := c.run()
	if err != nil {
		return 0, err
	}

	return s.Affected, nil
}

func (c *Command) ExecuteNonQueryContext(ctx context.Context) (int64, error) {
	return dbwrap.CompleteSync(ctx, c.Cancel, c.ExecuteNonQuery)
}

// ExecuteScalar returns the first column of the first row of the first result set
func (c *Command) ExecuteScalar() (any, error) {
	c.db.record("Command.ExecuteScalar")

	s, err := c.run()
	if err != nil {
		return nil, err
	}

	if len(s.Sets) == 0 || len(s.Sets[0].Rows) == 0 || len(s.Sets[0].Rows[0]) == 0 {
		return nil, nil
	}

	return s.Sets[0].Rows[0][0], nil
}

func (c *Command) ExecuteScalarContext(ctx context.Context) (any, error) {
	return dbwrap.CompleteSync(ctx, c.Cancel, c.ExecuteScalar)
}

func (c *Command) ExecuteCursor(behavior dbwrap.CommandBehavior) (dbwrap.Cursor, error) {
	c.db.record("Command.ExecuteCursor")

	s, err := c.run()
	if err != nil {
		return nil, err
	}

	sets := s.Sets
	if behavior.Has(dbwrap.BehaviorSingleResult) && len(sets) > 1 {
		sets = sets[:1]
	}

	return newCursor(c.db, sets, s.Affected, 0), nil
}

func (c *Command) ExecuteCursorContext(ctx context.Context, behavior dbwrap.CommandBehavior) (dbwrap.Cursor, error) {
	return dbwrap.CompleteSync(ctx, c.Cancel, func() (dbwrap.Cursor, error) {
		return c.ExecuteCursor(behavior)
	})
}

func (c *Command) run() (Script, error) {
	if c.conn == nil || c.conn.state != dbwrap.StateOpen {
		return Script{}, ErrNotOpen
	}

	s := c.db.script(c.text)
	if s.Block {
		c.mu.Lock()
		done := make(chan struct{})
		c.inflight = done
		c.mu.Unlock()

		<-done

		return Script{}, ErrCanceled
	}

	if s.Err != nil {
		return Script{}, s.Err
	}

	return s, nil
}

func (c *Command) Prepare() error {
	c.db.record("Command.Prepare")

	if c.conn == nil || c.conn.state != dbwrap.StateOpen {
		return ErrNotOpen
	}

	c.prepared = true

	return nil
}

func (c *Command) PrepareContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, c.Cancel, c.Prepare)
}

// Prepared returns whether Prepare succeeded
func (c *Command) Prepared() bool { return c.prepared }

// Cancel releases a blocked execution
func (c *Command) Cancel() error {
	c.db.record("Command.Cancel")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		close(c.inflight)
		c.inflight = nil
	}

	return nil
}

// Blocked returns whether an execution is waiting to be canceled
func (c *Command) Blocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inflight != nil
}

func (c *Command) Close() error {
	c.db.record("Command.Close")

	return nil
}

func (c *Command) Text() string                           { return c.text }
func (c *Command) SetText(text string)                    { c.text = text }
func (c *Command) Type() dbwrap.CommandType               { return c.typ }
func (c *Command) SetType(t dbwrap.CommandType)           { c.typ = t }
func (c *Command) Timeout() time.Duration                 { return c.timeout }
func (c *Command) SetTimeout(d time.Duration)             { c.timeout = d }
func (c *Command) Parameters() dbwrap.ParameterCollection { return c.params }

func (c *Command) Connection() dbwrap.Connection {
	if c.conn == nil {
		return nil
	}

	return c.conn
}

// SetConnection accepts *Connection only. Binding another connection drops
// the transaction.
func (c *Command) SetConnection(conn dbwrap.Connection) error {
	c.db.record("Command.SetConnection")

	if conn == nil {
		c.conn, c.tx = nil, nil
		return nil
	}

	fc, ok := conn.(*Connection)
	if !ok {
		return fmt.Errorf("%w: %T is not a fakedb connection", dbwrap.ErrInvalidResource, conn)
	}

	if fc != c.conn {
		c.conn, c.tx = fc, nil
	}

	return nil
}

func (c *Command) Transaction() dbwrap.Transaction {
	if c.tx == nil {
		return nil
	}

	return c.tx
}

// SetTransaction accepts *Transaction only
func (c *Command) SetTransaction(tx dbwrap.Transaction) error {
	c.db.record("Command.SetTransaction")

	if tx == nil {
		c.tx = nil
		return nil
	}

	ft, ok := tx.(*Transaction)
	if !ok {
		return fmt.Errorf("%w: %T is not a fakedb transaction", dbwrap.ErrInvalidResource, tx)
	}

	c.tx = ft

	return nil
}
