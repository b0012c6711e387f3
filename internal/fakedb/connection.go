// (c) Copyright IBM Corp. 2024

package fakedb

import (
	"context"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Connection is a fake dbwrap.Connection
type Connection struct {
	db         *DB
	connString string
	database   string
	state      dbwrap.ConnectionState
}

var _ dbwrap.Connection = (*Connection)(nil)

func (c *Connection) Open() error {
	c.db.record("Connection.Open")

	if c.state == dbwrap.StateOpen {
		return errorf("connection is already open")
	}

	if err := c.db.openErr(); err != nil {
		c.state = dbwrap.StateBroken
		return err
	}

	c.state = dbwrap.StateOpen

	return nil
}

func (c *Connection) OpenContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, c.Open)
}

func (c *Connection) Close() error {
	c.db.record("Connection.Close")
	c.state = dbwrap.StateClosed

	return nil
}

func (c *Connection) CloseContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, c.Close)
}

func (c *Connection) BeginTx(opts dbwrap.TxOptions) (dbwrap.Transaction, error) {
	c.db.record("Connection.BeginTx")

	if c.state != dbwrap.StateOpen {
		return nil, ErrNotOpen
	}

	return &Transaction{conn: c, isolation: opts.Isolation}, nil
}

func (c *Connection) BeginTxContext(ctx context.Context, opts dbwrap.TxOptions) (dbwrap.Transaction, error) {
	return dbwrap.CompleteSync(ctx, nil, func() (dbwrap.Transaction, error) {
		return c.BeginTx(opts)
	})
}

func (c *Connection) ChangeDatabase(name string) error {
	c.db.record("Connection.ChangeDatabase")

	if c.state != dbwrap.StateOpen {
		return ErrNotOpen
	}

	if name == "" {
		return errorf("database name is empty")
	}

	c.database = name

	return nil
}

func (c *Connection) ChangeDatabaseContext(ctx context.Context, name string) error {
	return dbwrap.CompleteSyncAction(ctx, nil, func() error {
		return c.ChangeDatabase(name)
	})
}

func (c *Connection) CreateCommand() (dbwrap.Command, error) {
	c.db.record("Connection.CreateCommand")

	return &Command{db: c.db, conn: c, params: &dbwrap.ParameterList{}}, nil
}

func (c *Connection) ConnectionString() string      { return c.connString }
func (c *Connection) SetConnectionString(s string)  { c.connString, c.database = s, parseDatabase(s) }
func (c *Connection) Database() string              { return c.database }
func (c *Connection) DataSource() string            { return "fakedb" }
func (c *Connection) ServerVersion() string         { return c.db.Version }
func (c *Connection) State() dbwrap.ConnectionState { return c.state }

// Transaction is a fake dbwrap.Transaction
type Transaction struct {
	conn      *Connection
	isolation dbwrap.IsolationLevel
	done      bool
}

var _ dbwrap.Transaction = (*Transaction)(nil)

func (t *Transaction) Commit() error {
	t.conn.db.record("Transaction.Commit")

	return t.finish()
}

func (t *Transaction) CommitContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, t.Commit)
}

func (t *Transaction) Rollback() error {
	t.conn.db.record("Transaction.Rollback")

	return t.finish()
}

func (t *Transaction) RollbackContext(ctx context.Context) error {
	return dbwrap.CompleteSyncAction(ctx, nil, t.Rollback)
}

// Close rolls the transaction back if it is still pending
func (t *Transaction) Close() error {
	t.conn.db.record("Transaction.Close")
	t.done = true

	return nil
}

func (t *Transaction) finish() error {
	if t.done {
		return ErrTxDone
	}

	t.done = true

	return nil
}

// Done returns whether the transaction has been committed, rolled back or closed
func (t *Transaction) Done() bool                            { return t.done }
func (t *Transaction) Connection() dbwrap.Connection         { return t.conn }
func (t *Transaction) IsolationLevel() dbwrap.IsolationLevel { return t.isolation }
