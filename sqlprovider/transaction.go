// (c) Copyright IBM Corp. 2024

package sqlprovider

import (
	"context"
	"database/sql"
	"database/sql/driver"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Transaction is a dbwrap.Transaction over a driver.Tx
type Transaction struct {
	conn      *Connection
	tx        driver.Tx
	isolation dbwrap.IsolationLevel
	done      bool
}

var _ dbwrap.Transaction = (*Transaction)(nil)

func (t *Transaction) Commit() error {
	return t.CommitContext(context.Background())
}

// CommitContext commits the transaction. driver.Tx has no context-aware
// form, so ctx is only checked before the call.
func (t *Transaction) CommitContext(ctx context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}

	err := dbwrap.CompleteSyncAction(ctx, nil, t.tx.Commit)
	if err == nil || ctx.Err() == nil {
		t.done = true
	}

	t.conn.checkBadConn(err)

	return err
}

func (t *Transaction) Rollback() error {
	return t.RollbackContext(context.Background())
}

func (t *Transaction) RollbackContext(ctx context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}

	err := dbwrap.CompleteSyncAction(ctx, nil, t.tx.Rollback)
	if err == nil || ctx.Err() == nil {
		t.done = true
	}

	t.conn.checkBadConn(err)

	return err
}

// Close rolls the transaction back if it has neither been committed nor rolled back
func (t *Transaction) Close() error {
	if t.done {
		return nil
	}

	return t.Rollback()
}

func (t *Transaction) Connection() dbwrap.Connection {
	return t.conn
}

func (t *Transaction) IsolationLevel() dbwrap.IsolationLevel {
	return t.isolation
}

// Done returns whether the transaction has been committed or rolled back
func (t *Transaction) Done() bool {
	return t.done
}
