// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// wTx applies the transaction interceptor chains to a provider Transaction.
// Ending the transaction releases it from the connection that started it.
type wTx struct {
	Transaction

	conn *wConn
	f    *filters
}

var (
	_ Transaction = (*wTx)(nil)
	_ Wrapper     = (*wTx)(nil)
)

func wrapTx(tx Transaction, conn *wConn, f *filters) *wTx {
	if w, ok := tx.(*wTx); ok {
		return w
	}

	return &wTx{Transaction: tx, conn: conn, f: f}
}

// Unwrap returns the provider transaction
func (t *wTx) Unwrap() any {
	return t.Transaction
}

// Connection returns the connection wrapper that started the transaction
func (t *wTx) Connection() Connection {
	if t.conn != nil {
		return t.conn
	}

	return t.Transaction.Connection()
}

func (t *wTx) Commit() error {
	defer t.conn.releaseTx(t)

	ics := t.f.tx.For(TransactionCommit)
	if len(ics) == 0 {
		return t.Transaction.Commit()
	}

	return t.commit(context.Background(), ics, func(context.Context) error {
		return t.Transaction.Commit()
	})
}

func (t *wTx) CommitContext(ctx context.Context) error {
	defer t.conn.releaseTx(t)

	ics := t.f.tx.For(TransactionCommit)
	if len(ics) == 0 {
		return t.Transaction.CommitContext(ctx)
	}

	return t.commit(ctx, ics, t.Transaction.CommitContext)
}

func (t *wTx) commit(ctx context.Context, ics []TransactionInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic TransactionInterceptor, next ContextAction) error {
		return ic.Commit(ctx, t.Transaction, next)
	})(ctx)
}

func (t *wTx) Rollback() error {
	defer t.conn.releaseTx(t)

	ics := t.f.tx.For(TransactionRollback)
	if len(ics) == 0 {
		return t.Transaction.Rollback()
	}

	return t.rollback(context.Background(), ics, func(context.Context) error {
		return t.Transaction.Rollback()
	})
}

func (t *wTx) RollbackContext(ctx context.Context) error {
	defer t.conn.releaseTx(t)

	ics := t.f.tx.For(TransactionRollback)
	if len(ics) == 0 {
		return t.Transaction.RollbackContext(ctx)
	}

	return t.rollback(ctx, ics, t.Transaction.RollbackContext)
}

func (t *wTx) rollback(ctx context.Context, ics []TransactionInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic TransactionInterceptor, next ContextAction) error {
		return ic.Rollback(ctx, t.Transaction, next)
	})(ctx)
}

func (t *wTx) Close() error {
	defer t.conn.releaseTx(t)

	ics := t.f.tx.For(TransactionClose)
	if len(ics) == 0 {
		return t.Transaction.Close()
	}

	return ChainContextAction(ics, func(context.Context) error {
		return t.Transaction.Close()
	}, func(ctx context.Context, ic TransactionInterceptor, next ContextAction) error {
		return ic.Close(ctx, t.Transaction, next)
	})(context.Background())
}
