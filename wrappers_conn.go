// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// wConn applies the connection interceptor chains to a provider Connection and
// keeps track of the transaction it started last
type wConn struct {
	Connection

	f  *filters
	tx *wTx
}

var (
	_ Connection = (*wConn)(nil)
	_ Wrapper    = (*wConn)(nil)
)

func wrapConn(conn Connection, f *filters) *wConn {
	if w, ok := conn.(*wConn); ok {
		return w
	}

	return &wConn{Connection: conn, f: f}
}

// Unwrap returns the provider connection
func (c *wConn) Unwrap() any {
	return c.Connection
}

func (c *wConn) Open() error {
	c.tx = nil

	ics := c.f.conn.For(ConnectionOpen)
	if len(ics) == 0 {
		return c.Connection.Open()
	}

	return c.open(context.Background(), ics, func(context.Context) error {
		return c.Connection.Open()
	})
}

func (c *wConn) OpenContext(ctx context.Context) error {
	c.tx = nil

	ics := c.f.conn.For(ConnectionOpen)
	if len(ics) == 0 {
		return c.Connection.OpenContext(ctx)
	}

	return c.open(ctx, ics, c.Connection.OpenContext)
}

func (c *wConn) open(ctx context.Context, ics []ConnectionInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic ConnectionInterceptor, next ContextAction) error {
		return ic.Open(ctx, c.Connection, next)
	})(ctx)
}

func (c *wConn) Close() error {
	c.tx = nil

	ics := c.f.conn.For(ConnectionClose)
	if len(ics) == 0 {
		return c.Connection.Close()
	}

	return c.close(context.Background(), ics, func(context.Context) error {
		return c.Connection.Close()
	})
}

func (c *wConn) CloseContext(ctx context.Context) error {
	c.tx = nil

	ics := c.f.conn.For(ConnectionClose)
	if len(ics) == 0 {
		return c.Connection.CloseContext(ctx)
	}

	return c.close(ctx, ics, c.Connection.CloseContext)
}

func (c *wConn) close(ctx context.Context, ics []ConnectionInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic ConnectionInterceptor, next ContextAction) error {
		return ic.Close(ctx, c.Connection, next)
	})(ctx)
}

func (c *wConn) BeginTx(opts TxOptions) (Transaction, error) {
	ics := c.f.conn.For(ConnectionBeginTx)
	if len(ics) == 0 {
		return c.adoptTx(c.Connection.BeginTx(opts))
	}

	return c.adoptTx(c.beginTx(context.Background(), opts, ics, func(_ context.Context, opts TxOptions) (Transaction, error) {
		return c.Connection.BeginTx(opts)
	}))
}

func (c *wConn) BeginTxContext(ctx context.Context, opts TxOptions) (Transaction, error) {
	ics := c.f.conn.For(ConnectionBeginTx)
	if len(ics) == 0 {
		return c.adoptTx(c.Connection.BeginTxContext(ctx, opts))
	}

	return c.adoptTx(c.beginTx(ctx, opts, ics, c.Connection.BeginTxContext))
}

func (c *wConn) beginTx(ctx context.Context, opts TxOptions, ics []ConnectionInterceptor, terminal ContextArgFunc[TxOptions, Transaction]) (Transaction, error) {
	return ChainContextArgFunc(ics, terminal, func(ctx context.Context, ic ConnectionInterceptor, opts TxOptions, next ContextArgFunc[TxOptions, Transaction]) (Transaction, error) {
		return ic.BeginTx(ctx, c.Connection, opts, next)
	})(ctx, opts)
}

// adoptTx wraps a transaction returned by the provider and remembers it as
// the current one
func (c *wConn) adoptTx(tx Transaction, err error) (Transaction, error) {
	if err != nil {
		return nil, err
	}

	if tx == nil {
		return nil, nil
	}

	w := wrapTx(tx, c, c.f)
	c.tx = w

	return w, nil
}

func (c *wConn) ChangeDatabase(name string) error {
	ics := c.f.conn.For(ConnectionChangeDatabase)
	if len(ics) == 0 {
		return c.Connection.ChangeDatabase(name)
	}

	return c.changeDatabase(context.Background(), name, ics, func(_ context.Context, name string) error {
		return c.Connection.ChangeDatabase(name)
	})
}

func (c *wConn) ChangeDatabaseContext(ctx context.Context, name string) error {
	ics := c.f.conn.For(ConnectionChangeDatabase)
	if len(ics) == 0 {
		return c.Connection.ChangeDatabaseContext(ctx, name)
	}

	return c.changeDatabase(ctx, name, ics, c.Connection.ChangeDatabaseContext)
}

func (c *wConn) changeDatabase(ctx context.Context, name string, ics []ConnectionInterceptor, terminal ContextArgAction[string]) error {
	return ChainContextArgAction(ics, terminal, func(ctx context.Context, ic ConnectionInterceptor, name string, next ContextArgAction[string]) error {
		return ic.ChangeDatabase(ctx, c.Connection, name, next)
	})(ctx, name)
}

// CreateCommand wraps the provider command and binds it to the current
// transaction of the connection, if any
func (c *wConn) CreateCommand() (Command, error) {
	var (
		cmd Command
		err error
	)

	if ics := c.f.conn.For(ConnectionCreateCommand); len(ics) == 0 {
		cmd, err = c.Connection.CreateCommand()
	} else {
		cmd, err = ChainFunc(ics, Func[Command](c.Connection.CreateCommand), func(ic ConnectionInterceptor, next Func[Command]) (Command, error) {
			return ic.CreateCommand(c.Connection, next)
		})()
	}

	if err != nil {
		return nil, err
	}

	if cmd == nil {
		return nil, nil
	}

	w := wrapCmd(cmd, c, c.f)
	if c.tx != nil {
		if err := w.SetTransaction(c.tx); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// releaseTx forgets tx if it is the current transaction of the connection
func (c *wConn) releaseTx(tx *wTx) {
	if c != nil && c.tx == tx {
		c.tx = nil
	}
}
