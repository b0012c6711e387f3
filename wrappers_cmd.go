// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// wCmd applies the command interceptor chains to a provider Command and holds
// the wrappers of the connection and transaction it is bound to
type wCmd struct {
	Command

	f      *filters
	conn   *wConn
	tx     *wTx
	params *wParams
}

var (
	_ Command = (*wCmd)(nil)
	_ Wrapper = (*wCmd)(nil)
)

func wrapCmd(cmd Command, conn *wConn, f *filters) *wCmd {
	if w, ok := cmd.(*wCmd); ok {
		return w
	}

	return &wCmd{Command: cmd, conn: conn, f: f}
}

// Unwrap returns the provider command
func (c *wCmd) Unwrap() any {
	return c.Command
}

// Connection returns the wrapper of the connection the command is bound to
func (c *wCmd) Connection() Connection {
	if c.conn == nil {
		conn := c.Command.Connection()
		if conn == nil {
			return nil
		}

		c.conn = wrapConn(conn, c.f)
	}

	return c.conn
}

// SetConnection binds the command to conn. Passing the current wrapper or the
// provider connection behind it is a no-op. A change drops the cached
// transaction wrapper; Transaction reads the provider binding again.
func (c *wCmd) SetConnection(conn Connection) error {
	if conn == nil {
		if err := c.Command.SetConnection(nil); err != nil {
			return err
		}

		c.conn, c.tx = nil, nil

		return nil
	}

	w, ok := conn.(*wConn)
	if ok && w == c.conn {
		return nil
	}

	if !ok {
		if c.conn != nil && c.conn.Connection == conn {
			return nil
		}

		w = wrapConn(conn, c.f)
	}

	if err := c.Command.SetConnection(w.Connection); err != nil {
		return err
	}

	c.conn, c.tx = w, nil

	return nil
}

// Transaction returns the wrapper of the transaction the command is bound to
func (c *wCmd) Transaction() Transaction {
	if c.tx == nil {
		tx := c.Command.Transaction()
		if tx == nil {
			return nil
		}

		c.tx = c.lookupTx(tx)
	}

	return c.tx
}

// SetTransaction binds the command to tx. Passing the current wrapper or the
// provider transaction behind it is a no-op.
func (c *wCmd) SetTransaction(tx Transaction) error {
	if tx == nil {
		if err := c.Command.SetTransaction(nil); err != nil {
			return err
		}

		c.tx = nil

		return nil
	}

	w, ok := tx.(*wTx)
	if ok && w == c.tx {
		return nil
	}

	if !ok {
		if c.tx != nil && c.tx.Transaction == tx {
			return nil
		}

		w = c.lookupTx(tx)
	}

	if err := c.Command.SetTransaction(w.Transaction); err != nil {
		return err
	}

	c.tx = w

	return nil
}

// lookupTx returns the wrapper the owning connection holds for tx, or a new one
func (c *wCmd) lookupTx(tx Transaction) *wTx {
	if c.conn != nil && c.conn.tx != nil && c.conn.tx.Transaction == tx {
		return c.conn.tx
	}

	return wrapTx(tx, nil, c.f)
}

// Parameters returns the parameter collection of the command, wrapped when
// parameter interceptors are configured
func (c *wCmd) Parameters() ParameterCollection {
	params := c.Command.Parameters()
	if params == nil || c.f.params.Mask() == 0 {
		return params
	}

	if c.params == nil || c.params.ParameterCollection != params {
		c.params = wrapParams(params, c.f)
	}

	return c.params
}

func (c *wCmd) ExecuteNonQuery() (int64, error) {
	ics := c.f.cmd.For(CommandExecuteNonQuery)
	if len(ics) == 0 {
		return c.Command.ExecuteNonQuery()
	}

	return c.executeNonQuery(context.Background(), ics, func(context.Context) (int64, error) {
		return c.Command.ExecuteNonQuery()
	})
}

func (c *wCmd) ExecuteNonQueryContext(ctx context.Context) (int64, error) {
	ics := c.f.cmd.For(CommandExecuteNonQuery)
	if len(ics) == 0 {
		return c.Command.ExecuteNonQueryContext(ctx)
	}

	return c.executeNonQuery(ctx, ics, c.Command.ExecuteNonQueryContext)
}

func (c *wCmd) executeNonQuery(ctx context.Context, ics []CommandInterceptor, terminal ContextFunc[int64]) (int64, error) {
	return ChainContextFunc(ics, terminal, func(ctx context.Context, ic CommandInterceptor, next ContextFunc[int64]) (int64, error) {
		return ic.ExecuteNonQuery(ctx, c.Command, next)
	})(ctx)
}

func (c *wCmd) ExecuteScalar() (any, error) {
	ics := c.f.cmd.For(CommandExecuteScalar)
	if len(ics) == 0 {
		return c.Command.ExecuteScalar()
	}

	return c.executeScalar(context.Background(), ics, func(context.Context) (any, error) {
		return c.Command.ExecuteScalar()
	})
}

func (c *wCmd) ExecuteScalarContext(ctx context.Context) (any, error) {
	ics := c.f.cmd.For(CommandExecuteScalar)
	if len(ics) == 0 {
		return c.Command.ExecuteScalarContext(ctx)
	}

	return c.executeScalar(ctx, ics, c.Command.ExecuteScalarContext)
}

func (c *wCmd) executeScalar(ctx context.Context, ics []CommandInterceptor, terminal ContextFunc[any]) (any, error) {
	return ChainContextFunc(ics, terminal, func(ctx context.Context, ic CommandInterceptor, next ContextFunc[any]) (any, error) {
		return ic.ExecuteScalar(ctx, c.Command, next)
	})(ctx)
}

func (c *wCmd) ExecuteCursor(behavior CommandBehavior) (Cursor, error) {
	ics := c.f.cmd.For(CommandExecuteCursor)
	if len(ics) == 0 {
		return c.adoptCursor(c.Command.ExecuteCursor(behavior))
	}

	return c.adoptCursor(c.executeCursor(context.Background(), behavior, ics, func(_ context.Context, behavior CommandBehavior) (Cursor, error) {
		return c.Command.ExecuteCursor(behavior)
	}))
}

func (c *wCmd) ExecuteCursorContext(ctx context.Context, behavior CommandBehavior) (Cursor, error) {
	ics := c.f.cmd.For(CommandExecuteCursor)
	if len(ics) == 0 {
		return c.adoptCursor(c.Command.ExecuteCursorContext(ctx, behavior))
	}

	return c.adoptCursor(c.executeCursor(ctx, behavior, ics, c.Command.ExecuteCursorContext))
}

func (c *wCmd) executeCursor(ctx context.Context, behavior CommandBehavior, ics []CommandInterceptor, terminal ContextArgFunc[CommandBehavior, Cursor]) (Cursor, error) {
	return ChainContextArgFunc(ics, terminal, func(ctx context.Context, ic CommandInterceptor, behavior CommandBehavior, next ContextArgFunc[CommandBehavior, Cursor]) (Cursor, error) {
		return ic.ExecuteCursor(ctx, c.Command, behavior, next)
	})(ctx, behavior)
}

func (c *wCmd) adoptCursor(cur Cursor, err error) (Cursor, error) {
	if err != nil {
		return nil, err
	}

	if cur == nil {
		return nil, nil
	}

	return wrapCursor(cur, c.f), nil
}

func (c *wCmd) Prepare() error {
	ics := c.f.cmd.For(CommandPrepare)
	if len(ics) == 0 {
		return c.Command.Prepare()
	}

	return c.prepare(context.Background(), ics, func(context.Context) error {
		return c.Command.Prepare()
	})
}

func (c *wCmd) PrepareContext(ctx context.Context) error {
	ics := c.f.cmd.For(CommandPrepare)
	if len(ics) == 0 {
		return c.Command.PrepareContext(ctx)
	}

	return c.prepare(ctx, ics, c.Command.PrepareContext)
}

func (c *wCmd) prepare(ctx context.Context, ics []CommandInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic CommandInterceptor, next ContextAction) error {
		return ic.Prepare(ctx, c.Command, next)
	})(ctx)
}

func (c *wCmd) Cancel() error {
	ics := c.f.cmd.For(CommandCancel)
	if len(ics) == 0 {
		return c.Command.Cancel()
	}

	return ChainAction(ics, c.Command.Cancel, func(ic CommandInterceptor, next Action) error {
		return ic.Cancel(c.Command, next)
	})()
}

func (c *wCmd) Close() error {
	ics := c.f.cmd.For(CommandClose)
	if len(ics) == 0 {
		return c.Command.Close()
	}

	return ChainContextAction(ics, func(context.Context) error {
		return c.Command.Close()
	}, func(ctx context.Context, ic CommandInterceptor, next ContextAction) error {
		return ic.Close(ctx, c.Command, next)
	})(context.Background())
}
