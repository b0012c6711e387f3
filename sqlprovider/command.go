// (c) Copyright IBM Corp. 2024

package sqlprovider

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Command is a dbwrap.Command executed on the driver connection of a
// Connection. Parameters are bound by position unless the connection was
// created WithNamedParameters.
type Command struct {
	conn    *Connection
	tx      *Transaction
	params  *dbwrap.ParameterList
	text    string
	typ     dbwrap.CommandType
	timeout time.Duration

	stmt         driver.Stmt
	preparedText string

	mu      sync.Mutex
	running *execution
}

// execution is the cancel handle of one run of a command
type execution struct {
	cancel context.CancelFunc
}

var _ dbwrap.Command = (*Command)(nil)

// statement returns the query sent to the driver for the command type
func (c *Command) statement() string {
	switch c.typ {
	case dbwrap.CommandStoredProcedure:
		return "CALL " + c.text
	case dbwrap.CommandTableDirect:
		return "SELECT * FROM " + c.text
	default:
		return c.text
	}
}

// begin prepares an execution: it checks the bindings, derives the
// cancelable context Cancel aborts and converts the parameters
func (c *Command) begin(ctx context.Context) (driver.Conn, context.Context, []driver.NamedValue, func(), error) {
	if c.conn == nil {
		return nil, nil, nil, nil, ErrNotOpen
	}

	conn, err := c.conn.open()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if c.tx != nil && c.tx.done {
		return nil, nil, nil, nil, sql.ErrTxDone
	}

	args, err := namedValues(conn, c.params, c.conn.named)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var stopTimeout context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, stopTimeout = context.WithTimeout(ctx, c.timeout)
	}

	ctx, cancel := context.WithCancel(ctx)
	exec := &execution{cancel: cancel}

	c.mu.Lock()
	c.running = exec
	c.mu.Unlock()

	done := func() {
		c.mu.Lock()
		if c.running == exec {
			c.running = nil
		}
		c.mu.Unlock()

		cancel()
		stopTimeout()
	}

	return conn, ctx, args, done, nil
}

// executing marks the connection as executing until the returned func is called
func (c *Command) executing() func() {
	if !c.conn.state.can(eExecute) {
		return func() {}
	}

	if err := c.conn.state.fire(eExecute); err != nil {
		c.conn.logger.Debug("failed to mark connection as executing: ", err)
		return func() {}
	}

	return func() {
		if c.conn.state.can(eIdle) {
			_ = c.conn.state.fire(eIdle)
		}
	}
}

func (c *Command) ExecuteNonQuery() (int64, error) {
	return c.ExecuteNonQueryContext(context.Background())
}

func (c *Command) ExecuteNonQueryContext(ctx context.Context) (int64, error) {
	conn, ctx, args, done, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()
	defer c.executing()()

	res, err := c.exec(ctx, conn, args)
	if err != nil {
		c.conn.checkBadConn(err)
		return 0, err
	}

	return res.RowsAffected()
}

func (c *Command) exec(ctx context.Context, conn driver.Conn, args []driver.NamedValue) (driver.Result, error) {
	if c.stmt != nil && c.preparedText == c.statement() {
		return stmtExec(ctx, c.stmt, args)
	}

	if execer, ok := conn.(driver.ExecerContext); ok {
		res, err := execer.ExecContext(ctx, c.statement(), args)
		if !errors.Is(err, driver.ErrSkip) {
			return res, err
		}
	}

	stmt, err := prepare(ctx, conn, c.statement())
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	return stmtExec(ctx, stmt, args)
}

func (c *Command) query(ctx context.Context, conn driver.Conn, args []driver.NamedValue) (driver.Rows, func(), error) {
	if c.stmt != nil && c.preparedText == c.statement() {
		rows, err := stmtQuery(ctx, c.stmt, args)
		return rows, func() {}, err
	}

	if queryer, ok := conn.(driver.QueryerContext); ok {
		rows, err := queryer.QueryContext(ctx, c.statement(), args)
		if !errors.Is(err, driver.ErrSkip) {
			return rows, func() {}, err
		}
	}

	stmt, err := prepare(ctx, conn, c.statement())
	if err != nil {
		return nil, nil, err
	}

	rows, err := stmtQuery(ctx, stmt, args)
	if err != nil {
		stmt.Close()
		return nil, nil, err
	}

	return rows, func() { stmt.Close() }, nil
}

// ExecuteScalar returns the first column of the first row, or nil if the
// query returns no rows
func (c *Command) ExecuteScalar() (any, error) {
	return c.ExecuteScalarContext(context.Background())
}

func (c *Command) ExecuteScalarContext(ctx context.Context) (any, error) {
	conn, ctx, args, done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	defer c.executing()()

	rows, release, err := c.query(ctx, conn, args)
	if err != nil {
		c.conn.checkBadConn(err)
		return nil, err
	}
	defer release()
	defer rows.Close()

	cols := rows.Columns()
	if len(cols) == 0 {
		return nil, nil
	}

	dest := make([]driver.Value, len(cols))
	if err := rows.Next(dest); err != nil {
		if err == io.EOF {
			return nil, nil
		}

		return nil, err
	}

	return dest[0], nil
}

// ExecuteCursor runs the query and returns a cursor over its results. The
// execution can be canceled with Cancel until the cursor is closed.
func (c *Command) ExecuteCursor(behavior dbwrap.CommandBehavior) (dbwrap.Cursor, error) {
	return c.ExecuteCursorContext(context.Background(), behavior)
}

func (c *Command) ExecuteCursorContext(ctx context.Context, behavior dbwrap.CommandBehavior) (dbwrap.Cursor, error) {
	conn, ctx, args, done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.executing()()

	rows, release, err := c.query(ctx, conn, args)
	if err != nil {
		done()
		c.conn.checkBadConn(err)

		return nil, err
	}

	owner := c.conn
	cur := newCursor(rows, behavior, 0, func() error {
		release()
		done()

		if behavior.Has(dbwrap.BehaviorCloseConnection) {
			return owner.Close()
		}

		return nil
	})

	if err := cur.prefetch(); err != nil {
		cur.Close()
		return nil, err
	}

	return cur, nil
}

func (c *Command) Prepare() error {
	return c.PrepareContext(context.Background())
}

// PrepareContext prepares the statement on the driver connection. The
// prepared statement is reused as long as the text and type do not change.
func (c *Command) PrepareContext(ctx context.Context) error {
	if c.conn == nil {
		return ErrNotOpen
	}

	conn, err := c.conn.open()
	if err != nil {
		return err
	}

	if c.stmt != nil && c.preparedText == c.statement() {
		return nil
	}

	c.closeStmt()

	stmt, err := prepare(ctx, conn, c.statement())
	if err != nil {
		c.conn.checkBadConn(err)
		return err
	}

	c.stmt, c.preparedText = stmt, c.statement()

	return nil
}

// Cancel aborts the context of the running execution, if any. Drivers that
// honor context cancellation stop the query on the server.
func (c *Command) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running != nil {
		c.running.cancel()
	}

	return nil
}

// Close releases the prepared statement
func (c *Command) Close() error {
	return c.closeStmt()
}

func (c *Command) closeStmt() error {
	if c.stmt == nil {
		return nil
	}

	err := c.stmt.Close()
	c.stmt, c.preparedText = nil, ""

	return err
}

func (c *Command) Text() string { return c.text }

func (c *Command) SetText(text string) { c.text = text }

func (c *Command) Type() dbwrap.CommandType { return c.typ }

func (c *Command) SetType(t dbwrap.CommandType) { c.typ = t }

func (c *Command) Timeout() time.Duration { return c.timeout }

// SetTimeout limits the duration of each execution, zero means no limit
func (c *Command) SetTimeout(d time.Duration) { c.timeout = d }

func (c *Command) Parameters() dbwrap.ParameterCollection { return c.params }

func (c *Command) Connection() dbwrap.Connection {
	if c.conn == nil {
		return nil
	}

	return c.conn
}

// SetConnection binds the command to conn, which must be a *Connection.
// Rebinding drops the transaction and the prepared statement.
func (c *Command) SetConnection(conn dbwrap.Connection) error {
	if conn == nil {
		c.closeStmt()
		c.conn, c.tx = nil, nil

		return nil
	}

	sc, ok := conn.(*Connection)
	if !ok {
		return fmt.Errorf("%w: %T is not a sqlprovider connection", dbwrap.ErrInvalidResource, conn)
	}

	if sc != c.conn {
		c.closeStmt()
		c.conn, c.tx = sc, nil
	}

	return nil
}

func (c *Command) Transaction() dbwrap.Transaction {
	if c.tx == nil {
		return nil
	}

	return c.tx
}

// SetTransaction binds the command to tx, which must be a *Transaction started
// on the connection of the command
func (c *Command) SetTransaction(tx dbwrap.Transaction) error {
	if tx == nil {
		c.tx = nil
		return nil
	}

	st, ok := tx.(*Transaction)
	if !ok {
		return fmt.Errorf("%w: %T is not a sqlprovider transaction", dbwrap.ErrInvalidResource, tx)
	}

	if st.conn != c.conn {
		return fmt.Errorf("%w: transaction belongs to another connection", dbwrap.ErrInvalidResource)
	}

	c.tx = st

	return nil
}

// namedValues converts the parameters into driver values, using the
// driver.NamedValueChecker of conn when available. Parameter names are
// passed to the driver only if named is set.
func namedValues(conn driver.Conn, params *dbwrap.ParameterList, named bool) ([]driver.NamedValue, error) {
	if params.Len() == 0 {
		return nil, nil
	}

	checker, _ := conn.(driver.NamedValueChecker)

	args := make([]driver.NamedValue, 0, params.Len())
	for i, p := range params.All() {
		if p.Direction != dbwrap.DirectionInput {
			return nil, fmt.Errorf("%w: parameter %s is not an input parameter", ErrNotSupported, p)
		}

		nv := driver.NamedValue{Ordinal: i + 1, Value: p.Value}
		if named {
			nv.Name = trimParameterName(p.Name)
		}

		if checker != nil {
			err := checker.CheckNamedValue(&nv)
			if err == nil {
				args = append(args, nv)
				continue
			}

			if !errors.Is(err, driver.ErrSkip) {
				return nil, fmt.Errorf("sqlprovider: parameter %d: %w", i, err)
			}
		}

		v, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
		if err != nil {
			return nil, fmt.Errorf("sqlprovider: parameter %d: %w", i, err)
		}

		nv.Value = v
		args = append(args, nv)
	}

	return args, nil
}

func prepare(ctx context.Context, conn driver.Conn, query string) (driver.Stmt, error) {
	if cp, ok := conn.(driver.ConnPrepareContext); ok {
		return cp.PrepareContext(ctx, query)
	}

	return dbwrap.CompleteSync(ctx, nil, func() (driver.Stmt, error) {
		return conn.Prepare(query)
	})
}

func stmtExec(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Result, error) {
	if se, ok := stmt.(driver.StmtExecContext); ok {
		return se.ExecContext(ctx, args)
	}

	values, err := namedValuesToValues(args)
	if err != nil {
		return nil, err
	}

	return dbwrap.CompleteSync(ctx, nil, func() (driver.Result, error) {
		return stmt.Exec(values) //nolint:staticcheck
	})
}

func stmtQuery(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Rows, error) {
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		return sq.QueryContext(ctx, args)
	}

	values, err := namedValuesToValues(args)
	if err != nil {
		return nil, err
	}

	return dbwrap.CompleteSync(ctx, nil, func() (driver.Rows, error) {
		return stmt.Query(values) //nolint:staticcheck
	})
}

// The following code is ported from $GOROOT/src/database/sql/ctxutil.go
//
// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
func namedValuesToValues(named []driver.NamedValue) ([]driver.Value, error) {
	dargs := make([]driver.Value, len(named))
	for n, param := range named {
		if len(param.Name) > 0 {
			return nil, errors.New("sql: driver does not support the use of Named Parameters")
		}
		dargs[n] = param.Value
	}
	return dargs, nil
}

func trimParameterName(name string) string {
	return strings.TrimLeft(name, "@:$")
}
