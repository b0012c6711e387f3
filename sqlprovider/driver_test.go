// (c) Copyright IBM Corp. 2024

package sqlprovider_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

type testConnector struct {
	conn *testConn
	Err  error
}

func (c *testConnector) Connect(context.Context) (driver.Conn, error) {
	if c.Err != nil {
		return nil, c.Err
	}

	c.conn.closed = false

	return c.conn, nil
}

func (c *testConnector) Driver() driver.Driver { return testDriver{c.conn} }

type testDriver struct{ conn *testConn }

func (drv testDriver) Open(string) (driver.Conn, error) { return drv.conn, nil }

type testQuery struct {
	Query string
	Args  []driver.NamedValue
}

// testConn is a driver connection that records the statements it receives and
// answers queries with the result sets registered in Results
type testConn struct {
	mu sync.Mutex

	// SkipContext makes ExecContext and QueryContext return driver.ErrSkip
	SkipContext bool
	// Block makes executions wait for their context to be done
	Block   bool
	Started chan struct{}

	Err      error
	Affected int64
	Results  map[string][]testSet

	queries   []testQuery
	queryCtxs []context.Context
	prepared  []string
	stmtClose int
	txs       []*testTx
	closed    bool
}

func newTestConn() *testConn {
	return &testConn{
		Started: make(chan struct{}, 1),
		Results: make(map[string][]testSet),
	}
}

func (conn *testConn) Queries() []testQuery {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	return append([]testQuery(nil), conn.queries...)
}

func (conn *testConn) record(query string, args []driver.NamedValue) {
	conn.mu.Lock()
	conn.queries = append(conn.queries, testQuery{query, args})
	conn.mu.Unlock()
}

func (conn *testConn) wait(ctx context.Context) error {
	if !conn.Block {
		return nil
	}

	conn.Started <- struct{}{}
	<-ctx.Done()

	return ctx.Err()
}

func (conn *testConn) Prepare(query string) (driver.Stmt, error) {
	conn.prepared = append(conn.prepared, query)
	return &testStmt{conn: conn, query: query}, nil
}

func (conn *testConn) Close() error {
	conn.closed = true
	return nil
}

func (conn *testConn) Begin() (driver.Tx, error) {
	return conn.BeginTx(context.Background(), driver.TxOptions{})
}

func (conn *testConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	tx := &testTx{opts: opts}
	conn.txs = append(conn.txs, tx)

	return tx, nil
}

func (conn *testConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if conn.SkipContext {
		return nil, driver.ErrSkip
	}

	return conn.exec(ctx, query, args)
}

func (conn *testConn) exec(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	conn.record(query, args)

	if err := conn.wait(ctx); err != nil {
		return nil, err
	}

	if conn.Err != nil {
		return nil, conn.Err
	}

	return driver.RowsAffected(conn.Affected), nil
}

func (conn *testConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if conn.SkipContext {
		return nil, driver.ErrSkip
	}

	return conn.query(ctx, query, args)
}

func (conn *testConn) query(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	conn.record(query, args)

	conn.mu.Lock()
	conn.queryCtxs = append(conn.queryCtxs, ctx)
	conn.mu.Unlock()

	if err := conn.wait(ctx); err != nil {
		return nil, err
	}

	if conn.Err != nil {
		return nil, conn.Err
	}

	return &testRows{sets: conn.Results[query]}, nil
}

type testStmt struct {
	conn  *testConn
	query string
}

func (stmt *testStmt) Close() error {
	stmt.conn.stmtClose++
	return nil
}

func (stmt *testStmt) NumInput() int { return -1 }

func (stmt *testStmt) Exec(args []driver.Value) (driver.Result, error) {
	return stmt.conn.exec(context.Background(), stmt.query, valuesToNamed(args))
}

func (stmt *testStmt) Query(args []driver.Value) (driver.Rows, error) {
	return stmt.conn.query(context.Background(), stmt.query, valuesToNamed(args))
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	var named []driver.NamedValue
	for i, v := range args {
		named = append(named, driver.NamedValue{Ordinal: i + 1, Value: v})
	}

	return named
}

type testTx struct {
	opts       driver.TxOptions
	committed  bool
	rolledBack bool
}

func (tx *testTx) Commit() error {
	if tx.committed || tx.rolledBack {
		return errors.New("transaction already finished")
	}

	tx.committed = true

	return nil
}

func (tx *testTx) Rollback() error {
	if tx.committed || tx.rolledBack {
		return errors.New("transaction already finished")
	}

	tx.rolledBack = true

	return nil
}

type testSet struct {
	Columns []string
	Rows    [][]driver.Value
}

type testRows struct {
	sets   []testSet
	set    int
	pos    int
	closed bool
}

func (r *testRows) Columns() []string {
	if r.set >= len(r.sets) {
		return nil
	}

	return r.sets[r.set].Columns
}

func (r *testRows) Close() error {
	r.closed = true
	return nil
}

func (r *testRows) Next(dest []driver.Value) error {
	if r.set >= len(r.sets) || r.pos >= len(r.sets[r.set].Rows) {
		return io.EOF
	}

	copy(dest, r.sets[r.set].Rows[r.pos])
	r.pos++

	return nil
}

func (r *testRows) HasNextResultSet() bool { return r.set+1 < len(r.sets) }

func (r *testRows) NextResultSet() error {
	if !r.HasNextResultSet() {
		return io.EOF
	}

	r.set++
	r.pos = 0

	return nil
}

type pingConn struct {
	*testConn
	Err error
}

func (conn pingConn) Ping(context.Context) error { return conn.Err }
