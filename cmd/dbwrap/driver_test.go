// (c) Copyright IBM Corp. 2024

package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

const testDriverName = "dbwrap-cli-test"

var testDBs sync.Map

func init() {
	sql.Register(testDriverName, testDriver{})
}

type testDriver struct{}

func (testDriver) Open(dsn string) (driver.Conn, error) {
	db, ok := testDBs.Load(dsn)
	if !ok {
		return nil, fmt.Errorf("unknown test database %q", dsn)
	}

	return &testConn{db: db.(*testDB)}, nil
}

type testSet struct {
	Columns []string
	Rows    [][]driver.Value
}

type testExec struct {
	Query string
	Args  []driver.NamedValue
}

// testDB is the state shared by the connections opened with its dsn
type testDB struct {
	mu sync.Mutex

	Affected map[string]int64
	Results  map[string][]testSet
	Errors   map[string]error

	execs     []testExec
	commits   int
	rollbacks int
	readOnly  bool
}

// newTestDB registers a database reachable with the returned dsn for the duration of the test
func newTestDB(t *testing.T) (*testDB, string) {
	t.Helper()

	db := &testDB{
		Affected: make(map[string]int64),
		Results:  make(map[string][]testSet),
		Errors:   make(map[string]error),
	}

	dsn := "test://" + t.Name()
	testDBs.Store(dsn, db)
	t.Cleanup(func() { testDBs.Delete(dsn) })

	return db, dsn
}

func (db *testDB) Execs() []testExec {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]testExec(nil), db.execs...)
}

func (db *testDB) record(query string, args []driver.NamedValue) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.execs = append(db.execs, testExec{query, args})

	return db.Errors[query]
}

type testConn struct {
	db *testDB
}

func (conn *testConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements are not supported")
}

func (conn *testConn) Close() error { return nil }

func (conn *testConn) Begin() (driver.Tx, error) {
	return conn.BeginTx(context.Background(), driver.TxOptions{})
}

func (conn *testConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	conn.db.mu.Lock()
	conn.db.readOnly = opts.ReadOnly
	conn.db.mu.Unlock()

	return testTx{conn.db}, nil
}

func (conn *testConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := conn.db.record(query, args); err != nil {
		return nil, err
	}

	conn.db.mu.Lock()
	defer conn.db.mu.Unlock()

	return driver.RowsAffected(conn.db.Affected[query]), nil
}

func (conn *testConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := conn.db.record(query, args); err != nil {
		return nil, err
	}

	conn.db.mu.Lock()
	defer conn.db.mu.Unlock()

	sets, ok := conn.db.Results[query]
	if !ok {
		return nil, fmt.Errorf("unexpected query %q", query)
	}

	return &testRows{sets: sets}, nil
}

type testTx struct{ db *testDB }

func (tx testTx) Commit() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	tx.db.commits++

	return nil
}

func (tx testTx) Rollback() error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	tx.db.rollbacks++

	return nil
}

type testRows struct {
	sets     []testSet
	set, pos int
}

func (r *testRows) Columns() []string { return r.sets[r.set].Columns }
func (r *testRows) Close() error      { return nil }

func (r *testRows) Next(dest []driver.Value) error {
	rows := r.sets[r.set].Rows
	if r.pos >= len(rows) {
		return io.EOF
	}

	copy(dest, rows[r.pos])
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
