// (c) Copyright IBM Corp. 2024

// Package fakedb is an in-memory provider implementing the dbwrap resource
// contracts. Every provider call is recorded, so that tests can assert on
// what reached the provider through the interceptor chains.
package fakedb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

var (
	// ErrNotOpen is returned by operations that require an open connection
	ErrNotOpen = errors.New("fakedb: connection is not open")
	// ErrTxDone is returned when a finished transaction is committed or rolled back
	ErrTxDone = errors.New("fakedb: transaction has already been committed or rolled back")
	// ErrCanceled is returned by a blocked execution aborted with Command.Cancel
	ErrCanceled = errors.New("fakedb: execution canceled")
	// ErrClosed is returned by operations on a closed cursor
	ErrClosed = errors.New("fakedb: cursor is closed")
)

// ResultSet is a table returned by a scripted command. A cell holding a
// ResultSet or *ResultSet is exposed as a nested cursor.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Script is the response of the fake database to a command text
type Script struct {
	Affected int64
	Sets     []ResultSet
	Err      error
	// Failures limits Err to the first Failures executions when positive
	Failures int
	// Block makes the execution wait until the command is canceled
	Block bool
}

// DB is a fake database shared by the connections it creates
type DB struct {
	mu      sync.Mutex
	calls   []string
	scripts map[string]Script

	// OpenErr is returned by Connection.Open when set
	OpenErr error
	// OpenFailures limits OpenErr to the first OpenFailures calls when positive
	OpenFailures int
	// Version is reported by Connection.ServerVersion
	Version string
}

// New returns an empty fake database
func New() *DB {
	return &DB{
		scripts: make(map[string]Script),
		Version: "fakedb 1.0",
	}
}

// Script registers the response to a command text
func (db *DB) Script(text string, s Script) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.scripts[text] = s
}

func (db *DB) script(text string) Script {
	db.mu.Lock()
	defer db.mu.Unlock()

	s := db.scripts[text]
	if s.Err != nil && s.Failures > 0 {
		next := s
		next.Failures--
		if next.Failures == 0 {
			next.Err = nil
		}

		db.scripts[text] = next
	}

	return s
}

func (db *DB) record(call string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.calls = append(db.calls, call)
}

func (db *DB) openErr() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.OpenErr
	if err != nil && db.OpenFailures > 0 {
		db.OpenFailures--
		if db.OpenFailures == 0 {
			db.OpenErr = nil
		}
	}

	return err
}

// Calls returns the recorded provider calls, e.g. "Command.ExecuteNonQuery"
func (db *DB) Calls() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return slices.Clone(db.calls)
}

// Count returns how many times call has been recorded
func (db *DB) Count(call string) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	for _, c := range db.calls {
		if c == call {
			n++
		}
	}

	return n
}

// Reset forgets the recorded calls
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.calls = nil
}

// Connect returns a new closed connection to db
func (db *DB) Connect(connString string) *Connection {
	return &Connection{db: db, connString: connString, database: parseDatabase(connString)}
}

// Builder returns a dbwrap.ConnectionBuilder creating connections to db
func (db *DB) Builder(connString string) dbwrap.ConnectionBuilder {
	return func() (dbwrap.Connection, error) {
		return db.Connect(connString), nil
	}
}

func parseDatabase(connString string) string {
	for _, kv := range strings.Split(connString, ";") {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "database") {
			return strings.TrimSpace(v)
		}
	}

	return ""
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("fakedb: "+format, args...)
}
