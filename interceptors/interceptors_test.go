// (c) Copyright IBM Corp. 2024

package interceptors_test

import (
	"fmt"
	"sync"
	"testing"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/internal/fakedb"
	"github.com/stretchr/testify/require"
)

type logRecord struct {
	Level   string
	Message string
}

type mockLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (m *mockLogger) Debug(v ...interface{}) { m.add("debug", v) }
func (m *mockLogger) Info(v ...interface{})  { m.add("info", v) }
func (m *mockLogger) Warn(v ...interface{})  { m.add("warn", v) }
func (m *mockLogger) Error(v ...interface{}) { m.add("error", v) }

func (m *mockLogger) add(level string, v []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, logRecord{Level: level, Message: fmt.Sprint(v...)})
}

func (m *mockLogger) Records() []logRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]logRecord(nil), m.records...)
}

// openConnection returns an open connection to db wrapped with the interceptors registered by opts
func openConnection(t *testing.T, db *fakedb.DB, opts ...[]dbwrap.Option) dbwrap.Connection {
	t.Helper()

	var all []dbwrap.Option
	for _, o := range opts {
		all = append(all, o...)
	}

	factory, err := dbwrap.NewFactory(db.Builder("database=main"), append(all, dbwrap.WithoutEnv())...)
	require.NoError(t, err)

	conn, err := factory.CreateConnection()
	require.NoError(t, err)

	require.NoError(t, conn.Open())

	return conn
}

func newCommand(t *testing.T, conn dbwrap.Connection, text string) dbwrap.Command {
	t.Helper()

	cmd, err := conn.CreateCommand()
	require.NoError(t, err)

	cmd.SetText(text)

	return cmd
}
