// (c) Copyright IBM Corp. 2024

package interceptors_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/interceptors"
	"github.com/mxProject/AdoNetHelper-sub000/internal/fakedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAuditRecords(t *testing.T, buf *bytes.Buffer) []interceptors.AuditRecord {
	t.Helper()

	var records []interceptors.AuditRecord

	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec interceptors.AuditRecord
		require.NoError(t, jsoniter.Unmarshal(sc.Bytes(), &rec), sc.Text())

		_, err := uuid.Parse(rec.ID)
		assert.NoError(t, err, "record id %q", rec.ID)
		assert.False(t, rec.Time.IsZero())

		records = append(records, rec)
	}

	require.NoError(t, sc.Err())

	return records
}

func TestAudit(t *testing.T) {
	db := fakedb.New()
	db.Script("UPDATE accounts SET balance = balance - @amount WHERE id = @id", fakedb.Script{Affected: 1})
	db.Script("SELECT balance FROM accounts WHERE id = @id", fakedb.Script{Err: errors.New("timeout")})

	var buf bytes.Buffer
	audit := interceptors.NewAudit(&buf, interceptors.WithAuditLabels(map[string]string{"app": "billing"}))

	conn := openConnection(t, db, audit.Options())

	tx, err := conn.BeginTx(dbwrap.TxOptions{})
	require.NoError(t, err)

	cmd := newCommand(t, conn, "UPDATE accounts SET balance = balance - @amount WHERE id = @id")
	require.NoError(t, cmd.SetTransaction(tx))

	_, err = cmd.Parameters().Add(dbwrap.NewParameter("@amount", 100))
	require.NoError(t, err)
	_, err = cmd.Parameters().Add(dbwrap.NewParameter("@id", 7))
	require.NoError(t, err)

	_, err = cmd.ExecuteNonQuery()
	require.NoError(t, err)

	require.NoError(t, tx.Commit())

	_, err = newCommand(t, conn, "SELECT balance FROM accounts WHERE id = @id").ExecuteScalar()
	require.Error(t, err)

	records := readAuditRecords(t, &buf)
	require.Len(t, records, 3)

	exec := records[0]
	assert.Equal(t, "command", exec.Kind)
	assert.Equal(t, "ExecuteNonQuery", exec.Operation)
	assert.Equal(t, "main", exec.Database)
	assert.Equal(t, "fakedb", exec.DataSource)
	assert.Equal(t, "UPDATE accounts SET balance = balance - @amount WHERE id = @id", exec.Statement)
	assert.Equal(t, []interceptors.AuditParameter{{Name: "@amount"}, {Name: "@id"}}, exec.Parameters)
	assert.True(t, exec.InTransaction)
	require.NotNil(t, exec.RowsAffected)
	assert.EqualValues(t, 1, *exec.RowsAffected)
	assert.Equal(t, "ok", exec.Outcome)
	assert.Equal(t, map[string]string{"app": "billing"}, exec.Labels)

	commit := records[1]
	assert.Equal(t, "transaction", commit.Kind)
	assert.Equal(t, "Commit", commit.Operation)
	assert.Equal(t, "ok", commit.Outcome)

	failed := records[2]
	assert.Equal(t, "ExecuteScalar", failed.Operation)
	assert.False(t, failed.InTransaction)
	assert.Nil(t, failed.RowsAffected)
	assert.Equal(t, "error", failed.Outcome)
	assert.Equal(t, "timeout", failed.Error)

	assert.NotEqual(t, exec.ID, failed.ID)
}

func TestAudit_ParameterValues(t *testing.T) {
	db := fakedb.New()

	var buf bytes.Buffer
	conn := openConnection(t, db, interceptors.NewAudit(&buf, interceptors.WithParameterValues()).Options())

	cmd := newCommand(t, conn, "DELETE FROM users WHERE name = :name")
	_, err := cmd.Parameters().Add(dbwrap.NewParameter(":name", "alice"))
	require.NoError(t, err)

	_, err = cmd.ExecuteNonQuery()
	require.NoError(t, err)

	records := readAuditRecords(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, []interceptors.AuditParameter{{Name: ":name", Value: "alice"}}, records[0].Parameters)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAudit_WriteError(t *testing.T) {
	l := &mockLogger{}
	conn := openConnection(t, fakedb.New(), interceptors.NewAudit(failingWriter{}, interceptors.WithAuditLogger(l)).Options())

	_, err := newCommand(t, conn, "SELECT 1").ExecuteNonQuery()
	require.NoError(t, err, "audit failures do not fail the operation")

	require.Len(t, l.Records(), 1)
	assert.Equal(t, logRecord{"warn", "audit: failed to write record: disk full"}, l.Records()[0])
}
