// (c) Copyright IBM Corp. 2024

package interceptors_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/interceptors"
	"github.com/mxProject/AdoNetHelper-sub000/internal/fakedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faultPlanYAML = `
faults:
  - kind: command
    operation: ExecuteNonQuery
    match: "UPDATE accounts"
    error: deadlock detected
    times: 1
  - kind: connection
    operation: Open
    delay: 250ms
  - kind: transaction
    error: serialization failure
    probability: 0.5
`

func TestParseFaultPlan(t *testing.T) {
	plan, err := interceptors.ParseFaultPlan([]byte(faultPlanYAML))
	require.NoError(t, err)

	assert.Equal(t, interceptors.FaultPlan{Faults: []interceptors.Fault{
		{Kind: "command", Operation: "ExecuteNonQuery", Match: "UPDATE accounts", Error: "deadlock detected", Times: 1},
		{Kind: "connection", Operation: "Open", Delay: 250 * time.Millisecond},
		{Kind: "transaction", Error: "serialization failure", Probability: 0.5},
	}}, plan)
}

func TestParseFaultPlan_Invalid(t *testing.T) {
	examples := map[string]string{
		"malformed":           "faults: [",
		"unknown kind":        "faults:\n  - kind: cursor\n    error: boom\n",
		"negative prob":       "faults:\n  - kind: command\n    error: boom\n    probability: -0.1\n",
		"probability above 1": "faults:\n  - kind: command\n    error: boom\n    probability: 1.5\n",
	}

	for name, data := range examples {
		t.Run(name, func(t *testing.T) {
			_, err := interceptors.ParseFaultPlan([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFaultPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(faultPlanYAML), 0o600))

	plan, err := interceptors.LoadFaultPlan(path)
	require.NoError(t, err)
	assert.Len(t, plan.Faults, 3)

	_, err = interceptors.LoadFaultPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultInjector_Command(t *testing.T) {
	db := fakedb.New()
	db.Script("UPDATE accounts SET locked = 1", fakedb.Script{Affected: 2})

	plan := interceptors.FaultPlan{Faults: []interceptors.Fault{
		{Kind: "command", Operation: "ExecuteNonQuery", Match: "UPDATE accounts", Error: "deadlock detected", Times: 1},
	}}

	conn := openConnection(t, db, interceptors.NewFaultInjector(plan).Options())

	_, err := newCommand(t, conn, "UPDATE accounts SET locked = 1").ExecuteNonQuery()
	require.ErrorIs(t, err, interceptors.ErrInjected)
	assert.EqualError(t, err, "injected fault: deadlock detected")
	assert.Equal(t, 0, db.Count("Command.ExecuteNonQuery"))

	// the fault only applies once
	n, err := newCommand(t, conn, "UPDATE accounts SET locked = 1").ExecuteNonQuery()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// texts not matching are never affected
	_, err = newCommand(t, conn, "UPDATE users SET locked = 1").ExecuteNonQuery()
	assert.NoError(t, err)
}

func TestFaultInjector_AllOperations(t *testing.T) {
	plan := interceptors.FaultPlan{Faults: []interceptors.Fault{
		{Kind: "transaction", Operation: "*", Error: "serialization failure"},
	}}

	conn := openConnection(t, fakedb.New(), interceptors.NewFaultInjector(plan).Options())

	tx, err := conn.BeginTx(dbwrap.TxOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Commit(), interceptors.ErrInjected)
	assert.ErrorIs(t, tx.Rollback(), interceptors.ErrInjected)
}

func TestFaultInjector_Delay(t *testing.T) {
	plan := interceptors.FaultPlan{Faults: []interceptors.Fault{
		{Kind: "connection", Operation: "BeginTx", Delay: time.Minute},
	}}

	conn := openConnection(t, fakedb.New(), interceptors.NewFaultInjector(plan).Options())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := conn.BeginTxContext(ctx, dbwrap.TxOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFaultInjector_Targets(t *testing.T) {
	plan := interceptors.FaultPlan{Faults: []interceptors.Fault{
		{Kind: "command", Operation: "executescalar", Error: "boom"},
		{Kind: "command", Operation: "Prepare", Delay: time.Millisecond},
		{Kind: "command", Operation: "Rollback", Error: "not a command operation"},
		{Kind: "connection", Operation: "Open"},
	}}

	fi := interceptors.NewFaultInjector(plan)

	assert.Equal(t, dbwrap.CommandExecuteScalar|dbwrap.CommandPrepare, fi.Command().Targets())
	assert.Equal(t, dbwrap.TransactionOp(0), fi.Transaction().Targets())

	// a fault with neither error nor delay is ignored
	assert.Equal(t, dbwrap.ConnectionOp(0), fi.Connection().Targets())
}
