// (c) Copyright IBM Corp. 2024

package interceptors_test

import (
	"errors"
	"strings"
	"testing"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/interceptors"
	"github.com/mxProject/AdoNetHelper-sub000/internal/fakedb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	db := fakedb.New()
	db.Script("UPDATE users SET active = 1", fakedb.Script{Affected: 1})
	db.Script("UPDATE users SET active = 2", fakedb.Script{Err: errors.New("check constraint violated")})
	db.Script("SELECT id FROM users", fakedb.Script{Sets: []fakedb.ResultSet{
		{Columns: []string{"id"}, Rows: [][]any{{1}, {2}, {3}}},
	}})

	m := interceptors.NewMetrics("dbwrap")

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(m))

	conn := openConnection(t, db, m.Options())

	for _, text := range []string{"UPDATE users SET active = 1", "UPDATE users SET active = 1", "UPDATE users SET active = 2"} {
		_, _ = newCommand(t, conn, text).ExecuteNonQuery()
	}

	cur, err := newCommand(t, conn, "SELECT id FROM users").ExecuteCursor(dbwrap.BehaviorDefault)
	require.NoError(t, err)

	for {
		ok, err := cur.Next()
		require.NoError(t, err)

		if !ok {
			break
		}
	}
	require.NoError(t, cur.Close())

	tx, err := conn.BeginTx(dbwrap.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	expected := `
# HELP dbwrap_open_connections Number of connections opened and not yet closed.
# TYPE dbwrap_open_connections gauge
dbwrap_open_connections 1
# HELP dbwrap_operations_total Number of intercepted data access operations.
# TYPE dbwrap_operations_total counter
dbwrap_operations_total{kind="command",operation="ExecuteCursor",outcome="ok"} 1
dbwrap_operations_total{kind="command",operation="ExecuteNonQuery",outcome="error"} 1
dbwrap_operations_total{kind="command",operation="ExecuteNonQuery",outcome="ok"} 2
dbwrap_operations_total{kind="connection",operation="BeginTx",outcome="ok"} 1
dbwrap_operations_total{kind="connection",operation="Open",outcome="ok"} 1
dbwrap_operations_total{kind="cursor",operation="Next",outcome="ok"} 3
dbwrap_operations_total{kind="transaction",operation="Commit",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dbwrap_operations_total", "dbwrap_open_connections"))

	// one series per kind and operation
	assert.Equal(t, 5, testutil.CollectAndCount(m, "dbwrap_operation_duration_seconds"))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Equal(t, 0.0, gaugeValue(t, reg, "dbwrap_open_connections"))
}

func gaugeValue(t *testing.T, reg prometheus.Gatherer, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}

	t.Fatalf("metric %s not found", name)

	return 0
}
