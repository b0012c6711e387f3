// (c) Copyright IBM Corp. 2024

package interceptors_test

import (
	"errors"
	"testing"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/interceptors"
	"github.com/mxProject/AdoNetHelper-sub000/internal/fakedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_Parameters(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, berlin)

	conn := openConnection(t, fakedb.New(), interceptors.NewTransform().Parameters(interceptors.UTCParameters).Options())
	cmd := newCommand(t, conn, "INSERT INTO events (at, name) VALUES (@at, @name)")

	_, err = cmd.Parameters().Add(dbwrap.NewParameter("@at", ts))
	require.NoError(t, err)
	require.NoError(t, cmd.Parameters().Insert(0, dbwrap.NewParameter("@name", "deploy")))

	require.Equal(t, 2, cmd.Parameters().Len())

	assert.Equal(t, "deploy", cmd.Parameters().At(0).Value)

	at := cmd.Parameters().At(1).Value.(time.Time)
	assert.Equal(t, time.UTC, at.Location())
	assert.True(t, ts.Equal(at))
}

func TestTransform_ParameterError(t *testing.T) {
	errNoSecrets := errors.New("secrets are not allowed in parameters")

	conn := openConnection(t, fakedb.New(), interceptors.NewTransform().Parameters(func(p *dbwrap.Parameter) error {
		if p.Name == "@password" {
			return errNoSecrets
		}

		return nil
	}).Options())

	cmd := newCommand(t, conn, "UPDATE users SET password = @password")

	_, err := cmd.Parameters().Add(dbwrap.NewParameter("@password", "hunter2"))
	assert.ErrorIs(t, err, errNoSecrets)
	assert.Equal(t, 0, cmd.Parameters().Len())
}

func TestTransform_Values(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	db := fakedb.New()
	db.Script("SELECT name, created FROM users", fakedb.Script{Sets: []fakedb.ResultSet{
		{Columns: []string{"name", "created"}, Rows: [][]any{{[]byte("alice"), created}}},
	}})

	var columns []string
	track := func(column string, v any) (any, error) {
		columns = append(columns, column)
		return v, nil
	}

	conn := openConnection(t, db, interceptors.NewTransform().
		Values(interceptors.BytesAsStrings, interceptors.LocalTimes(tokyo), track).
		Options())

	cur, err := newCommand(t, conn, "SELECT name, created FROM users").ExecuteCursor(dbwrap.BehaviorDefault)
	require.NoError(t, err)
	defer cur.Close()

	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)

	name, err := cur.Value(0)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	v, err := cur.Value(1)
	require.NoError(t, err)

	ts := v.(time.Time)
	assert.Equal(t, tokyo, ts.Location())
	assert.True(t, created.Equal(ts))

	assert.Equal(t, []string{"name", "created"}, columns)
}

func TestTransform_Empty(t *testing.T) {
	tr := interceptors.NewTransform()

	assert.Equal(t, dbwrap.ParameterNone, tr.Parameter().Targets())
	assert.Equal(t, dbwrap.CursorNone, tr.Cursor().Targets())
}
