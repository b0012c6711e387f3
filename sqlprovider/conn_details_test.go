// (c) Copyright IBM Corp. 2024

package sqlprovider_test

import (
	"testing"

	"github.com/mxProject/AdoNetHelper-sub000/sqlprovider"
	"github.com/stretchr/testify/assert"
)

func TestParseConnDetails(t *testing.T) {
	testcases := map[string]struct {
		DSN      string
		Expected sqlprovider.ConnDetails
	}{
		"URI": {
			DSN: "postgres://user1:p@55w0rd@db.example.com:5432/testdb?sslmode=verify-full",
			Expected: sqlprovider.ConnDetails{
				RawString: "postgres://user1@db.example.com:5432/testdb?sslmode=verify-full",
				Host:      "db.example.com",
				Port:      "5432",
				Schema:    "testdb",
				User:      "user1",
			},
		},
		"URI without credentials": {
			DSN: "postgres://db.example.com/testdb",
			Expected: sqlprovider.ConnDetails{
				RawString: "postgres://db.example.com/testdb",
				Host:      "db.example.com",
				Schema:    "testdb",
			},
		},
		"PostgreSQL": {
			DSN: "host=db.example.com port=5432 user=user1 password=p@55w0rd dbname=testdb sslmode=disable",
			Expected: sqlprovider.ConnDetails{
				RawString: "host=db.example.com port=5432 user=user1 dbname=testdb sslmode=disable",
				Host:      "db.example.com",
				Port:      "5432",
				Schema:    "testdb",
				User:      "user1",
			},
		},
		"PostgreSQL with hostaddr": {
			DSN: "hostaddr=10.0.0.1 host=db.example.com dbname=testdb",
			Expected: sqlprovider.ConnDetails{
				RawString: "hostaddr=10.0.0.1 host=db.example.com dbname=testdb",
				Host:      "10.0.0.1",
				Schema:    "testdb",
			},
		},
		"MySQL": {
			DSN: "Server=db.example.com;Port=3306;Database=testdb;Uid=user1;Pwd=p@55w0rd;",
			Expected: sqlprovider.ConnDetails{
				RawString: "Server=db.example.com;Port=3306;Database=testdb;Uid=user1;",
				Host:      "db.example.com",
				Port:      "3306",
				Schema:    "testdb",
				User:      "user1",
			},
		},
		"MySQL with Password key": {
			DSN: "Server=db.example.com;Database=testdb;Password=secret",
			Expected: sqlprovider.ConnDetails{
				RawString: "Server=db.example.com;Database=testdb;",
				Host:      "db.example.com",
				Schema:    "testdb",
			},
		},
		"unknown format": {
			DSN:      "file.db",
			Expected: sqlprovider.ConnDetails{RawString: "file.db"},
		},
	}

	for name, example := range testcases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, example.Expected, sqlprovider.ParseConnDetails(example.DSN))
		})
	}
}

func TestConnDetails_DataSource(t *testing.T) {
	assert.Equal(t, "db.example.com:5432", sqlprovider.ConnDetails{Host: "db.example.com", Port: "5432"}.DataSource())
	assert.Equal(t, "db.example.com", sqlprovider.ConnDetails{Host: "db.example.com"}.DataSource())
	assert.Equal(t, "[::1]:5432", sqlprovider.ConnDetails{Host: "::1", Port: "5432"}.DataSource())
}
