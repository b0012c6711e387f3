// (c) Copyright IBM Corp. 2024

// Command dbwrap runs SQL statements against a PostgreSQL database through the
// dbwrap interceptor chains. Interceptors are enabled with flags, DBWRAP_*
// environment variables or a YAML config file:
//
//	driver: pgx
//	dsn: postgres://app@localhost:5432/app?sslmode=disable
//	log:
//	  operations: true
//	  slow_threshold: 200ms
//	audit:
//	  path: /var/log/dbwrap/audit.jsonl
//	retry:
//	  max_tries: 3
//	metrics: true
package main

import (
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
