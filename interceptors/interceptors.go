// (c) Copyright IBM Corp. 2024

// Package interceptors provides ready-made dbwrap interceptors for the
// cross-cutting concerns of data access: logging, tracing, metrics, auditing,
// retries, fault injection and value transformation.
//
// Each interceptor type exposes the per-kind interceptors it implements and an
// Options method returning the dbwrap.Option values that register all of them:
//
//	tr := interceptors.NewTracing(nil)
//	factory, err := dbwrap.NewFactory(sqlprovider.Builder("postgres", dsn), tr.Options()...)
package interceptors

import (
	"context"
	"errors"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Resource kind labels used in logs, spans, metrics and audit records
const (
	kindConnection  = string(dbwrap.KindConnection)
	kindTransaction = string(dbwrap.KindTransaction)
	kindCommand     = string(dbwrap.KindCommand)
	kindCursor      = string(dbwrap.KindCursor)
)

// Outcome labels
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeError
	}
}

// commandSource returns the database and data source of the connection cmd is bound to
func commandSource(cmd dbwrap.Command) (database, dataSource string) {
	conn := cmd.Connection()
	if conn == nil {
		return "", ""
	}

	return conn.Database(), conn.DataSource()
}

// txSource returns the database and data source of the connection tx was started on
func txSource(tx dbwrap.Transaction) (database, dataSource string) {
	conn := tx.Connection()
	if conn == nil {
		return "", ""
	}

	return conn.Database(), conn.DataSource()
}
