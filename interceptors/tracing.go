// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

// SpanName is the operation name of the spans started by Tracing
const SpanName = "sdk.database"

// Tracing starts an OpenTracing span around connection, transaction and
// command operations. Spans are children of the span found in the operation
// context, and the context passed down the chain carries the new span.
type Tracing struct {
	tracer ot.Tracer
}

// NewTracing returns a Tracing reporting to tracer, or to ot.GlobalTracer() if tracer is nil
func NewTracing(tracer ot.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

func (t *Tracing) getTracer() ot.Tracer {
	if t.tracer == nil {
		return ot.GlobalTracer()
	}

	return t.tracer
}

func (t *Tracing) startSpan(ctx context.Context, op, database, dataSource, statement string) (ot.Span, context.Context) {
	tags := ot.Tags{
		string(ext.DBType): "sql",
		"db.operation":     op,
	}

	if statement != "" {
		tags[string(ext.DBStatement)] = statement
	}

	if database != "" {
		tags[string(ext.DBInstance)] = database
	}

	if dataSource != "" {
		tags[string(ext.PeerAddress)] = dataSource
	}

	opts := []ot.StartSpanOption{ext.SpanKindRPCClient, tags}
	if parentSpan := ot.SpanFromContext(ctx); parentSpan != nil {
		opts = append(opts, ot.ChildOf(parentSpan.Context()))
	}

	sp := t.getTracer().StartSpan(SpanName, opts...)

	return sp, ot.ContextWithSpan(ctx, sp)
}

func finishSpan(sp ot.Span, err error) {
	if err != nil {
		ext.Error.Set(sp, true)
		sp.LogFields(otlog.Error(err))
	}

	sp.Finish()
}

// Connection returns the interceptor tracing Open, BeginTx and ChangeDatabase
func (t *Tracing) Connection() dbwrap.ConnectionInterceptor {
	return tracingConn{
		ConnectionInterceptorBase: dbwrap.ConnectionInterceptorBase{
			Ops: dbwrap.ConnectionOpen | dbwrap.ConnectionBeginTx | dbwrap.ConnectionChangeDatabase,
		},
		t: t,
	}
}

// Transaction returns the interceptor tracing Commit and Rollback
func (t *Tracing) Transaction() dbwrap.TransactionInterceptor {
	return tracingTx{
		TransactionInterceptorBase: dbwrap.TransactionInterceptorBase{Ops: dbwrap.TransactionCommit | dbwrap.TransactionRollback},
		t:                          t,
	}
}

// Command returns the interceptor tracing command executions and Prepare
func (t *Tracing) Command() dbwrap.CommandInterceptor {
	return tracingCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: dbwrap.CommandExecuteNonQuery | dbwrap.CommandExecuteScalar | dbwrap.CommandExecuteCursor | dbwrap.CommandPrepare,
		},
		t: t,
	}
}

// Options returns the factory options registering the tracing interceptors
func (t *Tracing) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithConnectionInterceptors(t.Connection()),
		dbwrap.WithTransactionInterceptors(t.Transaction()),
		dbwrap.WithCommandInterceptors(t.Command()),
	}
}

type tracingConn struct {
	dbwrap.ConnectionInterceptorBase

	t *Tracing
}

func (ic tracingConn) Open(ctx context.Context, conn dbwrap.Connection, next dbwrap.ContextAction) error {
	sp, ctx := ic.t.startSpan(ctx, "Open", conn.Database(), conn.DataSource(), "")

	err := next(ctx)
	finishSpan(sp, err)

	return err
}

func (ic tracingConn) BeginTx(ctx context.Context, conn dbwrap.Connection, opts dbwrap.TxOptions, next dbwrap.ContextArgFunc[dbwrap.TxOptions, dbwrap.Transaction]) (dbwrap.Transaction, error) {
	sp, ctx := ic.t.startSpan(ctx, "BeginTx", conn.Database(), conn.DataSource(), "")
	sp.SetTag("db.isolation_level", int(opts.Isolation))

	tx, err := next(ctx, opts)
	finishSpan(sp, err)

	return tx, err
}

func (ic tracingConn) ChangeDatabase(ctx context.Context, conn dbwrap.Connection, name string, next dbwrap.ContextArgAction[string]) error {
	sp, ctx := ic.t.startSpan(ctx, "ChangeDatabase", name, conn.DataSource(), "")

	err := next(ctx, name)
	finishSpan(sp, err)

	return err
}

type tracingTx struct {
	dbwrap.TransactionInterceptorBase

	t *Tracing
}

func (ic tracingTx) Commit(ctx context.Context, tx dbwrap.Transaction, next dbwrap.ContextAction) error {
	database, dataSource := txSource(tx)
	sp, ctx := ic.t.startSpan(ctx, "Commit", database, dataSource, "")

	err := next(ctx)
	finishSpan(sp, err)

	return err
}

func (ic tracingTx) Rollback(ctx context.Context, tx dbwrap.Transaction, next dbwrap.ContextAction) error {
	database, dataSource := txSource(tx)
	sp, ctx := ic.t.startSpan(ctx, "Rollback", database, dataSource, "")

	err := next(ctx)
	finishSpan(sp, err)

	return err
}

type tracingCmd struct {
	dbwrap.CommandInterceptorBase

	t *Tracing
}

func (ic tracingCmd) start(ctx context.Context, op string, cmd dbwrap.Command) (ot.Span, context.Context) {
	database, dataSource := commandSource(cmd)
	return ic.t.startSpan(ctx, op, database, dataSource, cmd.Text())
}

func (ic tracingCmd) ExecuteNonQuery(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	sp, ctx := ic.start(ctx, "ExecuteNonQuery", cmd)

	n, err := next(ctx)
	if err == nil {
		sp.SetTag("db.rows_affected", n)
	}
	finishSpan(sp, err)

	return n, err
}

func (ic tracingCmd) ExecuteScalar(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	sp, ctx := ic.start(ctx, "ExecuteScalar", cmd)

	v, err := next(ctx)
	finishSpan(sp, err)

	return v, err
}

func (ic tracingCmd) ExecuteCursor(ctx context.Context, cmd dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	sp, ctx := ic.start(ctx, "ExecuteCursor", cmd)

	cur, err := next(ctx, behavior)
	finishSpan(sp, err)

	return cur, err
}

func (ic tracingCmd) Prepare(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextAction) error {
	sp, ctx := ic.start(ctx, "Prepare", cmd)

	err := next(ctx)
	finishSpan(sp, err)

	return err
}
