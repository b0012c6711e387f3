// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Logging writes one log line per intercepted operation: failures at error
// level, operations slower than the slow threshold at warn level and
// everything else at debug level.
type Logging struct {
	logger dbwrap.LeveledLogger
	slow   time.Duration
}

// LoggingOption configures Logging
type LoggingOption func(*Logging)

// WithSlowThreshold makes operations lasting at least d log at warn level
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(lg *Logging) {
		lg.slow = d
	}
}

// NewLogging returns a Logging writing to l, or to dbwrap.DefaultLogger() if l is nil
func NewLogging(l dbwrap.LeveledLogger, opts ...LoggingOption) *Logging {
	if l == nil {
		l = dbwrap.DefaultLogger()
	}

	lg := &Logging{logger: l}
	for _, opt := range opts {
		opt(lg)
	}

	return lg
}

func (lg *Logging) log(kind, op, subject string, start time.Time, err error) {
	d := time.Since(start)

	if subject != "" {
		subject = " " + subject
	}

	switch {
	case err != nil:
		lg.logger.Error(kind, ".", op, subject, " failed after ", d, ": ", err)
	case lg.slow > 0 && d >= lg.slow:
		lg.logger.Warn(kind, ".", op, subject, " is slow: took ", d)
	default:
		lg.logger.Debug(kind, ".", op, subject, " took ", d)
	}
}

// Connection returns the interceptor logging connection operations
func (lg *Logging) Connection() dbwrap.ConnectionInterceptor {
	return loggingConn{
		ConnectionInterceptorBase: dbwrap.ConnectionInterceptorBase{
			Ops: dbwrap.ConnectionOpen | dbwrap.ConnectionClose | dbwrap.ConnectionBeginTx | dbwrap.ConnectionChangeDatabase,
		},
		lg: lg,
	}
}

// Transaction returns the interceptor logging transaction outcomes
func (lg *Logging) Transaction() dbwrap.TransactionInterceptor {
	return loggingTx{
		TransactionInterceptorBase: dbwrap.TransactionInterceptorBase{Ops: dbwrap.TransactionCommit | dbwrap.TransactionRollback},
		lg:                         lg,
	}
}

// Command returns the interceptor logging command executions
func (lg *Logging) Command() dbwrap.CommandInterceptor {
	return loggingCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: dbwrap.CommandExecuteNonQuery | dbwrap.CommandExecuteScalar | dbwrap.CommandExecuteCursor |
				dbwrap.CommandPrepare | dbwrap.CommandCancel,
		},
		lg: lg,
	}
}

// Options returns the factory options registering the logging interceptors
func (lg *Logging) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithConnectionInterceptors(lg.Connection()),
		dbwrap.WithTransactionInterceptors(lg.Transaction()),
		dbwrap.WithCommandInterceptors(lg.Command()),
	}
}

type loggingConn struct {
	dbwrap.ConnectionInterceptorBase

	lg *Logging
}

func (ic loggingConn) Open(ctx context.Context, conn dbwrap.Connection, next dbwrap.ContextAction) error {
	start := time.Now()
	err := next(ctx)
	ic.lg.log(kindConnection, "Open", conn.DataSource(), start, err)

	return err
}

func (ic loggingConn) Close(ctx context.Context, conn dbwrap.Connection, next dbwrap.ContextAction) error {
	start := time.Now()
	err := next(ctx)
	ic.lg.log(kindConnection, "Close", conn.DataSource(), start, err)

	return err
}

func (ic loggingConn) BeginTx(ctx context.Context, conn dbwrap.Connection, opts dbwrap.TxOptions, next dbwrap.ContextArgFunc[dbwrap.TxOptions, dbwrap.Transaction]) (dbwrap.Transaction, error) {
	start := time.Now()
	tx, err := next(ctx, opts)
	ic.lg.log(kindConnection, "BeginTx", conn.DataSource(), start, err)

	return tx, err
}

func (ic loggingConn) ChangeDatabase(ctx context.Context, conn dbwrap.Connection, name string, next dbwrap.ContextArgAction[string]) error {
	start := time.Now()
	err := next(ctx, name)
	ic.lg.log(kindConnection, "ChangeDatabase", name, start, err)

	return err
}

type loggingTx struct {
	dbwrap.TransactionInterceptorBase

	lg *Logging
}

func (ic loggingTx) Commit(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	start := time.Now()
	err := next(ctx)
	ic.lg.log(kindTransaction, "Commit", "", start, err)

	return err
}

func (ic loggingTx) Rollback(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	start := time.Now()
	err := next(ctx)
	ic.lg.log(kindTransaction, "Rollback", "", start, err)

	return err
}

type loggingCmd struct {
	dbwrap.CommandInterceptorBase

	lg *Logging
}

func (ic loggingCmd) ExecuteNonQuery(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	start := time.Now()
	n, err := next(ctx)
	ic.lg.log(kindCommand, "ExecuteNonQuery", quote(cmd.Text()), start, err)

	return n, err
}

func (ic loggingCmd) ExecuteScalar(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	start := time.Now()
	v, err := next(ctx)
	ic.lg.log(kindCommand, "ExecuteScalar", quote(cmd.Text()), start, err)

	return v, err
}

func (ic loggingCmd) ExecuteCursor(ctx context.Context, cmd dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	start := time.Now()
	cur, err := next(ctx, behavior)
	ic.lg.log(kindCommand, "ExecuteCursor", quote(cmd.Text()), start, err)

	return cur, err
}

func (ic loggingCmd) Prepare(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextAction) error {
	start := time.Now()
	err := next(ctx)
	ic.lg.log(kindCommand, "Prepare", quote(cmd.Text()), start, err)

	return err
}

func (ic loggingCmd) Cancel(cmd dbwrap.Command, next dbwrap.Action) error {
	start := time.Now()
	err := next()
	ic.lg.log(kindCommand, "Cancel", quote(cmd.Text()), start, err)

	return err
}

// quote shortens long statements so that log lines stay readable
func quote(text string) string {
	const maxLen = 120

	if r := []rune(text); len(r) > maxLen {
		text = string(r[:maxLen]) + "..."
	}

	return "\"" + text + "\""
}
