// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// Default retry policy
const (
	DefaultMaxTries       = 3
	DefaultMaxElapsedTime = 30 * time.Second
)

// Retry re-runs connection opens and command executions that failed with a
// transient error, waiting between attempts as dictated by an exponential
// backoff. Executions of commands bound to a transaction are never retried.
//
// Retry calls its continuation more than once per invocation, so it implements
// dbwrap.Repeater.
type Retry struct {
	maxTries   uint
	maxElapsed time.Duration
	backOff    func() backoff.BackOff
	transient  func(error) bool
	logger     dbwrap.LeveledLogger
}

// RetryOption configures Retry
type RetryOption func(*Retry)

// WithMaxTries limits the number of attempts, including the first one
func WithMaxTries(n uint) RetryOption {
	return func(r *Retry) {
		r.maxTries = n
	}
}

// WithMaxElapsedTime limits the total time spent retrying an operation
func WithMaxElapsedTime(d time.Duration) RetryOption {
	return func(r *Retry) {
		r.maxElapsed = d
	}
}

// WithBackOff sets the backoff policy. newBackOff is called once per
// intercepted operation.
func WithBackOff(newBackOff func() backoff.BackOff) RetryOption {
	return func(r *Retry) {
		r.backOff = newBackOff
	}
}

// WithTransient replaces the predicate deciding whether an error is worth a retry
func WithTransient(fn func(error) bool) RetryOption {
	return func(r *Retry) {
		r.transient = fn
	}
}

// WithRetryLogger sets the logger used to report retried attempts
func WithRetryLogger(l dbwrap.LeveledLogger) RetryOption {
	return func(r *Retry) {
		r.logger = l
	}
}

// NewRetry returns a Retry with the default policy changed by opts
func NewRetry(opts ...RetryOption) *Retry {
	r := &Retry{
		maxTries:   DefaultMaxTries,
		maxElapsed: DefaultMaxElapsedTime,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		transient: IsTransient,
		logger:    dbwrap.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// IsTransient reports whether err is a broken driver connection or an error
// exposing Temporary() or Timeout() methods that return true. Context errors
// are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	var timeout interface{ Timeout() bool }

	return errors.As(err, &timeout) && timeout.Timeout()
}

func retry[T any](ctx context.Context, r *Retry, what string, op func() (T, error)) (T, error) {
	var attempt int

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++

		res, err := op()
		if err != nil && !r.transient(err) {
			return res, backoff.Permanent(err)
		}

		return res, err
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithMaxElapsedTime(r.maxElapsed),
		backoff.WithNotify(func(err error, d time.Duration) {
			r.logger.Info(what, " attempt ", attempt, " failed, retrying in ", d, ": ", err)
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	return res, err
}

func retryAction(ctx context.Context, r *Retry, what string, op func() error) error {
	_, err := retry(ctx, r, what, func() (struct{}, error) {
		return struct{}{}, op()
	})

	return err
}

// Connection returns the interceptor retrying Open
func (r *Retry) Connection() dbwrap.ConnectionInterceptor {
	return retryConn{
		ConnectionInterceptorBase: dbwrap.ConnectionInterceptorBase{Ops: dbwrap.ConnectionOpen},
		r:                         r,
	}
}

// Command returns the interceptor retrying command executions
func (r *Retry) Command() dbwrap.CommandInterceptor {
	return retryCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: dbwrap.CommandExecuteNonQuery | dbwrap.CommandExecuteScalar | dbwrap.CommandExecuteCursor,
		},
		r: r,
	}
}

// Options returns the factory options registering the retry interceptors
func (r *Retry) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithConnectionInterceptors(r.Connection()),
		dbwrap.WithCommandInterceptors(r.Command()),
	}
}

type retryConn struct {
	dbwrap.ConnectionInterceptorBase

	r *Retry
}

func (retryConn) RepeatsContinuation() bool { return true }

func (ic retryConn) Open(ctx context.Context, _ dbwrap.Connection, next dbwrap.ContextAction) error {
	return retryAction(ctx, ic.r, "connection.Open", func() error {
		return next(ctx)
	})
}

type retryCmd struct {
	dbwrap.CommandInterceptorBase

	r *Retry
}

func (retryCmd) RepeatsContinuation() bool { return true }

func (ic retryCmd) ExecuteNonQuery(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	if cmd.Transaction() != nil {
		return next(ctx)
	}

	return retry(ctx, ic.r, "command.ExecuteNonQuery", func() (int64, error) {
		return next(ctx)
	})
}

func (ic retryCmd) ExecuteScalar(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	if cmd.Transaction() != nil {
		return next(ctx)
	}

	return retry(ctx, ic.r, "command.ExecuteScalar", func() (any, error) {
		return next(ctx)
	})
}

func (ic retryCmd) ExecuteCursor(ctx context.Context, cmd dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	if cmd.Transaction() != nil {
		return next(ctx, behavior)
	}

	return retry(ctx, ic.r, "command.ExecuteCursor", func() (dbwrap.Cursor, error) {
		return next(ctx, behavior)
	})
}
