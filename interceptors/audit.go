// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditRecord is a JSON line written by Audit for each audited operation
type AuditRecord struct {
	ID            string            `json:"id"`
	Time          time.Time         `json:"time"`
	Kind          string            `json:"kind"`
	Operation     string            `json:"operation"`
	Database      string            `json:"database,omitempty"`
	DataSource    string            `json:"data_source,omitempty"`
	Statement     string            `json:"statement,omitempty"`
	Parameters    []AuditParameter  `json:"parameters,omitempty"`
	InTransaction bool              `json:"in_transaction,omitempty"`
	RowsAffected  *int64            `json:"rows_affected,omitempty"`
	DurationMs    float64           `json:"duration_ms"`
	Outcome       string            `json:"outcome"`
	Error         string            `json:"error,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// AuditParameter is a command parameter as recorded by Audit. Values are only
// recorded when the Audit was created WithParameterValues.
type AuditParameter struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Audit writes an AuditRecord as a JSON line for every command execution and
// transaction outcome. Writes are serialized, so w does not need to be safe for
// concurrent use.
type Audit struct {
	mu     sync.Mutex
	w      io.Writer
	logger dbwrap.LeveledLogger

	values  bool
	secrets Matcher
	labels  map[string]string
	now     func() time.Time
	newID   func() string
}

// AuditOption configures Audit
type AuditOption func(*Audit)

// WithParameterValues makes Audit record parameter values, not only their names.
// Values of parameters named like secrets are still replaced with RedactedValue.
func WithParameterValues() AuditOption {
	return func(a *Audit) {
		a.values = true
	}
}

// WithSecretsMatcher sets the matcher of the parameter names whose values are
// recorded as RedactedValue. The default is DefaultSecretsMatcher().
func WithSecretsMatcher(m Matcher) AuditOption {
	return func(a *Audit) {
		a.secrets = m
	}
}

// WithAuditLabels adds static labels to every record, e.g. the application name
func WithAuditLabels(labels map[string]string) AuditOption {
	return func(a *Audit) {
		a.labels = labels
	}
}

// WithAuditLogger sets the logger used to report write failures
func WithAuditLogger(l dbwrap.LeveledLogger) AuditOption {
	return func(a *Audit) {
		a.logger = l
	}
}

// NewAudit returns an Audit writing to w
func NewAudit(w io.Writer, opts ...AuditOption) *Audit {
	a := &Audit{
		w:       w,
		logger:  dbwrap.DefaultLogger(),
		secrets: DefaultSecretsMatcher(),
		now:     time.Now,
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Audit) record(rec AuditRecord, start time.Time, err error) {
	rec.ID = a.newID()
	rec.Time = start.UTC()
	rec.DurationMs = float64(a.now().Sub(start)) / float64(time.Millisecond)
	rec.Outcome = outcome(err)
	rec.Labels = a.labels

	if err != nil {
		rec.Error = err.Error()
	}

	data, merr := json.Marshal(rec)
	if merr != nil {
		a.logger.Warn("audit: failed to marshal record of ", rec.Kind, ".", rec.Operation, ": ", merr)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, werr := a.w.Write(append(data, '\n')); werr != nil {
		a.logger.Warn("audit: failed to write record: ", werr)
	}
}

func (a *Audit) commandRecord(op string, cmd dbwrap.Command) AuditRecord {
	database, dataSource := commandSource(cmd)

	rec := AuditRecord{
		Kind:          kindCommand,
		Operation:     op,
		Database:      database,
		DataSource:    dataSource,
		Statement:     cmd.Text(),
		InTransaction: cmd.Transaction() != nil,
	}

	for _, p := range cmd.Parameters().All() {
		ap := AuditParameter{Name: p.Name}
		if a.values {
			ap.Value = p.Value
			if a.secrets != nil && a.secrets.Match(strings.TrimLeft(p.Name, "@:$")) {
				ap.Value = RedactedValue
			}
		}

		rec.Parameters = append(rec.Parameters, ap)
	}

	return rec
}

// Transaction returns the interceptor auditing Commit and Rollback
func (a *Audit) Transaction() dbwrap.TransactionInterceptor {
	return auditTx{
		TransactionInterceptorBase: dbwrap.TransactionInterceptorBase{Ops: dbwrap.TransactionCommit | dbwrap.TransactionRollback},
		a:                          a,
	}
}

// Command returns the interceptor auditing command executions
func (a *Audit) Command() dbwrap.CommandInterceptor {
	return auditCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: dbwrap.CommandExecuteNonQuery | dbwrap.CommandExecuteScalar | dbwrap.CommandExecuteCursor,
		},
		a: a,
	}
}

// Options returns the factory options registering the audit interceptors
func (a *Audit) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithTransactionInterceptors(a.Transaction()),
		dbwrap.WithCommandInterceptors(a.Command()),
	}
}

type auditTx struct {
	dbwrap.TransactionInterceptorBase

	a *Audit
}

func (ic auditTx) Commit(ctx context.Context, tx dbwrap.Transaction, next dbwrap.ContextAction) error {
	return ic.finish(ctx, "Commit", tx, next)
}

func (ic auditTx) Rollback(ctx context.Context, tx dbwrap.Transaction, next dbwrap.ContextAction) error {
	return ic.finish(ctx, "Rollback", tx, next)
}

func (ic auditTx) finish(ctx context.Context, op string, tx dbwrap.Transaction, next dbwrap.ContextAction) error {
	start := ic.a.now()
	database, dataSource := txSource(tx)

	err := next(ctx)
	ic.a.record(AuditRecord{
		Kind:          kindTransaction,
		Operation:     op,
		Database:      database,
		DataSource:    dataSource,
		InTransaction: true,
	}, start, err)

	return err
}

type auditCmd struct {
	dbwrap.CommandInterceptorBase

	a *Audit
}

func (ic auditCmd) ExecuteNonQuery(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	start := ic.a.now()
	rec := ic.a.commandRecord("ExecuteNonQuery", cmd)

	n, err := next(ctx)
	if err == nil {
		rec.RowsAffected = &n
	}
	ic.a.record(rec, start, err)

	return n, err
}

func (ic auditCmd) ExecuteScalar(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	start := ic.a.now()
	rec := ic.a.commandRecord("ExecuteScalar", cmd)

	v, err := next(ctx)
	ic.a.record(rec, start, err)

	return v, err
}

func (ic auditCmd) ExecuteCursor(ctx context.Context, cmd dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	start := ic.a.now()
	rec := ic.a.commandRecord("ExecuteCursor", cmd)

	cur, err := next(ctx, behavior)
	ic.a.record(rec, start, err)

	return cur, err
}
