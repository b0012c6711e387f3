// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts intercepted operations by kind, operation and outcome and
// observes their duration. It implements prometheus.Collector.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	open     prometheus.Gauge
}

var _ prometheus.Collector = (*Metrics)(nil)

// NewMetrics returns a Metrics whose metric names are prefixed with namespace
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of intercepted data access operations.",
		}, []string{"kind", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of intercepted data access operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"kind", "operation"}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of connections opened and not yet closed.",
		}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.calls.Describe(ch)
	m.duration.Describe(ch)
	m.open.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.calls.Collect(ch)
	m.duration.Collect(ch)
	m.open.Collect(ch)
}

func (m *Metrics) observe(kind, op string, start time.Time, err error) {
	m.calls.WithLabelValues(kind, op, outcome(err)).Inc()
	m.duration.WithLabelValues(kind, op).Observe(time.Since(start).Seconds())
}

// Connection returns the interceptor measuring connection operations
func (m *Metrics) Connection() dbwrap.ConnectionInterceptor {
	return metricsConn{
		ConnectionInterceptorBase: dbwrap.ConnectionInterceptorBase{
			Ops: dbwrap.ConnectionOpen | dbwrap.ConnectionClose | dbwrap.ConnectionBeginTx | dbwrap.ConnectionChangeDatabase,
		},
		m: m,
	}
}

// Transaction returns the interceptor measuring transaction outcomes
func (m *Metrics) Transaction() dbwrap.TransactionInterceptor {
	return metricsTx{
		TransactionInterceptorBase: dbwrap.TransactionInterceptorBase{Ops: dbwrap.TransactionCommit | dbwrap.TransactionRollback},
		m:                          m,
	}
}

// Command returns the interceptor measuring command executions
func (m *Metrics) Command() dbwrap.CommandInterceptor {
	return metricsCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: dbwrap.CommandExecuteNonQuery | dbwrap.CommandExecuteScalar | dbwrap.CommandExecuteCursor | dbwrap.CommandPrepare,
		},
		m: m,
	}
}

// Cursor returns the interceptor counting row reads
func (m *Metrics) Cursor() dbwrap.CursorInterceptor {
	return metricsCursor{
		CursorInterceptorBase: dbwrap.CursorInterceptorBase{Ops: dbwrap.CursorNext},
		m:                     m,
	}
}

// Options returns the factory options registering the metrics interceptors
func (m *Metrics) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithConnectionInterceptors(m.Connection()),
		dbwrap.WithTransactionInterceptors(m.Transaction()),
		dbwrap.WithCommandInterceptors(m.Command()),
		dbwrap.WithCursorInterceptors(m.Cursor()),
	}
}

type metricsConn struct {
	dbwrap.ConnectionInterceptorBase

	m *Metrics
}

func (ic metricsConn) Open(ctx context.Context, _ dbwrap.Connection, next dbwrap.ContextAction) error {
	start := time.Now()

	err := next(ctx)
	if err == nil {
		ic.m.open.Inc()
	}
	ic.m.observe(kindConnection, "Open", start, err)

	return err
}

func (ic metricsConn) Close(ctx context.Context, conn dbwrap.Connection, next dbwrap.ContextAction) error {
	start := time.Now()
	wasOpen := conn.State() != dbwrap.StateClosed

	err := next(ctx)
	if wasOpen && conn.State() == dbwrap.StateClosed {
		ic.m.open.Dec()
	}
	ic.m.observe(kindConnection, "Close", start, err)

	return err
}

func (ic metricsConn) BeginTx(ctx context.Context, _ dbwrap.Connection, opts dbwrap.TxOptions, next dbwrap.ContextArgFunc[dbwrap.TxOptions, dbwrap.Transaction]) (dbwrap.Transaction, error) {
	start := time.Now()

	tx, err := next(ctx, opts)
	ic.m.observe(kindConnection, "BeginTx", start, err)

	return tx, err
}

func (ic metricsConn) ChangeDatabase(ctx context.Context, _ dbwrap.Connection, name string, next dbwrap.ContextArgAction[string]) error {
	start := time.Now()

	err := next(ctx, name)
	ic.m.observe(kindConnection, "ChangeDatabase", start, err)

	return err
}

type metricsTx struct {
	dbwrap.TransactionInterceptorBase

	m *Metrics
}

func (ic metricsTx) Commit(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	start := time.Now()

	err := next(ctx)
	ic.m.observe(kindTransaction, "Commit", start, err)

	return err
}

func (ic metricsTx) Rollback(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	start := time.Now()

	err := next(ctx)
	ic.m.observe(kindTransaction, "Rollback", start, err)

	return err
}

type metricsCmd struct {
	dbwrap.CommandInterceptorBase

	m *Metrics
}

func (ic metricsCmd) ExecuteNonQuery(ctx context.Context, _ dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	start := time.Now()

	n, err := next(ctx)
	ic.m.observe(kindCommand, "ExecuteNonQuery", start, err)

	return n, err
}

func (ic metricsCmd) ExecuteScalar(ctx context.Context, _ dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	start := time.Now()

	v, err := next(ctx)
	ic.m.observe(kindCommand, "ExecuteScalar", start, err)

	return v, err
}

func (ic metricsCmd) ExecuteCursor(ctx context.Context, _ dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	start := time.Now()

	cur, err := next(ctx, behavior)
	ic.m.observe(kindCommand, "ExecuteCursor", start, err)

	return cur, err
}

func (ic metricsCmd) Prepare(ctx context.Context, _ dbwrap.Command, next dbwrap.ContextAction) error {
	start := time.Now()

	err := next(ctx)
	ic.m.observe(kindCommand, "Prepare", start, err)

	return err
}

type metricsCursor struct {
	dbwrap.CursorInterceptorBase

	m *Metrics
}

// Next counts rows only, its duration is not observed
func (ic metricsCursor) Next(ctx context.Context, _ dbwrap.Cursor, next dbwrap.ContextFunc[bool]) (bool, error) {
	ok, err := next(ctx)
	if ok || err != nil {
		ic.m.calls.WithLabelValues(kindCursor, "Next", outcome(err)).Inc()
	}

	return ok, err
}
