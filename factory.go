// (c) Copyright IBM Corp. 2024

package dbwrap

import "errors"

// ConnectionBuilder creates a new provider connection
type ConnectionBuilder func() (Connection, error)

// Masks reports the union of the targets of the interceptors configured for
// each resource kind
type Masks struct {
	Connection  ConnectionOp
	Transaction TransactionOp
	Command     CommandOp
	Parameters  ParameterOp
	Cursor      CursorOp
}

// Empty returns whether no operation of any kind is intercepted
func (m Masks) Empty() bool {
	return m.Connection == 0 && m.Transaction == 0 && m.Command == 0 && m.Parameters == 0 && m.Cursor == 0
}

// FactoryOptions holds the interceptor lists and the logger of a Factory
type FactoryOptions struct {
	Connection  []ConnectionInterceptor
	Transaction []TransactionInterceptor
	Command     []CommandInterceptor
	Parameters  []ParameterInterceptor
	Cursor      []CursorInterceptor

	Logger LeveledLogger
	// IgnoreEnv disables reading DBWRAP_DISABLE and DBWRAP_CONFIG_PATH
	IgnoreEnv bool
}

// Option configures a Factory
type Option func(*FactoryOptions)

// WithConnectionInterceptors appends interceptors to the connection chain. The
// first interceptor is the outermost one.
func WithConnectionInterceptors(ics ...ConnectionInterceptor) Option {
	return func(o *FactoryOptions) {
		o.Connection = append(o.Connection, ics...)
	}
}

// WithTransactionInterceptors appends interceptors to the transaction chain
func WithTransactionInterceptors(ics ...TransactionInterceptor) Option {
	return func(o *FactoryOptions) {
		o.Transaction = append(o.Transaction, ics...)
	}
}

// WithCommandInterceptors appends interceptors to the command chain
func WithCommandInterceptors(ics ...CommandInterceptor) Option {
	return func(o *FactoryOptions) {
		o.Command = append(o.Command, ics...)
	}
}

// WithParameterInterceptors appends interceptors to the parameter collection chain
func WithParameterInterceptors(ics ...ParameterInterceptor) Option {
	return func(o *FactoryOptions) {
		o.Parameters = append(o.Parameters, ics...)
	}
}

// WithCursorInterceptors appends interceptors to the cursor chain
func WithCursorInterceptors(ics ...CursorInterceptor) Option {
	return func(o *FactoryOptions) {
		o.Cursor = append(o.Cursor, ics...)
	}
}

// WithLogger sets the logger the factory reports its configuration to
func WithLogger(l LeveledLogger) Option {
	return func(o *FactoryOptions) {
		o.Logger = l
	}
}

// WithoutEnv makes the factory ignore the DBWRAP_DISABLE and DBWRAP_CONFIG_PATH
// environment variables
func WithoutEnv() Option {
	return func(o *FactoryOptions) {
		o.IgnoreEnv = true
	}
}

// Factory creates provider connections and wraps them with the configured
// interceptor chains. The filter sets are compiled once in NewFactory and
// shared by every wrapper the factory creates. A Factory is safe for
// concurrent use.
type Factory struct {
	build ConnectionBuilder
	f     *filters
}

// NewFactory compiles the configured interceptor lists into filter sets.
// Interceptor lists of the kinds disabled with DBWRAP_DISABLE or the file
// referenced by DBWRAP_CONFIG_PATH are discarded.
func NewFactory(build ConnectionBuilder, opts ...Option) (*Factory, error) {
	if build == nil {
		return nil, errors.New("dbwrap: connection builder is required")
	}

	o := &FactoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.Logger == nil {
		o.Logger = defaultLogger
	}

	disabled := make(disabledKinds)
	if !o.IgnoreEnv {
		disabled = readEnvConfig()
	}

	fct := &Factory{
		build: build,
		f:     compileFilters(o, disabled),
	}

	if disabled.all() {
		o.Logger.Info("interception is disabled by ", EnvDisable)
	}

	m := fct.Masks()
	o.Logger.Debug("interception masks: connection=", m.Connection, " transaction=", m.Transaction,
		" command=", m.Command, " parameters=", m.Parameters, " cursor=", m.Cursor)

	return fct, nil
}

func compileFilters(o *FactoryOptions, disabled disabledKinds) *filters {
	f := &filters{}

	f.conn = NewFilterSet(ConnectionAll, enabled(o.Connection, !disabled[KindConnection]))
	f.tx = NewFilterSet(TransactionAll, enabled(o.Transaction, !disabled[KindTransaction]))
	f.cmd = NewFilterSet(CommandAll, enabled(o.Command, !disabled[KindCommand]))
	f.params = NewFilterSet(ParameterAll, enabled(o.Parameters, !disabled[KindParameters]))
	f.cursor = NewFilterSet(CursorAll, enabled(o.Cursor, !disabled[KindCursor]))

	return f
}

func enabled[I any](ics []I, on bool) []I {
	if !on {
		return nil
	}

	return ics
}

// Masks returns the combined interception mask of each resource kind
func (fct *Factory) Masks() Masks {
	return Masks{
		Connection:  fct.f.conn.Mask(),
		Transaction: fct.f.tx.Mask(),
		Command:     fct.f.cmd.Mask(),
		Parameters:  fct.f.params.Mask(),
		Cursor:      fct.f.cursor.Mask(),
	}
}

// CreateConnection builds a new provider connection. When no operation of
// any kind is intercepted the provider connection itself is returned,
// otherwise it is wrapped.
func (fct *Factory) CreateConnection() (Connection, error) {
	conn, err := fct.build()
	if err != nil {
		return nil, err
	}

	return fct.Wrap(conn), nil
}

// Wrap applies the interceptor chains of the factory to an existing provider
// connection. Connections that are already wrapped are returned as is.
func (fct *Factory) Wrap(conn Connection) Connection {
	if conn == nil || fct.f.empty() {
		return conn
	}

	return wrapConn(conn, fct.f)
}

// WrapCommand applies the interceptor chains of the factory to a provider
// command created outside of a wrapped connection
func (fct *Factory) WrapCommand(cmd Command) Command {
	if cmd == nil || fct.f.empty() {
		return cmd
	}

	return wrapCmd(cmd, nil, fct.f)
}

// WrapCursor applies the interceptor chains of the factory to a provider cursor
func (fct *Factory) WrapCursor(cur Cursor) Cursor {
	if cur == nil || fct.f.empty() {
		return cur
	}

	return wrapCursor(cur, fct.f)
}
