// (c) Copyright IBM Corp. 2024

// Package sqlprovider implements the dbwrap resource contracts on top of any
// database/sql/driver driver, so that registered drivers such as
// github.com/lib/pq or github.com/jackc/pgx/v5/stdlib can be wrapped with
// interceptors.
package sqlprovider

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// ErrNotSupported is returned for operations the underlying driver does not implement
var ErrNotSupported = errors.New("sqlprovider: operation is not supported by the driver")

// ErrNotOpen is returned by operations that require an open connection
var ErrNotOpen = errors.New("sqlprovider: connection is not open")

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the logger used to report state changes and swallowed errors
func WithLogger(l dbwrap.LeveledLogger) Option {
	return func(c *Connection) {
		c.logger = l
	}
}

// WithChangeDatabase sets the statement executed by ChangeDatabase. The format
// receives the database name, e.g. "USE %s" for MySQL or SQL Server. Without
// it ChangeDatabase returns ErrNotSupported.
func WithChangeDatabase(format string) Option {
	return func(c *Connection) {
		c.changeDatabase = format
	}
}

// WithNamedParameters passes parameter names to the driver. Drivers that only
// support positional placeholders, such as github.com/lib/pq, reject them.
func WithNamedParameters() Option {
	return func(c *Connection) {
		c.named = true
	}
}

// WithServerVersion sets the server version reported by ServerVersion
func WithServerVersion(version string) Option {
	return func(c *Connection) {
		c.version = version
	}
}

// Connection is a dbwrap.Connection over a driver.Conn. It is not safe for
// concurrent use, except for Command.Cancel.
type Connection struct {
	drv            driver.Driver
	connector      driver.Connector
	details        ConnDetails
	dsn            string
	database       string
	version        string
	changeDatabase string
	named          bool

	conn   driver.Conn
	state  *connState
	logger dbwrap.LeveledLogger
}

var _ dbwrap.Connection = (*Connection)(nil)

// Open returns a closed connection to the data source named by dsn using the
// driver registered as driverName with database/sql
func Open(driverName, dsn string, opts ...Option) (*Connection, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlprovider: %w", err)
	}

	drv := db.Driver()
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("sqlprovider: %w", err)
	}

	c := newConnection(dsn, opts)
	c.drv = drv

	return c, nil
}

// New returns a closed connection that obtains its driver.Conn from connector
func New(connector driver.Connector, opts ...Option) *Connection {
	c := newConnection("", opts)
	c.connector = connector
	c.drv = connector.Driver()

	return c
}

// Builder returns a dbwrap.ConnectionBuilder opening connections with Open
func Builder(driverName, dsn string, opts ...Option) dbwrap.ConnectionBuilder {
	return func() (dbwrap.Connection, error) {
		return Open(driverName, dsn, opts...)
	}
}

func newConnection(dsn string, opts []Option) *Connection {
	c := &Connection{}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = dbwrap.DefaultLogger()
	}

	c.state = newConnState(c.logger)
	c.setDSN(dsn)

	return c
}

func (c *Connection) setDSN(dsn string) {
	c.dsn = dsn
	c.details = ParseConnDetails(dsn)
	c.database = c.details.Schema
}

func (c *Connection) connectorFor() (driver.Connector, error) {
	if c.connector != nil {
		return c.connector, nil
	}

	if dc, ok := c.drv.(driver.DriverContext); ok {
		return dc.OpenConnector(c.dsn)
	}

	return dsnConnector{dsn: c.dsn, driver: c.drv}, nil
}

func (c *Connection) Open() error {
	return c.OpenContext(context.Background())
}

func (c *Connection) OpenContext(ctx context.Context) error {
	if !c.state.can(eOpen) {
		return fmt.Errorf("sqlprovider: cannot open a connection in state %s", c.state.current())
	}

	if err := c.state.fire(eOpen); err != nil {
		return err
	}

	connector, err := c.connectorFor()
	if err != nil {
		c.fail()
		return err
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		c.fail()
		return err
	}

	c.conn = conn

	return c.state.fire(eConnected)
}

func (c *Connection) fail() {
	if err := c.state.fire(eFail); err != nil {
		c.logger.Debug("failed to mark connection as broken: ", err)
	}
}

func (c *Connection) Close() error {
	return c.CloseContext(context.Background())
}

// CloseContext closes the driver connection. Closing a closed connection is a no-op.
func (c *Connection) CloseContext(ctx context.Context) error {
	if c.state.current() == dbwrap.StateClosed {
		return nil
	}

	var err error
	if c.conn != nil {
		err = dbwrap.CompleteSyncAction(ctx, nil, c.conn.Close)
		c.conn = nil
	}

	if ferr := c.state.fire(eClose); ferr != nil && err == nil {
		err = ferr
	}

	return err
}

func (c *Connection) open() (driver.Conn, error) {
	if c.conn == nil {
		return nil, ErrNotOpen
	}

	switch c.state.current() {
	case dbwrap.StateOpen, dbwrap.StateExecuting:
		return c.conn, nil
	default:
		return nil, ErrNotOpen
	}
}

func (c *Connection) BeginTx(opts dbwrap.TxOptions) (dbwrap.Transaction, error) {
	return c.BeginTxContext(context.Background(), opts)
}

func (c *Connection) BeginTxContext(ctx context.Context, opts dbwrap.TxOptions) (dbwrap.Transaction, error) {
	conn, err := c.open()
	if err != nil {
		return nil, err
	}

	var tx driver.Tx
	if cb, ok := conn.(driver.ConnBeginTx); ok {
		tx, err = cb.BeginTx(ctx, driver.TxOptions{
			Isolation: driver.IsolationLevel(opts.Isolation),
			ReadOnly:  opts.ReadOnly,
		})
	} else {
		if opts.Isolation != dbwrap.LevelDefault || opts.ReadOnly {
			return nil, fmt.Errorf("%w: transaction options", ErrNotSupported)
		}

		tx, err = dbwrap.CompleteSync(ctx, nil, conn.Begin) //nolint:staticcheck
	}

	if err != nil {
		c.checkBadConn(err)
		return nil, err
	}

	return &Transaction{conn: c, tx: tx, isolation: opts.Isolation}, nil
}

func (c *Connection) ChangeDatabase(name string) error {
	return c.ChangeDatabaseContext(context.Background(), name)
}

// ChangeDatabaseContext executes the statement configured with WithChangeDatabase
func (c *Connection) ChangeDatabaseContext(ctx context.Context, name string) error {
	if c.changeDatabase == "" {
		return fmt.Errorf("%w: change database", ErrNotSupported)
	}

	if name == "" {
		return errors.New("sqlprovider: database name is empty")
	}

	cmd := &Command{conn: c, params: &dbwrap.ParameterList{}, text: fmt.Sprintf(c.changeDatabase, name)}
	if _, err := cmd.ExecuteNonQueryContext(ctx); err != nil {
		return err
	}

	c.database = name

	return nil
}

func (c *Connection) CreateCommand() (dbwrap.Command, error) {
	return &Command{conn: c, params: &dbwrap.ParameterList{}}, nil
}

// ConnectionString returns the connection string with the password removed
func (c *Connection) ConnectionString() string {
	return c.details.RawString
}

// SetConnectionString changes the data source used by the next Open
func (c *Connection) SetConnectionString(s string) {
	c.setDSN(s)
}

func (c *Connection) Database() string {
	return c.database
}

func (c *Connection) DataSource() string {
	return c.details.DataSource()
}

func (c *Connection) ServerVersion() string {
	return c.version
}

func (c *Connection) State() dbwrap.ConnectionState {
	return c.state.current()
}

// Details returns the data source details parsed from the connection string
func (c *Connection) Details() ConnDetails {
	return c.details
}

// Driver returns the driver the connection uses
func (c *Connection) Driver() driver.Driver {
	return c.drv
}

// Raw returns the underlying driver connection, nil if the connection is not open
func (c *Connection) Raw() driver.Conn {
	return c.conn
}

// checkBadConn marks the connection broken if err reports a bad driver connection
func (c *Connection) checkBadConn(err error) {
	if errors.Is(err, driver.ErrBadConn) {
		c.fail()
	}
}

// dsnConnector is a driver.Connector for drivers that do not implement driver.DriverContext
type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (t dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	return t.driver.Open(t.dsn)
}

func (t dsnConnector) Driver() driver.Driver {
	return t.driver
}

// Ping verifies that the driver connection is still alive. Drivers that do not
// implement driver.Pinger are assumed to be alive while the connection is open.
func (c *Connection) Ping(ctx context.Context) error {
	conn, err := c.open()
	if err != nil {
		return err
	}

	pinger, ok := conn.(driver.Pinger)
	if !ok {
		return nil
	}

	err = pinger.Ping(ctx)
	c.checkBadConn(err)

	return err
}
