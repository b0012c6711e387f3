// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"context"
	"iter"
	"time"
)

// ConnectionState describes the lifecycle state of a Connection
type ConnectionState uint8

// Valid connection states
const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
	StateExecuting
	StateBroken
)

// String returns the state name
func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateExecuting:
		return "executing"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// IsolationLevel is the transaction isolation level requested in TxOptions
type IsolationLevel int

// Isolation levels, in the same order as database/sql.IsolationLevel
const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelWriteCommitted
	LevelRepeatableRead
	LevelSnapshot
	LevelSerializable
	LevelLinearizable
)

// TxOptions holds the options used to begin a Transaction
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// CommandType tells the provider how to interpret Command.Text
type CommandType uint8

// Valid command types
const (
	CommandText CommandType = iota
	CommandStoredProcedure
	CommandTableDirect
)

// CommandBehavior is a set of hints passed to Command.ExecuteCursor
type CommandBehavior uint16

// Command behavior flags
const (
	BehaviorDefault         CommandBehavior = 0
	BehaviorSingleResult    CommandBehavior = 1 << 0
	BehaviorSchemaOnly      CommandBehavior = 1 << 1
	BehaviorKeyInfo         CommandBehavior = 1 << 2
	BehaviorSingleRow       CommandBehavior = 1 << 3
	BehaviorSequential      CommandBehavior = 1 << 4
	BehaviorCloseConnection CommandBehavior = 1 << 5
)

// Has returns whether all flags of other are set
func (b CommandBehavior) Has(other CommandBehavior) bool {
	return b&other == other
}

// Connection is a stateful session with a data source
type Connection interface {
	Open() error
	OpenContext(ctx context.Context) error
	Close() error
	CloseContext(ctx context.Context) error

	BeginTx(opts TxOptions) (Transaction, error)
	BeginTxContext(ctx context.Context, opts TxOptions) (Transaction, error)

	ChangeDatabase(name string) error
	ChangeDatabaseContext(ctx context.Context, name string) error

	CreateCommand() (Command, error)

	ConnectionString() string
	SetConnectionString(s string)
	Database() string
	DataSource() string
	ServerVersion() string
	State() ConnectionState
}

// Transaction is a unit of work started by Connection.BeginTx. Close releases
// the transaction, rolling it back if it is still pending.
type Transaction interface {
	Commit() error
	CommitContext(ctx context.Context) error
	Rollback() error
	RollbackContext(ctx context.Context) error
	Close() error

	Connection() Connection
	IsolationLevel() IsolationLevel
}

// Command is a statement executed against a Connection
type Command interface {
	ExecuteNonQuery() (int64, error)
	ExecuteNonQueryContext(ctx context.Context) (int64, error)
	ExecuteScalar() (any, error)
	ExecuteScalarContext(ctx context.Context) (any, error)
	ExecuteCursor(behavior CommandBehavior) (Cursor, error)
	ExecuteCursorContext(ctx context.Context, behavior CommandBehavior) (Cursor, error)
	Prepare() error
	PrepareContext(ctx context.Context) error

	// Cancel makes a best-effort attempt to abort an in-flight execution.
	// It may be called from another goroutine.
	Cancel() error
	Close() error

	Text() string
	SetText(text string)
	Type() CommandType
	SetType(t CommandType)
	Timeout() time.Duration
	SetTimeout(d time.Duration)
	Parameters() ParameterCollection

	Connection() Connection
	SetConnection(conn Connection) error
	Transaction() Transaction
	SetTransaction(tx Transaction) error
}

// ParameterCollection is the ordered set of parameters bound to a Command
type ParameterCollection interface {
	Add(p *Parameter) (int, error)
	Insert(index int, p *Parameter) error
	Remove(p *Parameter) error
	RemoveAt(index int) error
	Clear() error

	Len() int
	At(index int) *Parameter
	Lookup(name string) (*Parameter, bool)
	IndexOf(name string) int
	Contains(p *Parameter) bool
	All() iter.Seq2[int, *Parameter]
}

// Cursor is a forward-only reader over the result sets of a Command
type Cursor interface {
	Next() (bool, error)
	NextContext(ctx context.Context) (bool, error)
	NextResultSet() (bool, error)
	NextResultSetContext(ctx context.Context) (bool, error)

	Value(ordinal int) (any, error)
	IsNull(ordinal int) (bool, error)
	// Nested returns the cursor stored in a column of the current row
	Nested(ordinal int) (Cursor, error)

	Close() error
	CloseContext(ctx context.Context) error

	Columns() []string
	FieldCount() int
	Ordinal(name string) (int, error)
	HasRows() bool
	RecordsAffected() int64
	IsClosed() bool
	Depth() int
}
