// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// Interceptors receive the provider resource the operation is invoked on, the
// operation arguments and a continuation that proceeds to the next interceptor
// or to the provider call. A pass-through implementation calls the
// continuation exactly once; skipping it short-circuits the operation, and
// calling it again returns ErrContinuationReused unless the interceptor is a
// Repeater. Interceptors are only invoked for the operations returned by
// Targets().
//
// Embed one of the *InterceptorBase types to implement only the operations
// an interceptor cares about.

// ConnectionInterceptor intercepts Connection operations
type ConnectionInterceptor interface {
	Targets() ConnectionOp
	Open(ctx context.Context, conn Connection, next ContextAction) error
	Close(ctx context.Context, conn Connection, next ContextAction) error
	BeginTx(ctx context.Context, conn Connection, opts TxOptions, next ContextArgFunc[TxOptions, Transaction]) (Transaction, error)
	ChangeDatabase(ctx context.Context, conn Connection, name string, next ContextArgAction[string]) error
	CreateCommand(conn Connection, next Func[Command]) (Command, error)
}

// TransactionInterceptor intercepts Transaction operations
type TransactionInterceptor interface {
	Targets() TransactionOp
	Commit(ctx context.Context, tx Transaction, next ContextAction) error
	Rollback(ctx context.Context, tx Transaction, next ContextAction) error
	Close(ctx context.Context, tx Transaction, next ContextAction) error
}

// CommandInterceptor intercepts Command operations
type CommandInterceptor interface {
	Targets() CommandOp
	ExecuteNonQuery(ctx context.Context, cmd Command, next ContextFunc[int64]) (int64, error)
	ExecuteScalar(ctx context.Context, cmd Command, next ContextFunc[any]) (any, error)
	ExecuteCursor(ctx context.Context, cmd Command, behavior CommandBehavior, next ContextArgFunc[CommandBehavior, Cursor]) (Cursor, error)
	Prepare(ctx context.Context, cmd Command, next ContextAction) error
	Cancel(cmd Command, next Action) error
	Close(ctx context.Context, cmd Command, next ContextAction) error
}

// InsertAction is the continuation shape of ParameterCollection.Insert
type InsertAction func(index int, p *Parameter) error

// ParameterInterceptor intercepts the mutating ParameterCollection operations
type ParameterInterceptor interface {
	Targets() ParameterOp
	Add(params ParameterCollection, p *Parameter, next ArgFunc[*Parameter, int]) (int, error)
	Insert(params ParameterCollection, index int, p *Parameter, next InsertAction) error
	Remove(params ParameterCollection, p *Parameter, next ArgAction[*Parameter]) error
	RemoveAt(params ParameterCollection, index int, next ArgAction[int]) error
	Clear(params ParameterCollection, next Action) error
}

// CursorInterceptor intercepts Cursor operations
type CursorInterceptor interface {
	Targets() CursorOp
	Next(ctx context.Context, cur Cursor, next ContextFunc[bool]) (bool, error)
	NextResultSet(ctx context.Context, cur Cursor, next ContextFunc[bool]) (bool, error)
	Value(cur Cursor, ordinal int, next ArgFunc[int, any]) (any, error)
	IsNull(cur Cursor, ordinal int, next ArgFunc[int, bool]) (bool, error)
	Nested(cur Cursor, ordinal int, next ArgFunc[int, Cursor]) (Cursor, error)
	Close(ctx context.Context, cur Cursor, next ContextAction) error
}

// ConnectionInterceptorBase passes every Connection operation through.
// Ops is returned by Targets().
type ConnectionInterceptorBase struct {
	Ops ConnectionOp
}

var _ ConnectionInterceptor = ConnectionInterceptorBase{}

func (b ConnectionInterceptorBase) Targets() ConnectionOp { return b.Ops }

func (ConnectionInterceptorBase) Open(ctx context.Context, _ Connection, next ContextAction) error {
	return next(ctx)
}

func (ConnectionInterceptorBase) Close(ctx context.Context, _ Connection, next ContextAction) error {
	return next(ctx)
}

func (ConnectionInterceptorBase) BeginTx(ctx context.Context, _ Connection, opts TxOptions, next ContextArgFunc[TxOptions, Transaction]) (Transaction, error) {
	return next(ctx, opts)
}

func (ConnectionInterceptorBase) ChangeDatabase(ctx context.Context, _ Connection, name string, next ContextArgAction[string]) error {
	return next(ctx, name)
}

func (ConnectionInterceptorBase) CreateCommand(_ Connection, next Func[Command]) (Command, error) {
	return next()
}

// TransactionInterceptorBase passes every Transaction operation through
type TransactionInterceptorBase struct {
	Ops TransactionOp
}

var _ TransactionInterceptor = TransactionInterceptorBase{}

func (b TransactionInterceptorBase) Targets() TransactionOp { return b.Ops }

func (TransactionInterceptorBase) Commit(ctx context.Context, _ Transaction, next ContextAction) error {
	return next(ctx)
}

func (TransactionInterceptorBase) Rollback(ctx context.Context, _ Transaction, next ContextAction) error {
	return next(ctx)
}

func (TransactionInterceptorBase) Close(ctx context.Context, _ Transaction, next ContextAction) error {
	return next(ctx)
}

// CommandInterceptorBase passes every Command operation through
type CommandInterceptorBase struct {
	Ops CommandOp
}

var _ CommandInterceptor = CommandInterceptorBase{}

func (b CommandInterceptorBase) Targets() CommandOp { return b.Ops }

func (CommandInterceptorBase) ExecuteNonQuery(ctx context.Context, _ Command, next ContextFunc[int64]) (int64, error) {
	return next(ctx)
}

func (CommandInterceptorBase) ExecuteScalar(ctx context.Context, _ Command, next ContextFunc[any]) (any, error) {
	return next(ctx)
}

func (CommandInterceptorBase) ExecuteCursor(ctx context.Context, _ Command, behavior CommandBehavior, next ContextArgFunc[CommandBehavior, Cursor]) (Cursor, error) {
	return next(ctx, behavior)
}

func (CommandInterceptorBase) Prepare(ctx context.Context, _ Command, next ContextAction) error {
	return next(ctx)
}

func (CommandInterceptorBase) Cancel(_ Command, next Action) error {
	return next()
}

func (CommandInterceptorBase) Close(ctx context.Context, _ Command, next ContextAction) error {
	return next(ctx)
}

// ParameterInterceptorBase passes every ParameterCollection operation through
type ParameterInterceptorBase struct {
	Ops ParameterOp
}

var _ ParameterInterceptor = ParameterInterceptorBase{}

func (b ParameterInterceptorBase) Targets() ParameterOp { return b.Ops }

func (ParameterInterceptorBase) Add(_ ParameterCollection, p *Parameter, next ArgFunc[*Parameter, int]) (int, error) {
	return next(p)
}

func (ParameterInterceptorBase) Insert(_ ParameterCollection, index int, p *Parameter, next InsertAction) error {
	return next(index, p)
}

func (ParameterInterceptorBase) Remove(_ ParameterCollection, p *Parameter, next ArgAction[*Parameter]) error {
	return next(p)
}

func (ParameterInterceptorBase) RemoveAt(_ ParameterCollection, index int, next ArgAction[int]) error {
	return next(index)
}

func (ParameterInterceptorBase) Clear(_ ParameterCollection, next Action) error {
	return next()
}

// CursorInterceptorBase passes every Cursor operation through
type CursorInterceptorBase struct {
	Ops CursorOp
}

var _ CursorInterceptor = CursorInterceptorBase{}

func (b CursorInterceptorBase) Targets() CursorOp { return b.Ops }

func (CursorInterceptorBase) Next(ctx context.Context, _ Cursor, next ContextFunc[bool]) (bool, error) {
	return next(ctx)
}

func (CursorInterceptorBase) NextResultSet(ctx context.Context, _ Cursor, next ContextFunc[bool]) (bool, error) {
	return next(ctx)
}

func (CursorInterceptorBase) Value(_ Cursor, ordinal int, next ArgFunc[int, any]) (any, error) {
	return next(ordinal)
}

func (CursorInterceptorBase) IsNull(_ Cursor, ordinal int, next ArgFunc[int, bool]) (bool, error) {
	return next(ordinal)
}

func (CursorInterceptorBase) Nested(_ Cursor, ordinal int, next ArgFunc[int, Cursor]) (Cursor, error) {
	return next(ordinal)
}

func (CursorInterceptorBase) Close(ctx context.Context, _ Cursor, next ContextAction) error {
	return next(ctx)
}
