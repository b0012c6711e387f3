// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"gopkg.in/yaml.v3"
)

// ErrInjected is wrapped by every error returned by FaultInjector
var ErrInjected = errors.New("injected fault")

// Fault describes an error or a delay injected into an operation. A fault with
// neither Error nor Delay set is ignored.
//
//	faults:
//	  - kind: command
//	    operation: ExecuteNonQuery
//	    match: "UPDATE accounts"
//	    error: deadlock detected
//	    probability: 0.1
//	  - kind: connection
//	    operation: Open
//	    delay: 250ms
//	    times: 1
type Fault struct {
	// Kind is one of "connection", "transaction" or "command"
	Kind string `yaml:"kind"`
	// Operation is an operation name such as "Open" or "ExecuteScalar", "*" or empty for all
	Operation string `yaml:"operation"`
	// Match restricts command faults to texts containing it
	Match string        `yaml:"match"`
	Error string        `yaml:"error"`
	Delay time.Duration `yaml:"delay"`
	// Probability of the fault applying to a matching call, 0 means always
	Probability float64 `yaml:"probability"`
	// Times limits how many times the fault applies, 0 means no limit
	Times int `yaml:"times"`
}

// FaultPlan is the YAML document loaded by LoadFaultPlan
type FaultPlan struct {
	Faults []Fault `yaml:"faults"`
}

// ParseFaultPlan decodes a YAML fault plan
func ParseFaultPlan(data []byte) (FaultPlan, error) {
	var plan FaultPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return FaultPlan{}, fmt.Errorf("faults: %w", err)
	}

	for i, f := range plan.Faults {
		switch dbwrap.ResourceKind(f.Kind) {
		case dbwrap.KindConnection, dbwrap.KindTransaction, dbwrap.KindCommand:
		default:
			return FaultPlan{}, fmt.Errorf("faults: fault %d: unsupported kind %q", i, f.Kind)
		}

		if f.Probability < 0 || f.Probability > 1 {
			return FaultPlan{}, fmt.Errorf("faults: fault %d: probability %v is out of [0, 1]", i, f.Probability)
		}
	}

	return plan, nil
}

// LoadFaultPlan reads a YAML fault plan from path
func LoadFaultPlan(path string) (FaultPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FaultPlan{}, fmt.Errorf("faults: %w", err)
	}

	return ParseFaultPlan(data)
}

type faultState struct {
	Fault

	applied int
}

// FaultInjector makes intercepted operations fail or slow down according to a
// FaultPlan. It is meant for resilience tests and is safe for concurrent use.
type FaultInjector struct {
	mu     sync.Mutex
	faults []*faultState
	rand   func() float64
	logger dbwrap.LeveledLogger
}

// NewFaultInjector returns a FaultInjector applying plan
func NewFaultInjector(plan FaultPlan) *FaultInjector {
	fi := &FaultInjector{
		rand:   rand.Float64,
		logger: dbwrap.DefaultLogger(),
	}

	for _, f := range plan.Faults {
		if f.Error == "" && f.Delay <= 0 {
			continue
		}

		fi.faults = append(fi.faults, &faultState{Fault: f})
	}

	return fi
}

// pick returns the first fault applying to the call, if any
func (fi *FaultInjector) pick(kind, op, text string) (Fault, bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	for _, f := range fi.faults {
		if f.Kind != kind || (f.Operation != "" && f.Operation != "*" && !strings.EqualFold(f.Operation, op)) {
			continue
		}

		if f.Match != "" && !strings.Contains(text, f.Match) {
			continue
		}

		if f.Times > 0 && f.applied >= f.Times {
			continue
		}

		if f.Probability > 0 && fi.rand() >= f.Probability {
			continue
		}

		f.applied++

		return f.Fault, true
	}

	return Fault{}, false
}

// inject applies the fault picked for the call. A non-nil error means the
// operation must not proceed.
func (fi *FaultInjector) inject(ctx context.Context, kind, op, text string) error {
	f, ok := fi.pick(kind, op, text)
	if !ok {
		return nil
	}

	fi.logger.Debug("faults: injecting into ", kind, ".", op, ": delay=", f.Delay, " error=", f.Error)

	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if f.Error != "" {
		return fmt.Errorf("%w: %s", ErrInjected, f.Error)
	}

	return nil
}

// targets returns the operations of all that at least one fault of kind applies to
func targets[O dbwrap.Op](fi *FaultInjector, kind string, all O) O {
	var mask O
	for _, f := range fi.faults {
		if f.Kind != kind {
			continue
		}

		if f.Operation == "" || f.Operation == "*" {
			return all
		}

		op, err := dbwrap.ParseOp(all, f.Operation)
		if err != nil {
			fi.logger.Warn("faults: ignoring unknown ", kind, " operation ", f.Operation)
			continue
		}

		mask |= op
	}

	return mask
}

// Connection returns the interceptor injecting faults into Open, BeginTx and ChangeDatabase
func (fi *FaultInjector) Connection() dbwrap.ConnectionInterceptor {
	return faultConn{
		ConnectionInterceptorBase: dbwrap.ConnectionInterceptorBase{
			Ops: targets(fi, kindConnection, dbwrap.ConnectionOpen|dbwrap.ConnectionBeginTx|dbwrap.ConnectionChangeDatabase),
		},
		fi: fi,
	}
}

// Transaction returns the interceptor injecting faults into Commit and Rollback
func (fi *FaultInjector) Transaction() dbwrap.TransactionInterceptor {
	return faultTx{
		TransactionInterceptorBase: dbwrap.TransactionInterceptorBase{
			Ops: targets(fi, kindTransaction, dbwrap.TransactionCommit|dbwrap.TransactionRollback),
		},
		fi: fi,
	}
}

// Command returns the interceptor injecting faults into command executions and Prepare
func (fi *FaultInjector) Command() dbwrap.CommandInterceptor {
	return faultCmd{
		CommandInterceptorBase: dbwrap.CommandInterceptorBase{
			Ops: targets(fi, kindCommand, dbwrap.CommandExecuteNonQuery|dbwrap.CommandExecuteScalar|
				dbwrap.CommandExecuteCursor|dbwrap.CommandPrepare),
		},
		fi: fi,
	}
}

// Options returns the factory options registering the fault interceptors
func (fi *FaultInjector) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithConnectionInterceptors(fi.Connection()),
		dbwrap.WithTransactionInterceptors(fi.Transaction()),
		dbwrap.WithCommandInterceptors(fi.Command()),
	}
}

type faultConn struct {
	dbwrap.ConnectionInterceptorBase

	fi *FaultInjector
}

func (ic faultConn) Open(ctx context.Context, _ dbwrap.Connection, next dbwrap.ContextAction) error {
	if err := ic.fi.inject(ctx, kindConnection, "Open", ""); err != nil {
		return err
	}

	return next(ctx)
}

func (ic faultConn) BeginTx(ctx context.Context, _ dbwrap.Connection, opts dbwrap.TxOptions, next dbwrap.ContextArgFunc[dbwrap.TxOptions, dbwrap.Transaction]) (dbwrap.Transaction, error) {
	if err := ic.fi.inject(ctx, kindConnection, "BeginTx", ""); err != nil {
		return nil, err
	}

	return next(ctx, opts)
}

func (ic faultConn) ChangeDatabase(ctx context.Context, _ dbwrap.Connection, name string, next dbwrap.ContextArgAction[string]) error {
	if err := ic.fi.inject(ctx, kindConnection, "ChangeDatabase", name); err != nil {
		return err
	}

	return next(ctx, name)
}

type faultTx struct {
	dbwrap.TransactionInterceptorBase

	fi *FaultInjector
}

func (ic faultTx) Commit(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	if err := ic.fi.inject(ctx, kindTransaction, "Commit", ""); err != nil {
		return err
	}

	return next(ctx)
}

func (ic faultTx) Rollback(ctx context.Context, _ dbwrap.Transaction, next dbwrap.ContextAction) error {
	if err := ic.fi.inject(ctx, kindTransaction, "Rollback", ""); err != nil {
		return err
	}

	return next(ctx)
}

type faultCmd struct {
	dbwrap.CommandInterceptorBase

	fi *FaultInjector
}

func (ic faultCmd) ExecuteNonQuery(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[int64]) (int64, error) {
	if err := ic.fi.inject(ctx, kindCommand, "ExecuteNonQuery", cmd.Text()); err != nil {
		return 0, err
	}

	return next(ctx)
}

func (ic faultCmd) ExecuteScalar(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextFunc[any]) (any, error) {
	if err := ic.fi.inject(ctx, kindCommand, "ExecuteScalar", cmd.Text()); err != nil {
		return nil, err
	}

	return next(ctx)
}

func (ic faultCmd) ExecuteCursor(ctx context.Context, cmd dbwrap.Command, behavior dbwrap.CommandBehavior, next dbwrap.ContextArgFunc[dbwrap.CommandBehavior, dbwrap.Cursor]) (dbwrap.Cursor, error) {
	if err := ic.fi.inject(ctx, kindCommand, "ExecuteCursor", cmd.Text()); err != nil {
		return nil, err
	}

	return next(ctx, behavior)
}

func (ic faultCmd) Prepare(ctx context.Context, cmd dbwrap.Command, next dbwrap.ContextAction) error {
	if err := ic.fi.inject(ctx, kindCommand, "Prepare", cmd.Text()); err != nil {
		return err
	}

	return next(ctx)
}
