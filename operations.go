// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"fmt"
	"math/bits"
	"strings"
)

// Op is the set of per-kind operation flag types
type Op interface {
	~uint32
	String() string
}

// ConnectionOp is a set of interceptable Connection operations
type ConnectionOp uint32

// Connection operations. A flag covers both the sync and the context-aware form.
const (
	ConnectionOpen ConnectionOp = 1 << iota
	ConnectionClose
	ConnectionBeginTx
	ConnectionChangeDatabase
	ConnectionCreateCommand

	ConnectionNone ConnectionOp = 0
	ConnectionAll               = ConnectionOpen | ConnectionClose | ConnectionBeginTx |
		ConnectionChangeDatabase | ConnectionCreateCommand
)

var connectionOpNames = []string{"Open", "Close", "BeginTx", "ChangeDatabase", "CreateCommand"}

// Has returns whether all operations of other are in the set
func (o ConnectionOp) Has(other ConnectionOp) bool { return o&other == other }

// String returns the operation names joined by '|'
func (o ConnectionOp) String() string { return opString(uint32(o), connectionOpNames) }

// TransactionOp is a set of interceptable Transaction operations
type TransactionOp uint32

// Transaction operations
const (
	TransactionCommit TransactionOp = 1 << iota
	TransactionRollback
	TransactionClose

	TransactionNone TransactionOp = 0
	TransactionAll                = TransactionCommit | TransactionRollback | TransactionClose
)

var transactionOpNames = []string{"Commit", "Rollback", "Close"}

// Has returns whether all operations of other are in the set
func (o TransactionOp) Has(other TransactionOp) bool { return o&other == other }

// String returns the operation names joined by '|'
func (o TransactionOp) String() string { return opString(uint32(o), transactionOpNames) }

// CommandOp is a set of interceptable Command operations
type CommandOp uint32

// Command operations
const (
	CommandExecuteNonQuery CommandOp = 1 << iota
	CommandExecuteScalar
	CommandExecuteCursor
	CommandPrepare
	CommandCancel
	CommandClose

	CommandNone CommandOp = 0
	CommandAll            = CommandExecuteNonQuery | CommandExecuteScalar | CommandExecuteCursor |
		CommandPrepare | CommandCancel | CommandClose
)

var commandOpNames = []string{"ExecuteNonQuery", "ExecuteScalar", "ExecuteCursor", "Prepare", "Cancel", "Close"}

// Has returns whether all operations of other are in the set
func (o CommandOp) Has(other CommandOp) bool { return o&other == other }

// String returns the operation names joined by '|'
func (o CommandOp) String() string { return opString(uint32(o), commandOpNames) }

// ParameterOp is a set of interceptable ParameterCollection operations
type ParameterOp uint32

// Parameter collection operations. Read-only members are never intercepted.
const (
	ParameterAdd ParameterOp = 1 << iota
	ParameterInsert
	ParameterRemove
	ParameterRemoveAt
	ParameterClear

	ParameterNone ParameterOp = 0
	ParameterAll              = ParameterAdd | ParameterInsert | ParameterRemove | ParameterRemoveAt | ParameterClear
)

var parameterOpNames = []string{"Add", "Insert", "Remove", "RemoveAt", "Clear"}

// Has returns whether all operations of other are in the set
func (o ParameterOp) Has(other ParameterOp) bool { return o&other == other }

// String returns the operation names joined by '|'
func (o ParameterOp) String() string { return opString(uint32(o), parameterOpNames) }

// CursorOp is a set of interceptable Cursor operations
type CursorOp uint32

// Cursor operations
const (
	CursorNext CursorOp = 1 << iota
	CursorNextResultSet
	CursorValue
	CursorIsNull
	CursorNested
	CursorClose

	CursorNone CursorOp = 0
	CursorAll           = CursorNext | CursorNextResultSet | CursorValue | CursorIsNull | CursorNested | CursorClose
)

var cursorOpNames = []string{"Next", "NextResultSet", "Value", "IsNull", "Nested", "Close"}

// Has returns whether all operations of other are in the set
func (o CursorOp) Has(other CursorOp) bool { return o&other == other }

// String returns the operation names joined by '|'
func (o CursorOp) String() string { return opString(uint32(o), cursorOpNames) }

func opString(mask uint32, names []string) string {
	if mask == 0 {
		return "None"
	}

	var parts []string
	for mask != 0 {
		i := bits.TrailingZeros32(mask)
		mask &^= 1 << i

		if i < len(names) {
			parts = append(parts, names[i])
		} else {
			parts = append(parts, "Unknown")
		}
	}

	return strings.Join(parts, "|")
}

// ParseOp parses a '|' or ',' separated list of operation names of the kind
// whose full set is all, e.g. "Open|BeginTx". "All" and "None" are accepted
// as well. Names are matched case-insensitively.
func ParseOp[O Op](all O, s string) (O, error) {
	var mask O
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.TrimSpace(name)

		switch {
		case name == "":
			continue
		case strings.EqualFold(name, "all"):
			mask |= all
			continue
		case strings.EqualFold(name, "none"):
			continue
		}

		op, ok := lookupOp(all, name)
		if !ok {
			return 0, fmt.Errorf("%w: operation %q", ErrNotFound, name)
		}

		mask |= op
	}

	return mask, nil
}

func lookupOp[O Op](all O, name string) (O, bool) {
	for rest := uint32(all); rest != 0; {
		bit := O(1) << bits.TrailingZeros32(rest)
		rest &^= uint32(bit)

		if strings.EqualFold(bit.String(), name) {
			return bit, true
		}
	}

	return 0, false
}
