// (c) Copyright IBM Corp. 2024

package sqlprovider

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// connection lifecycle events
const (
	eOpen      = "open"
	eConnected = "connected"
	eFail      = "fail"
	eExecute   = "execute"
	eIdle      = "idle"
	eClose     = "close"
)

var stateNames = map[string]dbwrap.ConnectionState{
	dbwrap.StateClosed.String():     dbwrap.StateClosed,
	dbwrap.StateConnecting.String(): dbwrap.StateConnecting,
	dbwrap.StateOpen.String():       dbwrap.StateOpen,
	dbwrap.StateExecuting.String():  dbwrap.StateExecuting,
	dbwrap.StateBroken.String():     dbwrap.StateBroken,
}

// connState tracks the lifecycle of a Connection:
//
//	closed|broken -open-> connecting -connected-> open -execute-> executing -idle-> open
//	connecting|open|executing -fail-> broken
//	* -close-> closed
type connState struct {
	m *fsm.FSM
}

func newConnState(l dbwrap.LeveledLogger) *connState {
	var (
		closed     = dbwrap.StateClosed.String()
		connecting = dbwrap.StateConnecting.String()
		open       = dbwrap.StateOpen.String()
		executing  = dbwrap.StateExecuting.String()
		broken     = dbwrap.StateBroken.String()
	)

	return &connState{
		m: fsm.NewFSM(
			closed,
			fsm.Events{
				{Name: eOpen, Src: []string{closed, broken}, Dst: connecting},
				{Name: eConnected, Src: []string{connecting}, Dst: open},
				{Name: eFail, Src: []string{connecting, open, executing}, Dst: broken},
				{Name: eExecute, Src: []string{open}, Dst: executing},
				{Name: eIdle, Src: []string{executing}, Dst: open},
				{Name: eClose, Src: []string{connecting, open, executing, broken}, Dst: closed},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					l.Debug("connection state changed from ", e.Src, " to ", e.Dst)
				},
			},
		),
	}
}

// fire triggers event. A transition that is not allowed from the current
// state is reported as an error, a no-op transition is not.
func (s *connState) fire(event string) error {
	err := s.m.Event(context.Background(), event)

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}

	return err
}

// can returns whether event is allowed in the current state
func (s *connState) can(event string) bool {
	return s.m.Can(event)
}

// current returns the current state
func (s *connState) current() dbwrap.ConnectionState {
	return stateNames[s.m.Current()]
}
