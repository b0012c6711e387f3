// (c) Copyright IBM Corp. 2024

package dbwrap

import "math/bits"

// Targeter is the part of every interceptor contract that declares the
// operations the interceptor takes part in
type Targeter[O Op] interface {
	Targets() O
}

// FilterSet holds, for every operation flag of one resource kind, the ordered
// interceptors whose targets include that flag. It is immutable once built
// and shared by all wrappers created by the same Factory.
type FilterSet[O Op, I Targeter[O]] struct {
	byOp [32][]I
	mask O
}

// NewFilterSet compiles interceptors into a FilterSet. Only flags set in all
// are considered, list order is kept and nil entries are skipped.
func NewFilterSet[O Op, I Targeter[O]](all O, interceptors []I) *FilterSet[O, I] {
	s := &FilterSet[O, I]{}

	active := make([]I, 0, len(interceptors))
	targets := make([]O, 0, len(interceptors))
	for _, ic := range interceptors {
		if any(ic) == nil {
			continue
		}

		t := ic.Targets() & all
		if t == 0 {
			continue
		}

		active = append(active, ic)
		targets = append(targets, t)
		s.mask |= t
	}

	for bit := 0; bit < len(s.byOp); bit++ {
		op := O(1) << bit
		if s.mask&op == 0 {
			continue
		}

		var selected []I
		for i, ic := range active {
			if targets[i]&op != 0 {
				selected = append(selected, ic)
			}
		}

		s.byOp[bit] = selected
	}

	return s
}

// For returns the interceptors taking part in op, outermost first. op must be
// a single flag, any other value yields an empty result.
func (s *FilterSet[O, I]) For(op O) []I {
	if s == nil || op == 0 || op&(op-1) != 0 {
		return nil
	}

	return s.byOp[bits.TrailingZeros32(uint32(op))]
}

// Mask returns the union of the targets of all interceptors in the set
func (s *FilterSet[O, I]) Mask() O {
	if s == nil {
		return 0
	}

	return s.mask
}

// Len returns the number of interceptors taking part in op
func (s *FilterSet[O, I]) Len(op O) int {
	return len(s.For(op))
}

// filters bundles the FilterSet of each resource kind
type filters struct {
	conn   *FilterSet[ConnectionOp, ConnectionInterceptor]
	tx     *FilterSet[TransactionOp, TransactionInterceptor]
	cmd    *FilterSet[CommandOp, CommandInterceptor]
	params *FilterSet[ParameterOp, ParameterInterceptor]
	cursor *FilterSet[CursorOp, CursorInterceptor]
}

func (f *filters) empty() bool {
	return f.conn.Mask() == 0 &&
		f.tx.Mask() == 0 &&
		f.cmd.Mask() == 0 &&
		f.params.Mask() == 0 &&
		f.cursor.Mask() == 0
}
