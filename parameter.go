// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"fmt"
	"iter"
	"strings"
)

// ParameterDirection tells whether a parameter is passed in, out or both
type ParameterDirection uint8

// Valid parameter directions
const (
	DirectionInput ParameterDirection = iota
	DirectionOutput
	DirectionInputOutput
	DirectionReturnValue
)

// Parameter is a value bound to a placeholder of Command.Text. An empty Name
// binds the parameter by position.
type Parameter struct {
	Name      string
	Value     any
	Direction ParameterDirection
	Size      int
	Nullable  bool
}

// NewParameter returns an input parameter
func NewParameter(name string, value any) *Parameter {
	return &Parameter{Name: name, Value: value}
}

// String returns a printable representation of the parameter
func (p *Parameter) String() string {
	if p.Name == "" {
		return fmt.Sprintf("%v", p.Value)
	}

	return fmt.Sprintf("%s=%v", p.Name, p.Value)
}

// ParameterList is a slice-backed ParameterCollection providers can use as-is.
// Names are matched case-insensitively and may carry a leading '@', ':' or '$'.
type ParameterList struct {
	items []*Parameter
}

var _ ParameterCollection = (*ParameterList)(nil)

// Add appends p and returns its index
func (l *ParameterList) Add(p *Parameter) (int, error) {
	if p == nil {
		return -1, fmt.Errorf("%w: nil parameter", ErrInvalidResource)
	}

	l.items = append(l.items, p)

	return len(l.items) - 1, nil
}

// Insert puts p at index, shifting the following parameters
func (l *ParameterList) Insert(index int, p *Parameter) error {
	if p == nil {
		return fmt.Errorf("%w: nil parameter", ErrInvalidResource)
	}

	if index < 0 || index > len(l.items) {
		return fmt.Errorf("parameter index %d out of range [0, %d]", index, len(l.items))
	}

	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = p

	return nil
}

// Remove deletes p from the list. Removing a parameter that is not in the list is an error.
func (l *ParameterList) Remove(p *Parameter) error {
	for i, item := range l.items {
		if item == p {
			return l.RemoveAt(i)
		}
	}

	return fmt.Errorf("%w: parameter %s", ErrNotFound, p)
}

// RemoveAt deletes the parameter at index
func (l *ParameterList) RemoveAt(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("parameter index %d out of range [0, %d)", index, len(l.items))
	}

	l.items = append(l.items[:index], l.items[index+1:]...)

	return nil
}

// Clear removes all parameters
func (l *ParameterList) Clear() error {
	clear(l.items)
	l.items = l.items[:0]

	return nil
}

// Len returns the number of parameters
func (l *ParameterList) Len() int {
	return len(l.items)
}

// At returns the parameter at index or nil if the index is out of range
func (l *ParameterList) At(index int) *Parameter {
	if index < 0 || index >= len(l.items) {
		return nil
	}

	return l.items[index]
}

// Lookup returns the parameter with the given name
func (l *ParameterList) Lookup(name string) (*Parameter, bool) {
	i := l.IndexOf(name)
	if i < 0 {
		return nil, false
	}

	return l.items[i], true
}

// IndexOf returns the index of the named parameter or -1
func (l *ParameterList) IndexOf(name string) int {
	name = normalizeParameterName(name)
	if name == "" {
		return -1
	}

	for i, p := range l.items {
		if normalizeParameterName(p.Name) == name {
			return i
		}
	}

	return -1
}

// Contains returns whether p is in the list
func (l *ParameterList) Contains(p *Parameter) bool {
	for _, item := range l.items {
		if item == p {
			return true
		}
	}

	return false
}

// All iterates over the parameters in order
func (l *ParameterList) All() iter.Seq2[int, *Parameter] {
	return func(yield func(int, *Parameter) bool) {
		for i, p := range l.items {
			if !yield(i, p) {
				return
			}
		}
	}
}

func normalizeParameterName(name string) string {
	return strings.ToLower(strings.TrimLeft(name, "@:$"))
}
