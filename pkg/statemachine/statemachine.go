// Package statemachine provides a small, immutable transition table for
// lifecycle states that live in a database row rather than in memory.
// Callers load the current state, ask the table for the target state of
// an event, and persist the result themselves.
package statemachine

import (
	"errors"
	"fmt"
)

// ErrNoTransitionAvailable is matched by every *TransitionError.
var ErrNoTransitionAvailable = errors.New("statemachine: no transition available")

// TransitionError describes a rejected (from, event) pair.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.From, e.Event)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrNoTransitionAvailable
}

type edge[S, E comparable] struct {
	from  S
	event E
}

// Table maps (state, event) to the next state.
type Table[S, E comparable] struct {
	next map[edge[S, E]]S
}

// Transition is one row of a Table.
type Transition[S, E comparable] struct {
	From  S
	Event E
	To    S
}

// New builds a table. A duplicated (from, event) pair panics.
func New[S, E comparable](rows ...Transition[S, E]) *Table[S, E] {
	t := &Table[S, E]{next: make(map[edge[S, E]]S, len(rows))}
	for _, r := range rows {
		k := edge[S, E]{r.From, r.Event}
		if _, dup := t.next[k]; dup {
			panic(fmt.Sprintf("statemachine: duplicate transition from %v on %v", r.From, r.Event))
		}
		t.next[k] = r.To
	}
	return t
}

// Next returns the target state for event fired in from.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	to, ok := t.next[edge[S, E]{from, event}]
	if !ok {
		return to, &TransitionError{From: fmt.Sprint(from), Event: fmt.Sprint(event)}
	}
	return to, nil
}

// Can reports whether event is accepted in from.
func (t *Table[S, E]) Can(from S, event E) bool {
	_, ok := t.next[edge[S, E]{from, event}]
	return ok
}
