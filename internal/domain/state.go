package domain

import (
	"fmt"
	"sort"
	"strings"
)

// State is the lifecycle state stored on an active record.
type State string

const (
	StatePending   State = "PENDIENTE"
	StateApproved  State = "APROBADO"
	StateReprint   State = "REIMPRESION"
	StatePrinted   State = "IMPRESO"
	StateInProcess State = "EN_PROCESO"
	StateReady     State = "LISTO"
	StateDelivered State = "ENTREGADO"
)

// Virtual filter names. They never appear as a stored state value.
const (
	FilterInQueue = "EN_COLA"
	FilterAll     = "TODOS"
)

// States lists every stored state in forward lifecycle order.
var States = []State{
	StatePending,
	StateApproved,
	StateReprint,
	StatePrinted,
	StateInProcess,
	StateReady,
	StateDelivered,
}

func (s State) Valid() bool {
	return s.rank() >= 0
}

func (s State) rank() int {
	for i, st := range States {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseState parses a single stored state (case-insensitive).
func ParseState(s string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}

// StateSet is a set of states kept in lifecycle order. A nil or empty set
// means "no state restriction".
type StateSet []State

// NewStateSet de-duplicates and orders the given states.
func NewStateSet(states ...State) StateSet {
	seen := make(map[State]struct{}, len(states))
	out := make(StateSet, 0, len(states))
	for _, s := range states {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// QueueStates is the EN_COLA bucket: records waiting for the print run.
func QueueStates() StateSet {
	return StateSet{StateApproved, StateReprint}
}

func (ss StateSet) Contains(s State) bool {
	for _, st := range ss {
		if st == s {
			return true
		}
	}
	return false
}

// Matches is Contains with the empty-set-matches-everything rule applied.
func (ss StateSet) Matches(s State) bool {
	return len(ss) == 0 || ss.Contains(s)
}

// SubsetOf reports whether every state in ss is also in other.
func (ss StateSet) SubsetOf(other StateSet) bool {
	for _, s := range ss {
		if !other.Contains(s) {
			return false
		}
	}
	return true
}

func (ss StateSet) Strings() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (ss StateSet) String() string {
	return strings.Join(ss.Strings(), ",")
}

// ParseStateFilter parses an operator-facing filter expression: "" or TODOS
// (no restriction), EN_COLA (the print queue), or a comma separated list of
// stored states and/or EN_COLA.
func ParseStateFilter(expr string) (StateSet, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, FilterAll) {
		return nil, nil
	}
	var states []State
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, FilterInQueue) {
			states = append(states, QueueStates()...)
			continue
		}
		st, err := ParseState(part)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return NewStateSet(states...), nil
}

// StateCounts holds per-state totals for one collection.
type StateCounts map[State]int

// InQueue is the size of the virtual EN_COLA bucket.
func (c StateCounts) InQueue() int {
	return c[StateApproved] + c[StateReprint]
}

func (c StateCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
