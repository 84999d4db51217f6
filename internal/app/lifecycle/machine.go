// Package lifecycle owns the card state machine: which operation may move a
// record from which state, and the single-record transition use cases.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Operation names a lifecycle transition.
type Operation string

const (
	OpApprove         Operation = "approve"
	OpReject          Operation = "reject"
	OpReprint         Operation = "reprint"
	OpWithdraw        Operation = "withdraw"
	OpConfirmPrint    Operation = "confirm_print"
	OpStartProcessing Operation = "start_processing"
	OpMarkReady       Operation = "mark_ready"
	OpMarkDelivered   Operation = "mark_delivered"
)

// Operations lists every operation in workflow order.
var Operations = []Operation{
	OpApprove,
	OpReject,
	OpReprint,
	OpWithdraw,
	OpConfirmPrint,
	OpStartProcessing,
	OpMarkReady,
	OpMarkDelivered,
}

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError reports an operation requested from a state it does not accept.
type TransitionError struct {
	Op   Operation
	From domain.State
	ID   domain.RecordID
}

func (e *TransitionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s is not allowed from state %s", e.Op, e.From)
	}
	return fmt.Sprintf("%s is not allowed for record %s in state %s", e.Op, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ParseOperation accepts snake_case or kebab-case names, case-insensitive.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Rule describes one state-writing operation. Moves maps each accepted source
// state to its target. States in NoOp already satisfy the operation: applying
// it there changes nothing and is not an error.
type Rule struct {
	Op    Operation
	Moves map[domain.State]domain.State
	NoOp  domain.StateSet
}

// Reject is absent: it accepts every state and removes the record instead of
// writing a new state.
var rules = map[Operation]Rule{
	OpApprove: {
		Op:    OpApprove,
		Moves: map[domain.State]domain.State{domain.StatePending: domain.StateApproved},
		NoOp:  domain.StateSet{domain.StateApproved, domain.StatePrinted},
	},
	OpReprint: {
		Op: OpReprint,
		Moves: map[domain.State]domain.State{
			domain.StatePrinted:   domain.StateReprint,
			domain.StateReady:     domain.StateReprint,
			domain.StateDelivered: domain.StateReprint,
		},
		NoOp: domain.StateSet{domain.StateReprint},
	},
	// Withdraw restores the state the record had before it joined the queue.
	OpWithdraw: {
		Op: OpWithdraw,
		Moves: map[domain.State]domain.State{
			domain.StateApproved: domain.StatePending,
			domain.StateReprint:  domain.StatePrinted,
		},
	},
	OpConfirmPrint: {
		Op: OpConfirmPrint,
		Moves: map[domain.State]domain.State{
			domain.StateApproved: domain.StatePrinted,
			domain.StateReprint:  domain.StatePrinted,
		},
		NoOp: domain.StateSet{domain.StatePrinted},
	},
	OpStartProcessing: {
		Op:    OpStartProcessing,
		Moves: map[domain.State]domain.State{domain.StatePrinted: domain.StateInProcess},
		NoOp:  domain.StateSet{domain.StateInProcess},
	},
	OpMarkReady: {
		Op:    OpMarkReady,
		Moves: map[domain.State]domain.State{domain.StateInProcess: domain.StateReady},
		NoOp:  domain.StateSet{domain.StateReady},
	},
	OpMarkDelivered: {
		Op:    OpMarkDelivered,
		Moves: map[domain.State]domain.State{domain.StateReady: domain.StateDelivered},
		NoOp:  domain.StateSet{domain.StateDelivered},
	},
}

// RuleFor returns the rule for op. Reject and unknown operations have none.
func RuleFor(op Operation) (Rule, bool) {
	r, ok := rules[op]
	if !ok {
		return Rule{}, false
	}
	moves := make(map[domain.State]domain.State, len(r.Moves))
	for from, to := range r.Moves {
		moves[from] = to
	}
	r.Moves = moves
	r.NoOp = append(domain.StateSet(nil), r.NoOp...)
	return r, true
}

// Sources lists the states the operation accepts, in lifecycle order.
func (r Rule) Sources() domain.StateSet {
	out := make([]domain.State, 0, len(r.Moves))
	for from := range r.Moves {
		out = append(out, from)
	}
	return domain.NewStateSet(out...)
}

// Plan resolves the operation for a record currently in from. It returns the
// target state, or noop=true when from already satisfies the operation.
func (r Rule) Plan(from domain.State) (to domain.State, noop bool, err error) {
	if to, ok := r.Moves[from]; ok {
		return to, false, nil
	}
	if r.NoOp.Contains(from) {
		return from, true, nil
	}
	return "", false, &TransitionError{Op: r.Op, From: from}
}

// Restrict keeps only the moves whose source is in states. An empty states
// set keeps every move.
func (r Rule) Restrict(states domain.StateSet) Rule {
	if len(states) == 0 {
		return r
	}
	moves := make(map[domain.State]domain.State, len(states))
	for from, to := range r.Moves {
		if states.Contains(from) {
			moves[from] = to
		}
	}
	r.Moves = moves
	return r
}
