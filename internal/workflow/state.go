package workflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
)

// State is one stage of a job application attempt.
type State string

const (
	StateNavigating State = "NAVIGATING"
	StateDetecting  State = "DETECTING"
	StateExtracting State = "EXTRACTING"
	StateResolving  State = "RESOLVING"
	StateFilling    State = "FILLING"
	StateRescanning State = "RESCANNING"
	StateAwaiting   State = "AWAITING_CONFIRMATION"
	StateSubmitting State = "SUBMITTING"
	StateSucceeded  State = "SUCCEEDED"
	StateSkipped    State = "SKIPPED"
	StateFailed     State = "FAILED"
	StateAborted    State = "ABORTED"
)

// transitions is the complete set of legal state changes. Anything not
// listed is a programming error, caught loudly rather than papered over.
var transitions = map[State][]State{
	StateNavigating: {StateDetecting, StateFailed, StateAborted},
	StateDetecting:  {StateExtracting, StateFailed, StateAborted},
	StateExtracting: {StateResolving, StateFailed, StateAborted},
	StateResolving:  {StateFilling, StateSkipped, StateFailed},
	StateFilling:    {StateRescanning, StateFailed, StateAborted},
	StateRescanning: {StateAwaiting, StateFailed},
	StateAwaiting:   {StateSubmitting, StateSkipped, StateAborted, StateFailed},
	StateSubmitting: {StateSucceeded, StateFailed, StateAborted},
	StateSucceeded:  {},
	StateSkipped:    {},
	StateFailed:     {},
	StateAborted:    {},
}

// Terminal reports whether the state ends the attempt.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateSkipped, StateFailed, StateAborted:
		return true
	}
	return false
}

// Status maps a terminal state onto the attempt status recorded in the audit
// trail.
func (s State) Status() schemas.AttemptStatus {
	switch s {
	case StateSucceeded:
		return schemas.StatusSucceeded
	case StateSkipped:
		return schemas.StatusSkipped
	case StateFailed:
		return schemas.StatusFailed
	case StateAborted:
		return schemas.StatusAborted
	}
	return schemas.StatusRunning
}

// Machine tracks the current state of one attempt and enforces the
// transition table.
type Machine struct {
	state  State
	logger *zap.Logger
}

// NewMachine starts a machine in NAVIGATING.
func NewMachine(logger *zap.Logger) *Machine {
	return &Machine{state: StateNavigating, logger: logger.Named("workflow")}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Transition moves to a new state, rejecting anything the table forbids.
func (m *Machine) Transition(to State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.logger.Debug("State transition",
				zap.String("from", string(m.state)),
				zap.String("to", string(to)))
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.state, to)
}
