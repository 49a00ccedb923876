package optimizer

import (
	stderrors "errors"
	"fmt"
)

// State of one optimization request.
type State int

const (
	StatePending State = iota
	StateAwaitingOracle
	StateVerifying
	StateRetrying
	StateAccepted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateAwaitingOracle:
		return "AwaitingOracle"
	case StateVerifying:
		return "Verifying"
	case StateRetrying:
		return "Retrying"
	case StateAccepted:
		return "Accepted"
	case StateRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StatePending; st <= StateRejected; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether no further event is accepted.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected
}

// Event drives the state machine.
type Event int

const (
	EventSubmit Event = iota
	EventOracleReturned
	EventOracleFailed
	EventOracleMalformed
	EventVerified
	EventViolationsFound
	EventResubmit
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "Submit"
	case EventOracleReturned:
		return "OracleReturned"
	case EventOracleFailed:
		return "OracleFailed"
	case EventOracleMalformed:
		return "OracleMalformed"
	case EventVerified:
		return "Verified"
	case EventViolationsFound:
		return "ViolationsFound"
	case EventResubmit:
		return "Resubmit"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = stderrors.New("invalid state transition")

// Transition is the complete transition table. retriesLeft only matters for
// EventViolationsFound.
func Transition(from State, event Event, retriesLeft int) (State, error) {
	switch from {
	case StatePending:
		if event == EventSubmit {
			return StateAwaitingOracle, nil
		}
	case StateAwaitingOracle:
		switch event {
		case EventOracleReturned:
			return StateVerifying, nil
		case EventOracleFailed, EventOracleMalformed:
			return StateRejected, nil
		}
	case StateVerifying:
		switch event {
		case EventVerified:
			return StateAccepted, nil
		case EventViolationsFound:
			if retriesLeft > 0 {
				return StateRetrying, nil
			}
			return StateRejected, nil
		}
	case StateRetrying:
		if event == EventResubmit {
			return StateAwaitingOracle, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}

// Step records one applied transition.
type Step struct {
	From  State  `json:"from"`
	Event Event  `json:"-"`
	Name  string `json:"event"`
	To    State  `json:"to"`
}

// Machine tracks a single request through Transition with a retry budget.
type Machine struct {
	state   State
	budget  int
	retries int
	history []Step
}

// NewMachine starts a machine in Pending. A negative budget is treated as zero.
func NewMachine(budget int) *Machine {
	return &Machine{state: StatePending, budget: max(0, budget)}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// RetriesLeft returns the remaining retry budget.
func (m *Machine) RetriesLeft() int {
	return m.budget - m.retries
}

// Retries returns how many retries were consumed.
func (m *Machine) Retries() int {
	return m.retries
}

// History returns the applied transitions in order.
func (m *Machine) History() []Step {
	return append([]Step(nil), m.history...)
}

// Fire applies event and returns the new state.
func (m *Machine) Fire(event Event) (State, error) {
	next, err := Transition(m.state, event, m.RetriesLeft())
	if err != nil {
		return m.state, err
	}
	if next == StateRetrying {
		m.retries++
	}
	m.history = append(m.history, Step{From: m.state, Event: event, Name: event.String(), To: next})
	m.state = next
	return next, nil
}
