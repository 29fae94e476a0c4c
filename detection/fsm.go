package detection

import (
	"errors"
	"fmt"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/utils"
)

var ErrInvalidTransition = errors.New("invalid detection transition")

type State string

const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateConfirmed State = "confirmed"
	StateAbandoned State = "abandoned"
)

// Terminal states accept no further event
func (s State) Terminal() (ok bool) {
	return s == StateConfirmed || s == StateAbandoned
}

type EventKind string

const (
	EventStart   EventKind = "start"
	EventObserve EventKind = "observe"
	EventFail    EventKind = "fail"
	EventExpire  EventKind = "expire"
	EventCancel  EventKind = "cancel"
)

type Event struct {
	Kind EventKind
	// Set for EventObserve
	Confirmation blockchains.Confirmation
	// Set for EventFail
	Err error
}

// Progress is what detection learnt so far
type Progress struct {
	Received      decimal.Decimal
	Confirmations int
	// Consecutive checker failures
	Failures  int
	LastError string
}

// Machine is the detection state machine of one checkout. It knows nothing
// about timers; whoever drives it decides when events happen. Not safe for
// concurrent use.
type Machine struct {
	policy   Policy
	expected decimal.Decimal
	state    State
	progress Progress
}

func NewMachine(policy Policy, expected decimal.Decimal) (m *Machine) {
	return &Machine{
		policy:   policy,
		expected: expected,
		state:    StateIdle,
		progress: Progress{Received: decimal.Zero},
	}
}

func (m *Machine) State() (state State) {
	return m.state
}

func (m *Machine) Progress() (progress Progress) {
	return m.progress
}

func (m *Machine) invalid(kind EventKind) (err error) {
	return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, kind, m.state)
}

// Apply dispatches event to its transition
func (m *Machine) Apply(event Event) (state State, err error) {
	switch event.Kind {
	case EventStart:
		err = m.Start()
	case EventObserve:
		err = m.Observe(event.Confirmation)
	case EventFail:
		err = m.Fail(event.Err)
	case EventExpire:
		err = m.Expire()
	case EventCancel:
		err = m.Cancel()
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event.Kind)
	}
	return m.state, err
}

// Start moves Idle to Detecting
func (m *Machine) Start() (err error) {
	if m.state != StateIdle {
		return m.invalid(EventStart)
	}
	m.state = StateDetecting
	return nil
}

// Observe records a successful check. The session confirms once the amount
// is received and deep enough, otherwise it keeps detecting.
func (m *Machine) Observe(confirmation blockchains.Confirmation) (err error) {
	if m.state != StateDetecting {
		return m.invalid(EventObserve)
	}

	m.progress.Received = confirmation.Received
	m.progress.Confirmations = utils.Clamp(confirmation.Confirmations, 0, m.policy.ConfirmationCap)
	m.progress.Failures = 0
	m.progress.LastError = ""

	if m.policy.Received(confirmation.Received, m.expected) && m.policy.Final(confirmation.Confirmations) {
		m.state = StateConfirmed
	}
	return nil
}

// Fail records a checker failure. The state does not change.
func (m *Machine) Fail(cause error) (err error) {
	if m.state != StateDetecting {
		return m.invalid(EventFail)
	}

	m.progress.Failures++
	if cause != nil {
		m.progress.LastError = cause.Error()
	}
	return nil
}

// Expire abandons a session that ran out of time
func (m *Machine) Expire() (err error) {
	if m.state.Terminal() {
		return m.invalid(EventExpire)
	}
	m.state = StateAbandoned
	return nil
}

// Cancel abandons a session on request
func (m *Machine) Cancel() (err error) {
	if m.state.Terminal() {
		return m.invalid(EventCancel)
	}
	m.state = StateAbandoned
	return nil
}
