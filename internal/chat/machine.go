package chat

import (
	"fmt"
	"time"
)

// MachineState is the confirmation machine's state.
type MachineState int

const (
	// StateIdle: no proposal awaits confirmation.
	StateIdle MachineState = iota
	// StateAwaitingConfirmation: the last agent turn proposed a mutating
	// action that needs an explicit confirm or cancel.
	StateAwaitingConfirmation
)

// Machine tracks whether the assistant's last proposal requires explicit user
// confirmation. It only decides what the UI may offer; it never executes the
// mutating action. The backend performs the action in response to the
// follow-up user turn the machine emits.
type Machine struct {
	state   MachineState
	pending *ConfirmationRequest
}

// NewMachine returns a machine in StateIdle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() MachineState {
	return m.state
}

// Pending returns the request awaiting confirmation, or nil when idle.
func (m *Machine) Pending() *ConfirmationRequest {
	return m.pending
}

// Reset returns the machine to idle, discarding any pending request.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.pending = nil
}

// Observe feeds an appended turn through the transition table. An agent turn
// that requires confirmation arms the machine; any other turn supersedes a
// pending request and returns the machine to idle.
func (m *Machine) Observe(turn Turn) {
	if turn.Author == AuthorAgent && turn.RequiresConfirmation {
		m.state = StateAwaitingConfirmation
		m.pending = confirmationFromTurn(turn)
		return
	}
	m.state = StateIdle
	m.pending = nil
}

// Resolve handles an explicit confirm_delete or cancel_delete choice. It
// returns the user turn carrying the chosen intent (to be dispatched
// normally) and true, or a zero turn and false when the machine is idle or
// the kind is not a terminal confirmation action.
func (m *Machine) Resolve(kind ActionKind) (Turn, bool) {
	if m.state != StateAwaitingConfirmation {
		return Turn{}, false
	}

	var content string
	switch kind {
	case ActionConfirmDelete:
		content = "Yes, go ahead and delete it."
	case ActionCancelDelete:
		content = "No, cancel the deletion."
	default:
		return Turn{}, false
	}

	m.state = StateIdle
	m.pending = nil
	return Turn{
		ID:        newTurnID(AuthorUser),
		Author:    AuthorUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, true
}

// confirmationFromTurn builds the pending request from an agent turn that
// demands confirmation.
func confirmationFromTurn(turn Turn) *ConfirmationRequest {
	req := &ConfirmationRequest{
		Kind: ActionConfirmDelete,
		Data: turn.ConfirmationData,
	}
	for _, key := range []string{"targetDescription", "description", "target"} {
		if v, ok := turn.ConfirmationData[key]; ok {
			req.TargetDescription = fmt.Sprintf("%v", v)
			break
		}
	}
	if req.TargetDescription == "" {
		req.TargetDescription = turn.Content
	}
	return req
}
