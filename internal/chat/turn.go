// Package chat implements the conversational core of the store assistant:
// turns, the session aggregate, the action-confirmation state machine, and
// the dispatch controller that talks to the backend reasoning service.
package chat

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Author identifies who produced a turn.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// ConnState is the session's view of backend connectivity. It is surfaced as
// a status label, never as a blocking error.
type ConnState string

const (
	ConnConnected  ConnState = "connected"
	ConnConnecting ConnState = "connecting"
	ConnDegraded   ConnState = "degraded"
)

// ActionKind tags a follow-up action proposal. The set is open: backends may
// introduce new kinds, which parse to ActionUnknown and are treated as
// no-ops when activated.
type ActionKind string

const (
	ActionAddCustomerDetails ActionKind = "add_customer_details"
	ActionEditCustomer       ActionKind = "edit_customer"
	ActionAddCustomer        ActionKind = "add_customer"
	ActionViewCustomers      ActionKind = "view_customers"
	ActionConfirmDelete      ActionKind = "confirm_delete"
	ActionCancelDelete       ActionKind = "cancel_delete"
	ActionSearchCustomers    ActionKind = "search_customers"
	ActionCustomerAnalytics  ActionKind = "customer_analytics"
	ActionUnknown            ActionKind = "unknown"
)

var knownActionKinds = map[ActionKind]bool{
	ActionAddCustomerDetails: true,
	ActionEditCustomer:       true,
	ActionAddCustomer:        true,
	ActionViewCustomers:      true,
	ActionConfirmDelete:      true,
	ActionCancelDelete:       true,
	ActionSearchCustomers:    true,
	ActionCustomerAnalytics:  true,
}

// ParseActionKind maps a backend action string to a known kind. Unrecognized
// strings map to ActionUnknown; parsing never fails.
func ParseActionKind(s string) ActionKind {
	k := ActionKind(s)
	if knownActionKinds[k] {
		return k
	}
	return ActionUnknown
}

// ActionProposal is a suggested next action the UI can offer as a quick
// button.
type ActionProposal struct {
	Label  string
	Kind   ActionKind
	Params map[string]string
}

// ConfirmationRequest is an outstanding requirement that the user explicitly
// confirm or cancel a proposed mutating action before the backend executes it.
type ConfirmationRequest struct {
	Kind              ActionKind
	TargetDescription string
	Data              map[string]any
}

// Turn is one message in the conversation. Turns are immutable once appended;
// corrections are expressed as new turns.
type Turn struct {
	ID      string
	Author  Author
	Content string

	// AttachmentID references the attachment carried by this turn, if any.
	// The session owns the attachment's lifecycle; the turn only refers to it.
	AttachmentID string

	// Agent-only fields.
	Suggestions          []string
	FollowUpActions      []ActionProposal
	RequiresConfirmation bool
	ConfirmationData     map[string]any
	Intent               string
	Confidence           float64
	ProcessingMillis     int64
	ActionExecuted       bool
	ActionResult         string

	// IsError marks a synthetic turn produced after a failed dispatch.
	IsError bool

	CreatedAt time.Time
}

var turnSeq atomic.Uint64

// newTurnID returns a locally unique, monotonically increasing turn ID. The
// timestamp keeps IDs roughly chronological across restarts; the sequence
// keeps them unique within one.
func newTurnID(author Author) string {
	return fmt.Sprintf("%d-%d-%s", time.Now().UnixNano(), turnSeq.Add(1), author)
}
