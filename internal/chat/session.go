package chat

import (
	"sync"
	"time"

	"github.com/kalambet/rxassist/internal/attach"
)

// DefaultWelcome is the agent turn synthesized on session creation and reset.
const DefaultWelcome = "Hi! I'm your store assistant. Ask me about customers, " +
	"invoices, or stock, or drop an invoice image or PDF here and I'll read it for you."

var defaultWelcomeSuggestions = []string{
	"Show me dashboard",
	"View customers",
	"Help",
}

// Session is the aggregate root of one conversation: ordered turns, the
// outstanding confirmation (if any), staged attachments, and the backend
// conversation ID. All mutations go through its mutex so the append-order
// invariant holds under concurrent use.
type Session struct {
	mu      sync.Mutex
	id      string
	turns   []Turn
	pending *ConfirmationRequest
	staged  []*attach.Attachment
	welcome string
}

// NewSession creates an empty session holding only the welcome turn. The
// backend conversation ID stays empty until the first exchange assigns one.
func NewSession(welcome string) *Session {
	if welcome == "" {
		welcome = DefaultWelcome
	}
	s := &Session{welcome: welcome}
	s.appendWelcome()
	return s
}

func (s *Session) appendWelcome() {
	s.turns = append(s.turns, Turn{
		ID:          newTurnID(AuthorAgent),
		Author:      AuthorAgent,
		Content:     s.welcome,
		Suggestions: append([]string(nil), defaultWelcomeSuggestions...),
		CreatedAt:   time.Now().UTC(),
	})
}

// Append adds a turn to the conversation. It is the only turns mutator.
// Appending any turn supersedes and clears a pending confirmation; callers
// that want the new turn's own confirmation tracked set it afterwards.
func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	s.pending = nil
}

// Reset clears turns, pending confirmation, staged attachments, and the
// conversation ID, then synthesizes a fresh welcome turn. Backend-side
// history deletion is the caller's separate, fire-and-forget concern.
// Reset is idempotent.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.turns = nil
	s.pending = nil
	s.staged = nil
	s.appendWelcome()
}

// ID returns the backend-assigned conversation ID, or "" before the first
// exchange.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID records the backend-assigned conversation ID.
func (s *Session) SetID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Turns returns a defensive copy of the conversation history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastTurn returns the most recent turn and true, or a zero turn and false
// for an empty session.
func (s *Session) LastTurn() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// PendingConfirmation returns the outstanding confirmation request, or nil.
func (s *Session) PendingConfirmation() *ConfirmationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SetPendingConfirmation records (or clears, with nil) the outstanding
// confirmation for the most recent agent turn.
func (s *Session) SetPendingConfirmation(req *ConfirmationRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = req
}

// StageAttachment adds an analyzed attachment to the set staged for the next
// outgoing turn.
func (s *Session) StageAttachment(att *attach.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, att)
}

// RemoveAttachment discards a staged attachment before it is sent. It reports
// whether the attachment was staged.
func (s *Session) RemoveAttachment(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, att := range s.staged {
		if att.ID == id {
			s.staged = append(s.staged[:i], s.staged[i+1:]...)
			return true
		}
	}
	return false
}

// StagedAttachments returns a defensive copy of the currently staged set.
func (s *Session) StagedAttachments() []*attach.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*attach.Attachment, len(s.staged))
	copy(out, s.staged)
	return out
}

// TakeStagedAttachments removes and returns all staged attachments. Called
// when a turn is sent, so the set is consumed exactly once.
func (s *Session) TakeStagedAttachments() []*attach.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.staged
	s.staged = nil
	return staged
}
