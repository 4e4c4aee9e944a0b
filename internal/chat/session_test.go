package chat

import (
	"fmt"
	"testing"

	"github.com/kalambet/rxassist/internal/attach"
)

func userTurn(content string) Turn {
	return Turn{ID: newTurnID(AuthorUser), Author: AuthorUser, Content: content}
}

func TestSessionStartsWithWelcomeTurn(t *testing.T) {
	s := NewSession("")

	turns := s.Turns()
	if len(turns) != 1 {
		t.Fatalf("new session has %d turns, want 1", len(turns))
	}
	if turns[0].Author != AuthorAgent {
		t.Errorf("welcome turn author = %q, want %q", turns[0].Author, AuthorAgent)
	}
	if s.ID() != "" {
		t.Errorf("new session ID = %q, want empty", s.ID())
	}
}

func TestAppendIsOrderedAndAppendOnly(t *testing.T) {
	s := NewSession("")

	const n = 25
	for i := 0; i < n; i++ {
		s.Append(userTurn(fmt.Sprintf("message %d", i)))
	}

	turns := s.Turns()
	if len(turns) != n+1 {
		t.Fatalf("got %d turns after %d appends, want %d", len(turns), n, n+1)
	}
	for i := 0; i < n; i++ {
		want := fmt.Sprintf("message %d", i)
		if turns[i+1].Content != want {
			t.Errorf("turns[%d].Content = %q, want %q", i+1, turns[i+1].Content, want)
		}
	}
}

func TestTurnsReturnsDefensiveCopy(t *testing.T) {
	s := NewSession("")
	s.Append(userTurn("hello"))

	turns := s.Turns()
	turns[0].Content = "mutated"

	if got := s.Turns()[0].Content; got == "mutated" {
		t.Error("mutating the returned slice changed session state")
	}
}

func TestAppendClearsPendingConfirmation(t *testing.T) {
	s := NewSession("")
	s.SetPendingConfirmation(&ConfirmationRequest{Kind: ActionConfirmDelete, TargetDescription: "customer 42"})

	s.Append(userTurn("something else"))

	if s.PendingConfirmation() != nil {
		t.Error("pending confirmation survived an append; want cleared")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s := NewSession("")
	s.SetID("conv-1")
	s.Append(userTurn("hello"))
	s.SetPendingConfirmation(&ConfirmationRequest{Kind: ActionConfirmDelete})
	s.StageAttachment(&attach.Attachment{ID: "a1", Name: "invoice.pdf"})

	s.Reset()
	s.Reset()

	if got := len(s.Turns()); got != 1 {
		t.Errorf("after reset got %d turns, want 1 welcome turn", got)
	}
	if s.ID() != "" {
		t.Errorf("after reset ID = %q, want empty", s.ID())
	}
	if s.PendingConfirmation() != nil {
		t.Error("after reset pending confirmation is set, want nil")
	}
	if got := len(s.StagedAttachments()); got != 0 {
		t.Errorf("after reset %d staged attachments, want 0", got)
	}
}

func TestStageAndRemoveAttachment(t *testing.T) {
	s := NewSession("")
	s.StageAttachment(&attach.Attachment{ID: "a1"})
	s.StageAttachment(&attach.Attachment{ID: "a2"})

	if !s.RemoveAttachment("a1") {
		t.Error("RemoveAttachment(a1) = false, want true")
	}
	if s.RemoveAttachment("a1") {
		t.Error("second RemoveAttachment(a1) = true, want false")
	}

	staged := s.StagedAttachments()
	if len(staged) != 1 || staged[0].ID != "a2" {
		t.Errorf("staged = %v, want only a2", staged)
	}
}

func TestTakeStagedAttachmentsConsumesSet(t *testing.T) {
	s := NewSession("")
	s.StageAttachment(&attach.Attachment{ID: "a1"})

	taken := s.TakeStagedAttachments()
	if len(taken) != 1 {
		t.Fatalf("took %d attachments, want 1", len(taken))
	}
	if got := len(s.StagedAttachments()); got != 0 {
		t.Errorf("%d attachments still staged after take, want 0", got)
	}
}
