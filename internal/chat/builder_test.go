package chat

import (
	"strings"
	"testing"

	"github.com/kalambet/rxassist/internal/attach"
)

func TestBuildUserTurnTextOnly(t *testing.T) {
	turn := BuildUserTurn("  Show me dashboard  ", nil)

	if turn.Author != AuthorUser {
		t.Errorf("author = %q, want user", turn.Author)
	}
	if turn.Content != "Show me dashboard" {
		t.Errorf("content = %q, want trimmed text", turn.Content)
	}
	if turn.AttachmentID != "" {
		t.Errorf("AttachmentID = %q, want empty", turn.AttachmentID)
	}
}

func TestBuildUserTurnKeepsTextWithAttachments(t *testing.T) {
	atts := []*attach.Attachment{
		{ID: "a1", Name: "invoice.pdf", AnalysisSummary: "Invoice for 12 items"},
	}

	turn := BuildUserTurn("add this invoice", atts)

	if !strings.Contains(turn.Content, "add this invoice") {
		t.Errorf("content %q dropped the user text", turn.Content)
	}
	if !strings.Contains(turn.Content, "invoice.pdf") {
		t.Errorf("content %q missing attachment marker", turn.Content)
	}
	if !strings.Contains(turn.Content, "Invoice for 12 items") {
		t.Errorf("content %q missing analysis summary", turn.Content)
	}
	if turn.AttachmentID != "a1" {
		t.Errorf("AttachmentID = %q, want a1", turn.AttachmentID)
	}
}

func TestBuildUserTurnAttachmentOnly(t *testing.T) {
	atts := []*attach.Attachment{{ID: "a1", Name: "photo.png"}}

	turn := BuildUserTurn("", atts)

	if !strings.Contains(turn.Content, "photo.png") {
		t.Errorf("content = %q, want attachment marker", turn.Content)
	}
	if strings.HasPrefix(turn.Content, "\n") {
		t.Errorf("content %q starts with a stray newline", turn.Content)
	}
}

func TestBuildUserTurnIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		turn := BuildUserTurn("x", nil)
		if seen[turn.ID] {
			t.Fatalf("duplicate turn ID %q", turn.ID)
		}
		seen[turn.ID] = true
	}
}
