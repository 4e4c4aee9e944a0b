package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/rxassist/internal/attach"
)

// BuildUserTurn converts user input into an immutable user turn. It is a pure
// function: no I/O, no session mutation. Text is never dropped when
// attachments are present; each attachment contributes a summary marker after
// the text. Callers must ensure text or at least one attachment is present.
func BuildUserTurn(text string, attachments []*attach.Attachment) Turn {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))

	for _, att := range attachments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(attachmentMarker(att))
	}

	turn := Turn{
		ID:        newTurnID(AuthorUser),
		Author:    AuthorUser,
		Content:   b.String(),
		CreatedAt: time.Now().UTC(),
	}
	if len(attachments) > 0 {
		turn.AttachmentID = attachments[0].ID
	}
	return turn
}

// attachmentMarker renders the inline summary line for one attachment.
func attachmentMarker(att *attach.Attachment) string {
	if att.AnalysisSummary != "" {
		return fmt.Sprintf("[Attached: %s: %s]", att.Name, att.AnalysisSummary)
	}
	return fmt.Sprintf("[Attached: %s]", att.Name)
}
