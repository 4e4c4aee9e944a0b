package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/rxassist/internal/attach"
)

// cleanupTimeout bounds the fire-and-forget backend history deletion on reset.
const cleanupTimeout = 10 * time.Second

// Stager is the slice of the attachment pipeline the controller needs.
type Stager interface {
	Stage(ctx context.Context, f attach.File) (*attach.Attachment, error)
	StageAll(ctx context.Context, files []attach.File) ([]*attach.Attachment, error)
}

// HistoryDeleter requests backend-side deletion of a stored conversation.
type HistoryDeleter interface {
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Archive persists turns locally. Implemented by the transcript store.
type Archive interface {
	SaveTurn(conversationID string, turn Turn) error
	PurgeConversation(conversationID string) error
}

// Controller owns one conversation end to end: it stages attachments, builds
// and appends user turns, dispatches them, feeds agent replies through the
// confirmation machine, and archives the exchange. UI layers talk to the
// Controller only.
type Controller struct {
	session    *Session
	machine    *Machine
	dispatcher *Dispatcher
	pipeline   Stager
	history    HistoryDeleter
	archive    Archive
	logger     *slog.Logger

	// mu serializes machine transitions and turn appends so the
	// confirmation state always reflects the latest appended turn.
	mu        sync.Mutex
	archiveID string
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithWelcome overrides the welcome turn text.
func WithWelcome(text string) ControllerOption {
	return func(c *Controller) { c.session = NewSession(text) }
}

// WithHistoryDeleter enables backend history cleanup on reset.
func WithHistoryDeleter(h HistoryDeleter) ControllerOption {
	return func(c *Controller) { c.history = h }
}

// WithArchive enables local transcript archiving.
func WithArchive(a Archive) ControllerOption {
	return func(c *Controller) { c.archive = a }
}

// NewController creates a Controller with a fresh session.
func NewController(pipeline Stager, dispatcher *Dispatcher, opts ...ControllerOption) *Controller {
	c := &Controller{
		session:    NewSession(""),
		machine:    NewMachine(),
		dispatcher: dispatcher,
		pipeline:   pipeline,
		logger:     slog.Default(),
		archiveID:  uuid.New().String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach validates and uploads a file, then stages the analyzed attachment
// for the next outgoing turn. Validation and upload errors pass through from
// the pipeline; nothing is staged on failure.
func (c *Controller) Attach(ctx context.Context, f attach.File) (*attach.Attachment, error) {
	att, err := c.pipeline.Stage(ctx, f)
	if err != nil {
		return att, err
	}
	c.session.StageAttachment(att)
	return att, nil
}

// AttachAll stages several files at once via the pipeline's bounded-
// concurrency path.
func (c *Controller) AttachAll(ctx context.Context, files []attach.File) ([]*attach.Attachment, error) {
	atts, err := c.pipeline.StageAll(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, att := range atts {
		c.session.StageAttachment(att)
	}
	return atts, nil
}

// RemoveAttachment discards a staged attachment before it is sent.
func (c *Controller) RemoveAttachment(id string) bool {
	return c.session.RemoveAttachment(id)
}

// Send builds a user turn from text plus any staged attachments, appends it,
// and dispatches it. Dispatch failures come back as a visible error turn with
// a nil error; the only errors returned are ErrEmptyInput and
// ErrStaleResponse (the latter meaning this result was superseded and
// nothing was appended).
func (c *Controller) Send(ctx context.Context, text string) (Turn, error) {
	if strings.TrimSpace(text) == "" && len(c.session.StagedAttachments()) == 0 {
		return Turn{}, ErrEmptyInput
	}
	attachments := c.session.TakeStagedAttachments()
	turn := BuildUserTurn(text, attachments)
	return c.dispatchTurn(ctx, turn, attachments)
}

// Confirm resolves a pending confirmation affirmatively. The resulting user
// turn is dispatched normally; the backend performs the deletion.
func (c *Controller) Confirm(ctx context.Context) (Turn, error) {
	return c.resolveConfirmation(ctx, ActionConfirmDelete)
}

// Cancel resolves a pending confirmation negatively.
func (c *Controller) Cancel(ctx context.Context) (Turn, error) {
	return c.resolveConfirmation(ctx, ActionCancelDelete)
}

func (c *Controller) resolveConfirmation(ctx context.Context, kind ActionKind) (Turn, error) {
	c.mu.Lock()
	turn, ok := c.machine.Resolve(kind)
	c.mu.Unlock()
	if !ok {
		return Turn{}, ErrNoPendingConfirmation
	}
	return c.dispatchTurn(ctx, turn, nil)
}

// Activate runs a follow-up action proposal. Delete confirmations route
// through the confirmation machine; unknown kinds are a logged no-op
// returning a zero turn; everything else is sent as the proposal's label.
func (c *Controller) Activate(ctx context.Context, p ActionProposal) (Turn, error) {
	switch p.Kind {
	case ActionConfirmDelete:
		return c.Confirm(ctx)
	case ActionCancelDelete:
		return c.Cancel(ctx)
	case ActionUnknown:
		c.logger.Warn("ignoring proposal with unknown action kind", "label", p.Label)
		return Turn{}, nil
	default:
		return c.Send(ctx, p.Label)
	}
}

// Reset clears the local session and starts over. In-flight dispatches are
// invalidated so late responses are dropped. If the backend had assigned a
// conversation ID, its stored history is deleted fire-and-forget; a cleanup
// failure never blocks or rolls back the local reset.
func (c *Controller) Reset() {
	prevID := c.session.ID()

	c.dispatcher.Invalidate()

	c.mu.Lock()
	c.machine.Reset()
	c.session.Reset()
	if c.archive != nil {
		if err := c.archive.PurgeConversation(c.archiveID); err != nil {
			c.logger.Warn("purging transcript failed", "error", err)
		}
	}
	c.archiveID = uuid.New().String()
	c.mu.Unlock()

	if prevID != "" && c.history != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
			defer cancel()
			if err := c.history.DeleteConversation(ctx, prevID); err != nil {
				c.logger.Warn("backend history cleanup failed", "conversation_id", prevID, "error", err)
			}
		}()
	}
}

// Turns returns a copy of the conversation history.
func (c *Controller) Turns() []Turn {
	return c.session.Turns()
}

// PendingConfirmation returns the outstanding confirmation request, or nil.
func (c *Controller) PendingConfirmation() *ConfirmationRequest {
	return c.session.PendingConfirmation()
}

// ConnState returns the dispatcher's connection health.
func (c *Controller) ConnState() ConnState {
	return c.dispatcher.ConnState()
}

// ConversationID returns the backend-assigned conversation ID, or "".
func (c *Controller) ConversationID() string {
	return c.session.ID()
}

// StagedAttachments returns the attachments staged for the next turn.
func (c *Controller) StagedAttachments() []*attach.Attachment {
	return c.session.StagedAttachments()
}

func (c *Controller) dispatchTurn(ctx context.Context, turn Turn, attachments []*attach.Attachment) (Turn, error) {
	c.appendTurn(turn)

	var documents []string
	for _, att := range attachments {
		if att.RemoteURL != "" {
			documents = append(documents, att.RemoteURL)
		}
	}

	reply, err := c.dispatcher.Send(ctx, turn, c.session.ID(), documents)
	if errors.Is(err, ErrStaleResponse) {
		c.logger.Info("dispatch superseded, dropping result")
		return Turn{}, err
	}
	if err != nil {
		// Dispatch failures surface as a visible error turn, not an error.
		c.appendTurn(reply.Turn)
		return reply.Turn, nil
	}

	if reply.ConversationID != "" {
		c.session.SetID(reply.ConversationID)
	}
	c.appendTurn(reply.Turn)
	return reply.Turn, nil
}

// appendTurn appends to the session, advances the confirmation machine, and
// archives the turn.
func (c *Controller) appendTurn(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Append(turn)
	c.machine.Observe(turn)
	c.session.SetPendingConfirmation(c.machine.Pending())

	if c.archive != nil {
		if err := c.archive.SaveTurn(c.archiveID, turn); err != nil {
			c.logger.Warn("archiving turn failed", "turn_id", turn.ID, "error", err)
		}
	}
}
