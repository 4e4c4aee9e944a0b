package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/rxassist/internal/backend"
)

const (
	// DefaultDispatchTimeout bounds a single chat dispatch. A hung request
	// fails like any other transport error.
	DefaultDispatchTimeout = 30 * time.Second

	// DefaultRetryHintLimit is the number of consecutive failures after which
	// error turns stop offering retry suggestions and escalate to a
	// connectivity hint.
	DefaultRetryHintLimit = 2
)

// retrySuggestions are offered on an error turn while failures stay under the
// retry-hint limit.
var retrySuggestions = []string{"Try again", "Show me dashboard", "Help"}

// Sender is the slice of the backend client the dispatcher needs.
type Sender interface {
	Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatResult, error)
}

// Reply is a successful dispatch result: the parsed agent turn plus the
// conversation ID the backend filed it under.
type Reply struct {
	Turn           Turn
	ConversationID string
}

// Dispatcher sends user turns to the backend reasoning service. It tracks
// connection health and consecutive failures, and guards against
// out-of-order responses with a monotonically increasing sequence number:
// a response resolving after a later dispatch (or a reset) was issued is
// dropped, never surfaced.
//
// It never retries silently. Each failure produces one visible error turn;
// re-sending is always a user action.
type Dispatcher struct {
	sender         Sender
	timeout        time.Duration
	retryHintLimit int
	logger         *slog.Logger

	mu       sync.Mutex
	seq      uint64
	failures int
	conn     ConnState
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchTimeout overrides the per-dispatch timeout.
func WithDispatchTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithRetryHintLimit overrides the consecutive-failure threshold at which
// error turns stop offering retry suggestions.
func WithRetryHintLimit(n int) DispatcherOption {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.retryHintLimit = n
		}
	}
}

// NewDispatcher creates a Dispatcher over the given sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:         sender,
		timeout:        DefaultDispatchTimeout,
		retryHintLimit: DefaultRetryHintLimit,
		logger:         slog.Default(),
		conn:           ConnConnected,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send dispatches one user turn. On success it returns the parsed agent
// reply. On failure it returns a synthetic error turn (IsError set) along
// with an error wrapping ErrDispatchFailed. A result that no longer matches
// the current dispatch sequence returns ErrStaleResponse and must be dropped
// by the caller.
func (d *Dispatcher) Send(ctx context.Context, userTurn Turn, conversationID string, documents []string) (Reply, error) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.conn = ConnConnecting
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.sender.Chat(ctx, backend.ChatRequest{
		Message:        userTurn.Content,
		ConversationID: conversationID,
		Documents:      documents,
	})

	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.seq {
		d.logger.Debug("dropping stale dispatch result", "seq", seq, "current", d.seq)
		return Reply{}, fmt.Errorf("%w: dispatch %d superseded by %d", ErrStaleResponse, seq, d.seq)
	}

	if err != nil {
		d.conn = ConnDegraded
		d.failures++
		d.logger.Warn("dispatch failed", "consecutive_failures", d.failures, "error", err)
		return Reply{Turn: d.errorTurn()}, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	d.conn = ConnConnected
	d.failures = 0
	return Reply{
		Turn:           agentTurnFromResult(result),
		ConversationID: result.ConversationID,
	}, nil
}

// Invalidate bumps the dispatch sequence so any in-flight dispatch resolves
// as stale. Called on session reset.
func (d *Dispatcher) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
}

// ConnState returns the current connection health.
func (d *Dispatcher) ConnState() ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

// ConsecutiveFailures returns the current failure streak.
func (d *Dispatcher) ConsecutiveFailures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures
}

// errorTurn builds the synthetic agent turn for a failed dispatch. Callers
// hold d.mu.
func (d *Dispatcher) errorTurn() Turn {
	turn := Turn{
		ID:        newTurnID(AuthorAgent),
		Author:    AuthorAgent,
		IsError:   true,
		CreatedAt: time.Now().UTC(),
	}
	if d.failures < d.retryHintLimit {
		turn.Content = "I couldn't reach the assistant service. Please try again."
		turn.Suggestions = append([]string(nil), retrySuggestions...)
	} else {
		turn.Content = "I still can't reach the assistant service. " +
			"Please check your connection and try again in a moment."
	}
	return turn
}

// agentTurnFromResult maps a parsed backend reply onto an agent turn.
func agentTurnFromResult(res backend.ChatResult) Turn {
	suggestions := res.Suggestions
	if len(suggestions) == 0 {
		suggestions = res.QuickActions
	}

	actions := make([]ActionProposal, 0, len(res.FollowUpActions))
	for _, a := range res.FollowUpActions {
		actions = append(actions, ActionProposal{
			Label:  a.Label,
			Kind:   ParseActionKind(a.Action),
			Params: a.Params,
		})
	}

	return Turn{
		ID:                   newTurnID(AuthorAgent),
		Author:               AuthorAgent,
		Content:              res.Response,
		Suggestions:          suggestions,
		FollowUpActions:      actions,
		RequiresConfirmation: res.RequiresConfirmation,
		ConfirmationData:     res.ConfirmationData,
		Intent:               res.Intent,
		Confidence:           res.Confidence,
		ProcessingMillis:     res.ProcessingMillis,
		ActionExecuted:       res.ActionExecuted,
		ActionResult:         res.ActionResult,
		CreatedAt:            time.Now().UTC(),
	}
}
