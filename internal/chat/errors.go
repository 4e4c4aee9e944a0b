package chat

import "errors"

var (
	// ErrEmptyInput is returned when a send is attempted with no text and no
	// staged attachments.
	ErrEmptyInput = errors.New("chat: empty input")
	// ErrDispatchFailed wraps transport or backend errors during turn dispatch.
	ErrDispatchFailed = errors.New("chat: dispatch failed")
	// ErrStaleResponse marks a dispatch result that arrived after it was
	// superseded; the result is discarded, never shown.
	ErrStaleResponse = errors.New("chat: stale response discarded")
	// ErrNoPendingConfirmation is returned when confirm/cancel is invoked with
	// nothing awaiting confirmation.
	ErrNoPendingConfirmation = errors.New("chat: no pending confirmation")
)
