package chat

import "errors"

var (
	// ErrChannelNotFound is returned when an operation targets a channel
	// that is not registered.
	ErrChannelNotFound = errors.New("chat: channel not found")

	// ErrNotStarted is returned when notifications are consumed before
	// Start has loaded the session.
	ErrNotStarted = errors.New("chat: session not started")

	ErrAlreadyStarted = errors.New("chat: already started")

	// ErrEmptyMessage is returned when posting a message with no content.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrEmptyQuery is returned by GetMessages when no selector is set.
	ErrEmptyQuery = errors.New("chat: query needs a channel, message ids or a document")
)
