package storage

import "errors"

var (
	// ErrNotFound is returned by operations that require the conversation
	// to exist (saving a message, renaming).
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidRole rejects roles outside the user/assistant/system set.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptyContent rejects messages with no textual content.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrInvalidQuery flags a search string the full-text index cannot parse.
	ErrInvalidQuery = errors.New("invalid search query")
)
