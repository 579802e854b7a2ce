// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a send is attempted while a reply is pending.
	ErrBusy = errors.New("a reply is already pending")

	// ErrEmptyInput is returned for blank or whitespace-only text.
	ErrEmptyInput = errors.New("message is empty")

	// ErrNothingToRetry is returned by Retry when the last turn is not an
	// unanswered user turn.
	ErrNothingToRetry = errors.New("nothing to retry")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation is closed")

	// ErrDeleted is returned after Delete.
	ErrDeleted = errors.New("conversation was deleted")

	// ErrEmptyTitle is returned by Rename for a blank title.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrEmptyModel is returned by ChangeModel for a blank id.
	ErrEmptyModel = errors.New("model id is empty")

	// ErrDiscarded is returned when a reply arrives after the conversation
	// was cleared, deleted, or closed. The reply is dropped.
	ErrDiscarded = errors.New("reply discarded")
)

// PersistenceError wraps a failed save. The in-memory change it followed is
// kept.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save chat (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
