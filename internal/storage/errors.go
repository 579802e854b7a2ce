// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned by Get when no row has the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPresetNotFound is returned when deleting an unknown preset.
	ErrPresetNotFound = errors.New("preset not found")

	// ErrSchemaTooNew is returned by Open for a database written by a newer
	// release.
	ErrSchemaTooNew = errors.New("database schema is newer than this release supports")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// SkippedRecord describes one row that could not be decoded.
type SkippedRecord struct {
	ID      string
	Version int
	Err     error
}

// DecodeError reports records that were skipped during a load. The load
// itself still returns every record that decoded.
type DecodeError struct {
	Skipped []SkippedRecord
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if len(e.Skipped) == 1 {
		s := e.Skipped[0]
		return fmt.Sprintf("skipped session %s (version %d): %v", s.ID, s.Version, s.Err)
	}
	ids := make([]string, 0, len(e.Skipped))
	for _, s := range e.Skipped {
		ids = append(ids, s.ID)
	}
	return fmt.Sprintf("skipped %d unreadable sessions: %s", len(e.Skipped), strings.Join(ids, ", "))
}

// Unwrap returns the per-record causes.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Skipped))
	for _, s := range e.Skipped {
		errs = append(errs, s.Err)
	}
	return errs
}

func (e *DecodeError) add(id string, version int, err error) {
	e.Skipped = append(e.Skipped, SkippedRecord{ID: id, Version: version, Err: err})
}

// orNil returns nil when nothing was skipped, so callers can return it as
// an error directly.
func (e *DecodeError) orNil() error {
	if e == nil || len(e.Skipped) == 0 {
		return nil
	}
	return e
}
