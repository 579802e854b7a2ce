// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/neuron/internal/model"
)

// =============================================================================
// LOAD
// =============================================================================

type rawRecord struct {
	id      string
	version int
	data    []byte
}

// LoadAll returns every session in list order. A missing or empty table
// yields an empty slice. Rows that cannot be decoded are skipped and
// reported through a *DecodeError alongside the sessions that loaded.
func (s *Store) LoadAll(ctx context.Context) ([]model.Session, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, version, data FROM sessions ORDER BY position ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	var raws []rawRecord
	for rows.Next() {
		var r rawRecord
		if err := rows.Scan(&r.id, &r.version, &r.data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	rows.Close()

	sessions := make([]model.Session, 0, len(raws))
	derr := &DecodeError{}
	for _, r := range raws {
		sess, err := decodeRecord(r.id, r.version, r.data)
		if err != nil {
			derr.add(r.id, r.version, err)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, derr.orNil()
}

// Get returns one session by id.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var r rawRecord
	r.id = id
	err := s.db.QueryRowContext(ctx, "SELECT version, data FROM sessions WHERE id = ?", id).Scan(&r.version, &r.data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	sess, err := decodeRecord(r.id, r.version, r.data)
	if err != nil {
		d := &DecodeError{}
		d.add(r.id, r.version, err)
		return nil, d
	}
	return &sess, nil
}

// Count returns the number of stored sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// =============================================================================
// WRITE
// =============================================================================

// SaveAll replaces the stored set with sessions, in order, in one
// transaction.
func (s *Store) SaveAll(ctx context.Context, sessions []model.Session) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	for i := range sessions {
		data, err := encodeRecord(&sessions[i])
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
			sessions[i].ID, i, RecordVersion, data, sessions[i].UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to save session %s: %w", sessions[i].ID, err)
		}
	}
	return tx.Commit()
}

// Upsert replaces the session with the same id, keeping its position, or
// inserts it at the front of the list. Repeating an identical upsert leaves
// the store unchanged.
func (s *Store) Upsert(ctx context.Context, sess *model.Session) error {
	data, err := encodeRecord(sess)
	if err != nil {
		return err
	}

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET version = ?, data = ?, updated_at = ? WHERE id = ?",
		RecordVersion, data, sess.UpdatedAt.Unix(), sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var front int64
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MIN(position), 0) FROM sessions").Scan(&front); err != nil {
			return fmt.Errorf("failed to read list position: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO sessions (id, position, version, data, updated_at) VALUES (?, ?, ?, ?, ?)",
			sess.ID, front-1, RecordVersion, data, sess.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the session with id. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// RECORD CODEC
// =============================================================================

func encodeRecord(sess *model.Session) ([]byte, error) {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return nil, errors.New("session has no id")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	return data, nil
}

// decodeRecord decodes one row, migrating older payload versions.
func decodeRecord(id string, version int, data []byte) (model.Session, error) {
	var sess model.Session

	switch {
	case version == RecordVersion:
		if err := json.Unmarshal(data, &sess); err != nil {
			return sess, fmt.Errorf("invalid payload: %w", err)
		}
	case version == 1:
		var lc legacyChat
		if err := json.Unmarshal(data, &lc); err != nil {
			return sess, fmt.Errorf("invalid legacy payload: %w", err)
		}
		converted, err := lc.toSession(referenceDate)
		if err != nil {
			return sess, err
		}
		sess = *converted
	case version > RecordVersion:
		return sess, fmt.Errorf("record version %d is newer than supported %d", version, RecordVersion)
	default:
		return sess, fmt.Errorf("unknown record version %d", version)
	}

	if sess.ID != id {
		return sess, fmt.Errorf("payload id %q does not match row id", sess.ID)
	}
	for i, t := range sess.Turns {
		if !t.Role.Valid() {
			return sess, fmt.Errorf("turn %d has invalid role %q", i, t.Role)
		}
	}
	if sess.Turns == nil {
		sess.Turns = []model.Turn{}
	}
	return sess, nil
}
