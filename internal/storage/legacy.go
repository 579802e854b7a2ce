// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/neuron/internal/model"
)

// referenceDate is the epoch of numeric dates in legacy exports
// (2001-01-01T00:00:00Z).
var referenceDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// legacyTime decodes either seconds since referenceDate or an RFC 3339 string.
type legacyTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (lt *legacyTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		lt.Time = t.UTC()
		return nil
	}

	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid date %s: %w", b, err)
	}
	lt.Time = referenceDate.Add(time.Duration(secs * float64(time.Second))).Round(time.Millisecond)
	return nil
}

// legacyChat is one element of the unversioned export array.
type legacyChat struct {
	ID       string     `json:"id"`
	Date     legacyTime `json:"date"`
	Title    string     `json:"title"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	IsArchived bool    `json:"isArchived"`
	Folder     *string `json:"folder"`
	IsPinned   bool    `json:"isPinned"`
	ModelID    string  `json:"modelId"`
}

// toSession converts a legacy chat. Turns take the chat date, since the
// legacy format has no per-message timestamps; a chat without a date gets
// undated. Turn ids derive from the chat id and position, so converting
// the same chat twice yields the same session.
func (lc *legacyChat) toSession(undated time.Time) (*model.Session, error) {
	if strings.TrimSpace(lc.ID) == "" {
		return nil, fmt.Errorf("legacy chat has no id")
	}

	created := lc.Date.Time
	if created.IsZero() {
		created = undated
	}

	sess := &model.Session{
		ID:        lc.ID,
		CreatedAt: created,
		UpdatedAt: created,
		Title:     lc.Title,
		Turns:     make([]model.Turn, 0, len(lc.Messages)),
		Archived:  lc.IsArchived,
		Pinned:    lc.IsPinned,
		ModelID:   lc.ModelID,
	}
	if lc.Folder != nil {
		sess.Folder = *lc.Folder
	}
	if strings.TrimSpace(sess.Title) == "" {
		sess.Title = model.DefaultTitle(created)
	}

	for i, m := range lc.Messages {
		role := model.Role(strings.ToLower(m.Role))
		if !role.Valid() {
			return nil, fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
		sess.Turns = append(sess.Turns, model.Turn{
			ID:        legacyTurnID(lc.ID, i),
			Role:      role,
			Content:   m.Content,
			CreatedAt: created,
		})
	}
	return sess, nil
}

func legacyTurnID(chatID string, i int) string {
	return chatID + "-" + strconv.Itoa(i)
}

// ImportLegacy decodes an unversioned JSON array of chats, as written by
// earlier releases, and upserts each one. It returns how many sessions were
// imported. Chats that fail to convert are skipped and reported in a
// *DecodeError; the rest are still imported.
func (s *Store) ImportLegacy(ctx context.Context, blob []byte) (int, error) {
	if len(bytes.TrimSpace(blob)) == 0 {
		return 0, nil
	}

	var chats []json.RawMessage
	if err := json.Unmarshal(blob, &chats); err != nil {
		return 0, fmt.Errorf("legacy data is not a JSON array: %w", err)
	}

	imported := 0
	derr := &DecodeError{}
	// Iterate backwards so front insertion preserves the original order.
	for i := len(chats) - 1; i >= 0; i-- {
		var lc legacyChat
		if err := json.Unmarshal(chats[i], &lc); err != nil {
			derr.add(fmt.Sprintf("#%d", i), 1, err)
			continue
		}
		sess, err := lc.toSession(model.Now())
		if err != nil {
			derr.add(lc.ID, 1, err)
			continue
		}
		if err := s.Upsert(ctx, sess); err != nil {
			return imported, err
		}
		imported++
	}

	if imported > 0 {
		stamp := []byte(strconv.FormatInt(time.Now().Unix(), 10))
		if err := s.PutValue(ctx, slotLegacyImported, stamp); err != nil {
			return imported, err
		}
	}
	return imported, derr.orNil()
}

// LegacyImportedAt returns when legacy data was last imported, or the zero
// time if never.
func (s *Store) LegacyImportedAt(ctx context.Context) (time.Time, error) {
	raw, ok, err := s.GetValue(ctx, slotLegacyImported)
	if err != nil || !ok {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad import marker: %w", err)
	}
	return time.Unix(secs, 0), nil
}
