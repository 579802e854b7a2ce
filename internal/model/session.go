// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/neuron/internal/util"
)

// DefaultTitleWords is the number of words kept when a title is derived from
// the first user turn.
const DefaultTitleWords = 5

// defaultTitleLayout is the timestamp format of an untitled session.
const defaultTitleLayout = "Chat 2006-01-02 15:04"

// legacyDefaultTitle is the placeholder title older exports used.
const legacyDefaultTitle = "New Chat"

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a persisted conversation: an ordered list of turns plus
// metadata. The ID never changes after creation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Turns     []Turn    `json:"turns"`

	Archived bool   `json:"archived,omitempty"`
	Pinned   bool   `json:"pinned,omitempty"`
	Folder   string `json:"folder,omitempty"`

	// ModelID refers to a Descriptor by id. It is a weak reference: a
	// session keeps its id even after the registry drops the model.
	ModelID string `json:"model_id,omitempty"`
}

// NewSession creates an empty session with a timestamp-derived title.
func NewSession(modelID string) *Session {
	now := Now()
	return &Session{
		ID:        util.NewID(),
		CreatedAt: now,
		UpdatedAt: now,
		Title:     DefaultTitle(now),
		Turns:     []Turn{},
		ModelID:   modelID,
	}
}

// DefaultTitle returns the placeholder title for a session created at t.
func DefaultTitle(t time.Time) string {
	return t.Local().Format(defaultTitleLayout)
}

// Append adds a turn at the end of the session.
func (s *Session) Append(t Turn) {
	s.Turns = append(s.Turns, t)
	s.UpdatedAt = Now()
}

// Clear drops every turn. The id and metadata are kept.
func (s *Session) Clear() {
	s.Turns = []Turn{}
	s.UpdatedAt = Now()
}

// HasDefaultTitle reports whether the title is still a placeholder. A
// placeholder written in any time zone matches, so a session resumed
// elsewhere still gets its derived title.
func (s *Session) HasDefaultTitle() bool {
	t := strings.TrimSpace(s.Title)
	if t == "" || t == legacyDefaultTitle {
		return true
	}
	return isDefaultTitleFor(t, s.CreatedAt)
}

// maxZoneOffset bounds the UTC offset of any time zone.
const maxZoneOffset = 14 * time.Hour

// isDefaultTitleFor reports whether title is DefaultTitle(created) as
// formatted in some time zone: the wall clock it shows differs from created
// in UTC by a whole number of quarter hours, at most maxZoneOffset.
func isDefaultTitleFor(title string, created time.Time) bool {
	wall, err := time.Parse(defaultTitleLayout, title)
	if err != nil {
		return false
	}
	d := wall.Sub(created.UTC().Truncate(time.Minute))
	if d < 0 {
		d = -d
	}
	return d <= maxZoneOffset && d%(15*time.Minute) == 0
}

// FirstUserTurn returns the earliest user turn, or false if there is none.
func (s *Session) FirstUserTurn() (Turn, bool) {
	for _, t := range s.Turns {
		if t.Role == RoleUser && strings.TrimSpace(t.Content) != "" {
			return t, true
		}
	}
	return Turn{}, false
}

// DeriveTitle builds a title from the first user turn: the first maxWords
// words, followed by "..." when the turn is longer. Without a user turn the
// current title is returned unchanged.
func (s *Session) DeriveTitle(maxWords int) string {
	first, ok := s.FirstUserTurn()
	if !ok {
		return s.Title
	}
	if maxWords <= 0 {
		maxWords = DefaultTitleWords
	}

	words := strings.Fields(norm.NFC.String(first.Content))
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// WordCount returns the number of whitespace-separated words across all turns.
func (s *Session) WordCount() int {
	n := 0
	for _, t := range s.Turns {
		n += len(strings.Fields(t.Content))
	}
	return n
}

// CountRole returns how many turns carry the given role.
func (s *Session) CountRole(r Role) int {
	n := 0
	for _, t := range s.Turns {
		if t.Role == r {
			n++
		}
	}
	return n
}

// LastPreview returns the last turn's content cut to maxRunes characters.
func (s *Session) LastPreview(maxRunes int) string {
	if len(s.Turns) == 0 {
		return ""
	}
	return util.TruncateRunes(util.SingleLine(s.Turns[len(s.Turns)-1].Content), maxRunes)
}

// EstimateTokens approximates the token footprint of the session at roughly
// four characters per token.
func (s *Session) EstimateTokens() int {
	chars := 0
	for _, t := range s.Turns {
		chars += len([]rune(t.Content))
	}
	return chars / 4
}

// Clone returns a deep copy so callers can hand a snapshot to storage while
// the original keeps changing.
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	return &c
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the session as a Markdown document.
func (s *Session) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + s.Title + "\n\n")
	sb.WriteString("Created: " + s.CreatedAt.Format(time.RFC3339) + "\n")
	if s.ModelID != "" {
		sb.WriteString("Model: " + s.ModelID + "\n")
	}
	sb.WriteString("\n---\n\n")

	for _, t := range s.Turns {
		sb.WriteString("**" + t.Role.DisplayName() + "** (" + t.CreatedAt.Local().Format("15:04") + "):\n\n")
		sb.WriteString(t.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// ExportJSON renders the session as indented JSON.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
