// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/util"
)

// =============================================================================
// SESSION LIST FILTERING
// =============================================================================

// Filter selects sessions for the list view.
type Filter struct {
	// Query matches title or turn content, case-insensitive.
	Query string

	// MinWords hides sessions with fewer words across all turns.
	MinWords int

	// Archived selects archived sessions instead of active ones.
	Archived bool

	// Folder restricts to one folder label when non-empty.
	Folder string

	// PinnedFirst moves pinned sessions to the top, keeping relative order.
	PinnedFirst bool
}

// Apply returns the sessions that match f. The input is not modified.
func (f Filter) Apply(sessions []model.Session) []model.Session {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Archived != f.Archived {
			continue
		}
		if f.Folder != "" && !strings.EqualFold(s.Folder, f.Folder) {
			continue
		}
		if f.MinWords > 0 && s.WordCount() < f.MinWords {
			continue
		}
		if query != "" && !matches(&s, query) {
			continue
		}
		out = append(out, s)
	}

	if f.PinnedFirst {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Pinned && !out[j].Pinned
		})
	}
	return out
}

func matches(s *model.Session, query string) bool {
	if strings.Contains(strings.ToLower(s.Title), query) {
		return true
	}
	for _, t := range s.Turns {
		if strings.Contains(strings.ToLower(t.Content), query) {
			return true
		}
	}
	return false
}

// Folders returns the distinct folder labels in use, sorted.
func Folders(sessions []model.Session) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sessions {
		if s.Folder != "" && !seen[s.Folder] {
			seen[s.Folder] = true
			out = append(out, s.Folder)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions as a table: index, id prefix, date,
// turn count, and title.
func FormatSessionList(sessions []model.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("#", 4) + " " +
		util.PadRight("ID", 8) + " " +
		util.PadRight("Updated", 16) + " " +
		util.PadRight("Turns", 5) + " Title\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	for i, s := range sessions {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		title := util.TruncateWidth(s.Title, 36)
		if s.Pinned {
			title = "* " + title
		}

		sb.WriteString(util.PadRight(strconv.Itoa(i+1), 4) + " " +
			util.PadRight(id, 8) + " " +
			util.PadRight(s.UpdatedAt.Local().Format("2006-01-02 15:04"), 16) + " " +
			util.PadRight(strconv.Itoa(len(s.Turns)), 5) + " " +
			title + "\n")
	}
	return sb.String()
}
