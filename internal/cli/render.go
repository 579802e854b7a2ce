// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer formats assistant replies. Markdown is rendered with glamour
// when enabled and stdout is a terminal; otherwise text passes through.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer builds a renderer for theme (auto, dark, light, notty).
func NewRenderer(theme string, markdown bool) *Renderer {
	if !markdown || !IsStdoutTTY() {
		return &Renderer{}
	}

	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
	}
	switch theme {
	case "dark", "light", "notty":
		opts = append(opts, glamour.WithStandardStyle(theme))
	default:
		if HasDarkBackground() {
			opts = append(opts, glamour.WithStandardStyle("dark"))
		} else {
			opts = append(opts, glamour.WithStandardStyle("light"))
		}
	}

	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{term: term}
}

// Markdown reports whether replies are rendered as markdown.
func (r *Renderer) Markdown() bool {
	return r.term != nil
}

// Render returns content formatted for display. Rendering failures fall
// back to the original text.
func (r *Renderer) Render(content string) string {
	if r.term == nil {
		return ensureNewline(content)
	}
	out, err := r.term.Render(content)
	if err != nil {
		return ensureNewline(content)
	}
	return out
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
