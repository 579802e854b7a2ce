// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/neuron/internal/model"
)

// ErrUnsupportedFormat is returned for a format name no exporter handles.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// errNilSession is returned when Export is handed nothing to export.
var errNilSession = errors.New("session is nil")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders one session in a file format.
type Exporter interface {
	// Export converts a session to the target format and returns the content.
	Export(sess *model.Session) ([]byte, error)

	// FileExtension returns the extension, including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a metadata header (title, model, dates, counts).
	IncludeMetadata bool

	// IncludeTimestamps shows per-message times in HTML output.
	IncludeTimestamps bool

	// Theme for HTML export, "light" or "dark".
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// =============================================================================
// SELECTION
// =============================================================================

// ForFormat returns the exporter for a format name: md/markdown, json, or
// html/htm.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// ForPath picks the exporter from path's extension. Unknown or missing
// extensions get Markdown.
func ForPath(path string, opts *Options) Exporter {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	exp, err := ForFormat(ext, opts)
	if err != nil {
		return NewMarkdownExporter(opts)
	}
	return exp
}

// FileName suggests a file name for sess in exp's format.
func FileName(sess *model.Session, exp Exporter) string {
	name := sanitizeFilename(sess.Title)
	if name == "" {
		name = sess.ID
	}
	return name + exp.FileExtension()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// Windows or Unix and caps the length at 50 runes.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return strings.Trim(string(out), "._-")
}

func roleLabel(r model.Role) string {
	return r.DisplayName()
}
