// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved chats as Markdown, JSON, or standalone HTML.
//
// # Supported Formats
//
//   - Markdown: the transcript, optionally led by YAML frontmatter
//   - JSON: the session record as stored, suitable for re-import
//   - HTML: a single page with embedded CSS; message text is rendered
//     from Markdown and raw HTML in messages is dropped
//
// # Usage
//
//	exp, err := export.ForPath("trip.html", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	data, err := exp.Export(sess)
package export
