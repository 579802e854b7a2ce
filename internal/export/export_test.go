// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/neuron/internal/model"
)

func testSession() *model.Session {
	sess := model.NewSession("gpt-4o-mini")
	sess.Title = "Go <b>tips</b>"
	sess.Append(model.NewTurn(model.RoleUser, "How do I write a **table test**?"))
	sess.Append(model.NewTurn(model.RoleAssistant, "Use a slice of cases:\n\n```go\nfor _, tc := range cases {}\n```"))
	return sess
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"md", ".md"},
		{"Markdown", ".md"},
		{"json", ".json"},
		{"html", ".html"},
		{"HTM", ".html"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := ForFormat(tt.format, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.FileExtension())
		})
	}

	_, err := ForFormat("pdf", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestForPath(t *testing.T) {
	assert.Equal(t, ".html", ForPath("out/chat.HTML", nil).FileExtension())
	assert.Equal(t, ".json", ForPath("chat.json", nil).FileExtension())
	assert.Equal(t, ".md", ForPath("chat.txt", nil).FileExtension())
	assert.Equal(t, ".md", ForPath("chat", nil).FileExtension())
}

func TestNilSession(t *testing.T) {
	for _, format := range []string{"md", "json", "html"} {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exp.Export(nil)
		assert.Error(t, err, format)
	}
}

func TestHTMLExport_EscapesMarkup(t *testing.T) {
	sess := testSession()
	sess.Append(model.NewTurn(model.RoleUser, `<script>alert("x")</script> and <img src=x onerror=alert(1)>`))

	out, err := NewHTMLExporter(DefaultOptions()).Export(sess)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "onerror=")
	assert.Contains(t, page, "<title>Go &lt;b&gt;tips&lt;/b&gt;</title>")
	assert.Contains(t, page, "<strong>table test</strong>")
	assert.Contains(t, page, "<pre><code class=\"language-go\">")
	assert.Contains(t, page, `class="dark-theme"`)
}

func TestHTMLExport_Options(t *testing.T) {
	opts := &Options{Theme: "light"}
	out, err := NewHTMLExporter(opts).Export(testSession())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `class="light-theme"`)
	assert.NotContains(t, page, `<dl class="meta">`)
	assert.NotContains(t, page, "<time")
}

func TestMarkdownExport_Frontmatter(t *testing.T) {
	sess := testSession()
	sess.Title = "line one\ninjected: true"
	sess.Folder = "work"

	out, err := NewMarkdownExporter(DefaultOptions()).Export(sess)
	require.NoError(t, err)
	doc := string(out)

	require.True(t, strings.HasPrefix(doc, "---\n"))
	end := strings.Index(doc[4:], "---\n")
	require.Greater(t, end, 0)
	front := doc[:end+4]
	assert.Contains(t, front, `title: "line one\ninjected: true"`)
	assert.NotContains(t, front, "\ninjected: true\n")
	assert.Contains(t, doc, "model: gpt-4o-mini\n")
	assert.Contains(t, doc, "folder: work\n")
	assert.Contains(t, doc, "messages: 2\n")
	assert.Contains(t, doc, "table test")
}

func TestMarkdownExport_WithoutMetadata(t *testing.T) {
	sess := testSession()
	out, err := NewMarkdownExporter(&Options{}).Export(sess)
	require.NoError(t, err)
	assert.Equal(t, sess.ExportMarkdown(), string(out))
}

func TestJSONExport_RoundTrips(t *testing.T) {
	sess := testSession()
	out, err := NewJSONExporter(nil).Export(sess)
	require.NoError(t, err)

	var back model.Session
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, sess.ID, back.ID)
	assert.Len(t, back.Turns, 2)
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, `""`, escapeYAML(""))
	assert.Equal(t, "plain title", escapeYAML("plain title"))
	assert.Equal(t, `"a: b"`, escapeYAML("a: b"))
	assert.Equal(t, `"say \"hi\""`, escapeYAML(`say "hi"`))
	assert.Equal(t, `" padded"`, escapeYAML(" padded"))
}

func TestFileName(t *testing.T) {
	sess := testSession()
	sess.Title = `Plan: a/b "trip"`
	assert.Equal(t, "Plan-_a-b_-trip.md", FileName(sess, NewMarkdownExporter(nil)))

	sess.Title = "   "
	assert.Equal(t, sess.ID+".html", FileName(sess, NewHTMLExporter(nil)))
}
