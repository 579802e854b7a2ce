// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jeranaias/neuron/internal/model"
)

// HTMLExporter exports sessions to a standalone HTML page with inline CSS.
// Message bodies go through a Markdown renderer that omits raw HTML, so
// content typed into a chat cannot inject markup into the page.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldhtml.WithHardWraps()),
		),
	}
}

// Export converts a session to HTML.
func (e *HTMLExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, errNilSession
	}

	title := html.EscapeString(sess.Title)
	theme := "dark-theme"
	if strings.EqualFold(e.options.Theme, "light") {
		theme = "light-theme"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<meta name=\"generator\" content=\"neuron\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", title)
	sb.WriteString("<style>\n" + htmlCSS + "</style>\n")
	fmt.Fprintf(&sb, "</head>\n<body class=\"%s\">\n<main>\n", theme)
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", title)

	if e.options.IncludeMetadata {
		sb.WriteString("<dl class=\"meta\">\n")
		if sess.ModelID != "" {
			writeMeta(&sb, "Model", sess.ModelID)
		}
		writeMeta(&sb, "Created", sess.CreatedAt.Format(time.RFC1123))
		writeMeta(&sb, "Updated", sess.UpdatedAt.Format(time.RFC1123))
		writeMeta(&sb, "Messages", fmt.Sprintf("%d", len(sess.Turns)))
		writeMeta(&sb, "Words", fmt.Sprintf("%d", sess.WordCount()))
		if sess.Folder != "" {
			writeMeta(&sb, "Folder", sess.Folder)
		}
		sb.WriteString("</dl>\n")
	}

	for _, t := range sess.Turns {
		body, err := e.render(t.Content)
		if err != nil {
			return nil, fmt.Errorf("render turn %s: %w", t.ID, err)
		}
		fmt.Fprintf(&sb, "<section class=\"turn %s\">\n<header><span class=\"role\">%s</span>",
			html.EscapeString(string(t.Role)), html.EscapeString(roleLabel(t.Role)))
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, " <time datetime=\"%s\">%s</time>",
				t.CreatedAt.Format(time.RFC3339), t.CreatedAt.Local().Format("Jan 2 15:04"))
		}
		sb.WriteString("</header>\n<div class=\"content\">\n")
		sb.WriteString(body)
		sb.WriteString("</div>\n</section>\n")
	}

	sb.WriteString("</main>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) render(content string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeMeta(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "<dt>%s</dt><dd>%s</dd>\n", html.EscapeString(name), html.EscapeString(value))
}

// =============================================================================
// CSS STYLES
// =============================================================================

const htmlCSS = `:root { --radius: 8px; }
.dark-theme {
  --bg: #1e1e2e; --fg: #cdd6f4; --muted: #a6adc8; --border: #45475a;
  --user: #313244; --assistant: #181825; --system: #2a2438; --accent: #89b4fa;
  --code-bg: #11111b;
}
.light-theme {
  --bg: #ffffff; --fg: #1f2328; --muted: #656d76; --border: #d0d7de;
  --user: #ddf4ff; --assistant: #f6f8fa; --system: #fff8c5; --accent: #0969da;
  --code-bg: #eff1f3;
}
* { box-sizing: border-box; }
body {
  margin: 0; background: var(--bg); color: var(--fg);
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
  line-height: 1.6;
}
main { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
h1 { margin-top: 0; border-bottom: 1px solid var(--border); padding-bottom: .5rem; }
.meta { display: grid; grid-template-columns: max-content 1fr; gap: .25rem 1rem; color: var(--muted); font-size: .9rem; }
.meta dt { font-weight: 600; }
.meta dd { margin: 0; }
.turn { border: 1px solid var(--border); border-radius: var(--radius); margin: 1rem 0; padding: .75rem 1rem; }
.turn.user { background: var(--user); }
.turn.assistant { background: var(--assistant); }
.turn.system { background: var(--system); }
.turn header { display: flex; justify-content: space-between; color: var(--muted); font-size: .85rem; }
.turn .role { font-weight: 700; color: var(--accent); }
.content pre { background: var(--code-bg); padding: .75rem; border-radius: var(--radius); overflow-x: auto; }
.content code { font-family: ui-monospace, SFMono-Regular, Menlo, Consolas, monospace; font-size: .9em; }
.content table { border-collapse: collapse; }
.content th, .content td { border: 1px solid var(--border); padding: .25rem .5rem; }
.content a { color: var(--accent); }
@media print { .turn { break-inside: avoid; } }
`
