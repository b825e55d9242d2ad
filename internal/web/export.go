package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"debate_arena/internal/debate"
	"debate_arena/internal/session"
)

var transcriptPage = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 48rem; margin: 2rem auto; font-family: sans-serif; line-height: 1.5; padding: 0 1rem; }
blockquote { color: #555; border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

var transcriptMarkdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

var transcriptRenderMu sync.Mutex

func roleHeading(turn debate.Turn) string {
	switch {
	case turn.IsVerdict:
		return "Verdict"
	case turn.Role == debate.RoleAssistant:
		return "Answer"
	case turn.Round > 0:
		return fmt.Sprintf("%s, round %d", capitalize(string(turn.Role)), turn.Round)
	default:
		return capitalize(string(turn.Role))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TranscriptMarkdown flattens a saved run into a markdown document.
func TranscriptMarkdown(rec session.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", rec.Question)
	for _, side := range debate.Sides() {
		sources := rec.Sources[side]
		if len(sources) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nSources (%s):\n", side)
		for _, src := range sources {
			fmt.Fprintf(&b, "- <%s>\n", src)
		}
	}
	for _, turn := range rec.Turns {
		if turn.Status != debate.TurnDone {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", roleHeading(turn))
		if turn.Reasoning != "" {
			for _, line := range strings.Split(strings.TrimSpace(turn.Reasoning), "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(turn.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTranscriptHTML renders the markdown transcript into a standalone
// HTML page.
func RenderTranscriptHTML(rec session.Record) (string, error) {
	md := TranscriptMarkdown(rec)

	var content bytes.Buffer
	transcriptRenderMu.Lock()
	err := transcriptMarkdownRenderer.Convert([]byte(md), &content)
	transcriptRenderMu.Unlock()
	if err != nil {
		escaped := template.HTMLEscapeString(md)
		content.Reset()
		content.WriteString("<pre>")
		content.WriteString(escaped)
		content.WriteString("</pre>")
	}

	var out bytes.Buffer
	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: rec.Question,
		Body:  template.HTML(content.String()),
	}
	if err := transcriptPage.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
