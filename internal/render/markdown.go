package render

import (
	"bytes"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is escaped: summaries come from a remote service.
var md = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Markdown converts advice or summary text to safe HTML for the web page.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// MustMarkdown is Markdown for templates; on error it falls back to escaped text.
func MustMarkdown(src string) template.HTML {
	out, err := Markdown(src)
	if err != nil {
		return template.HTML("<pre>" + html.EscapeString(src) + "</pre>")
	}
	return out
}

var boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

// TelegramHTML maps the small markdown subset used in advice (bold spans and
// "- " bullets) to Telegram's HTML parse mode.
func TelegramHTML(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		l = html.EscapeString(l)
		l = boldRe.ReplaceAllString(l, "<b>$1</b>")
		if strings.HasPrefix(l, "- ") {
			l = "• " + strings.TrimPrefix(l, "- ")
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}
