// Package render turns pitches into HTML: markdown bodies, the server-rendered
// screens and the document the PDF exporter prints.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Raw HTML inside generated markdown is dropped by the renderer; landing
// markup is shown separately in a sandboxed frame.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// Markdown converts generated pitch text to HTML.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

var (
	headingRe = regexp.MustCompile(`(?m)^#+\s*`)
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	markRe    = regexp.MustCompile("[_*~`]")
)

// PlainText strips markdown decoration for the share view and the PDF body.
func PlainText(src string) string {
	s := headingRe.ReplaceAllString(src, "")
	s = boldRe.ReplaceAllString(s, "$1")
	s = markRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
