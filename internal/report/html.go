package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToHTML converts a markdown report into an HTML fragment.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("markdown to html: %w", err)
	}
	return buf.String(), nil
}

// Page wraps an HTML fragment into a standalone document.
func Page(title, body string) string {
	return "<!DOCTYPE html>\n<html lang=\"ru\">\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		html.EscapeString(title) + "</title>\n<style>table{border-collapse:collapse}td,th{border:1px solid #999;padding:2px 6px}</style>\n</head>\n<body>\n" +
		body + "</body>\n</html>\n"
}

// Preview renders markdown for a terminal. style is a glamour standard
// style ("dark", "light", "notty"); empty picks "notty".
func Preview(md, style string, width int) (string, error) {
	if style == "" {
		style = "notty"
	}
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("preview renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("preview render: %w", err)
	}
	return out, nil
}
