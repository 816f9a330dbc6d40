package pipeline

import (
	"html"
	"strings"
)

const textFallbackOpen = `<div class="text-fallback" style="font-family: ui-monospace, Menlo, Consolas, monospace; white-space: pre-wrap;">`

// TextFallback renders content as escaped monospace text with <br> line
// breaks. It cannot fail.
func TextFallback(content string) string {
	escaped := html.EscapeString(normalizeLineEndings(content))
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return textFallbackOpen + escaped + "</div>"
}
