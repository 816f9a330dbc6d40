package pipeline

import (
	"context"
	"regexp"
	"strings"
)

// Highlight placeholders use Unicode Private Use Area characters.
// They pass through Goldmark unchanged (no WithUnsafe needed) and are
// turned into <mark> tags after HTML generation.
const (
	MarkStartPlaceholder = "\uE000"
	MarkEndPlaceholder   = "\uE001"
)

const byteOrderMark = "\uFEFF"

var (
	crlfOrCR           = regexp.MustCompile(`\r\n?`)
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// ==text== on a single line, not inside backticks.
	highlightPattern = regexp.MustCompile("==([^=\n`]+?)==")

	fencePattern = regexp.MustCompile("^\\s*(```|~~~)")
)

// Preprocessor prepares Markdown before conversion.
type Preprocessor interface {
	Preprocess(ctx context.Context, content string) string
}

// MarkdownPreprocessor normalizes input for Goldmark.
type MarkdownPreprocessor struct {
	// Highlights enables the ==text== syntax.
	Highlights bool
}

// Preprocess applies every transformation in order.
func (p *MarkdownPreprocessor) Preprocess(ctx context.Context, content string) string {
	if ctx.Err() != nil {
		return content
	}

	content = strings.TrimPrefix(content, byteOrderMark)
	content = normalizeLineEndings(content)
	if p.Highlights {
		content = convertHighlights(content)
	}
	return compressBlankLines(content)
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// compressBlankLines limits consecutive blank lines to 2 outside code fences.
func compressBlankLines(content string) string {
	if !strings.Contains(content, "```") && !strings.Contains(content, "~~~") {
		return multipleBlankLines.ReplaceAllString(content, "\n\n")
	}
	return mapOutsideFences(content, func(s string) string {
		return multipleBlankLines.ReplaceAllString(s, "\n\n")
	})
}

// convertHighlights transforms ==text== to placeholder markers, leaving
// fenced code untouched.
func convertHighlights(content string) string {
	if !strings.Contains(content, "==") {
		return content
	}
	return mapOutsideFences(content, func(s string) string {
		return highlightPattern.ReplaceAllString(s, MarkStartPlaceholder+"$1"+MarkEndPlaceholder)
	})
}

// mapOutsideFences applies fn to every run of lines outside fenced code.
func mapOutsideFences(content string, fn func(string) string) string {
	lines := strings.SplitAfter(content, "\n")
	var out, run strings.Builder
	inFence := false
	flush := func() {
		out.WriteString(fn(run.String()))
		run.Reset()
	}
	for _, line := range lines {
		if fencePattern.MatchString(line) {
			if !inFence {
				flush()
			}
			inFence = !inFence
			out.WriteString(line)
			continue
		}
		if inFence {
			out.WriteString(line)
			continue
		}
		run.WriteString(line)
	}
	flush()
	return out.String()
}

// ConvertMarkPlaceholders converts placeholder markers to <mark> tags.
func ConvertMarkPlaceholders(content string) string {
	return strings.ReplaceAll(
		strings.ReplaceAll(content, MarkStartPlaceholder, "<mark>"),
		MarkEndPlaceholder, "</mark>",
	)
}
