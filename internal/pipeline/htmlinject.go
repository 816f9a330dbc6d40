package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// CSSInjector defines the contract for CSS injection into HTML.
type CSSInjector interface {
	InjectCSS(ctx context.Context, htmlContent, cssContent string) string
}

// CSSInjection injects CSS as a <style> block into HTML content.
type CSSInjection struct{}

// InjectCSS inserts a <style> block before </head>, else after <body>,
// else at the start. CSS is sanitized so it cannot close the block.
func (s *CSSInjection) InjectCSS(ctx context.Context, htmlContent, cssContent string) string {
	if cssContent == "" {
		return htmlContent
	}

	if ctx.Err() != nil {
		return htmlContent
	}

	sanitizedCSS := sanitizeCSS(cssContent)
	styleBlock := "<style>" + sanitizedCSS + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if pos := bodyContentStart(htmlContent); pos >= 0 {
		return htmlContent[:pos] + styleBlock + htmlContent[pos:]
	}

	return styleBlock + htmlContent
}

// sanitizeCSS escapes "</" so the stylesheet cannot close its <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// TOCData holds TOC configuration for injection.
type TOCData struct {
	Title    string
	MinDepth int // Minimum heading level (default: 2, skips H1)
	MaxDepth int // Maximum heading level (default: 3)
	// MinEntries is the number of headings below which no TOC is emitted.
	MinEntries int
}

// DefaultTOC is the table of contents the secondary tier injects.
func DefaultTOC() *TOCData {
	return &TOCData{Title: "Contents", MinDepth: 2, MaxDepth: 3, MinEntries: 3}
}

// TOCInjector defines the contract for TOC injection into HTML.
type TOCInjector interface {
	InjectTOC(ctx context.Context, htmlContent string, data *TOCData) (string, error)
}

// headingInfo is a heading found in rendered HTML.
type headingInfo struct {
	Level int
	ID    string
	Text  string // decoded text, inline markup dropped
}

// extractHeadings returns the headings between minDepth and maxDepth that
// carry an id. Headings without one cannot be linked and are skipped.
func extractHeadings(htmlContent string, minDepth, maxDepth int) []headingInfo {
	var (
		headings []headingInfo
		current  *headingInfo
		text     strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(htmlContent))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return headings

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			level := headingLevel(name)
			if level == 0 || current != nil {
				continue
			}
			var id string
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "id" {
					id = string(val)
				}
			}
			if id == "" || level < minDepth || level > maxDepth {
				continue
			}
			current = &headingInfo{Level: level, ID: id}
			text.Reset()

		case html.TextToken:
			if current != nil {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if current != nil && headingLevel(name) == current.Level {
				current.Text = strings.TrimSpace(text.String())
				headings = append(headings, *current)
				current = nil
			}
		}
	}
}

// headingLevel returns 1-6 for h1-h6 and 0 for any other tag.
func headingLevel(tag []byte) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// numberingState hands out outline numbers such as "2.1.". Depth counts
// from the first heading seen and never jumps more than one level deeper
// than the previous heading.
type numberingState struct {
	counters [6]int
	base     int // level of the first heading, 0 before it
	depth    int
}

func newNumberingState() *numberingState {
	return &numberingState{}
}

func (n *numberingState) next(level int) (num string, depth int) {
	if n.base == 0 {
		n.base = level
	}
	depth = max(level-n.base+1, 1)
	if n.depth > 0 {
		depth = min(depth, n.depth+1)
	}

	n.counters[depth-1]++
	clear(n.counters[depth:])
	n.depth = depth

	var b strings.Builder
	for _, c := range n.counters[:depth] {
		b.WriteString(strconv.Itoa(c))
		b.WriteByte('.')
	}
	return b.String(), depth
}

// generateNumberedTOC renders the TOC as nested divs, indented 1.5em per
// level.
func generateNumberedTOC(headings []headingInfo, title string) string {
	if len(headings) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<nav class="toc">`)
	if title != "" {
		fmt.Fprintf(&b, `<h2 class="toc-title">%s</h2>`, html.EscapeString(title))
	}
	b.WriteString(`<div class="toc-list">`)

	numbering := newNumberingState()
	for _, h := range headings {
		num, depth := numbering.next(h.Level)
		b.WriteString(`<div class="toc-item"`)
		if depth > 1 {
			fmt.Fprintf(&b, ` style="padding-left:%.1fem"`, float64(depth-1)*1.5)
		}
		fmt.Fprintf(&b, `><a href="#%s">%s %s</a></div>`, html.EscapeString(h.ID), num, html.EscapeString(h.Text))
	}

	b.WriteString(`</div></nav>`)
	return b.String()
}

// TOCInjection implements TOCInjector.
type TOCInjection struct{}

// NewTOCInjection creates a new TOC injector.
func NewTOCInjection() *TOCInjection {
	return &TOCInjection{}
}

// firstH1End matches the end of the first top-level heading.
var firstH1End = regexp.MustCompile(`(?i)</h1>`)

// InjectTOC extracts headings and injects a numbered TOC after the first
// <h1>, else at the start of <body>. If data is nil, returns htmlContent
// unchanged.
func (t *TOCInjection) InjectTOC(ctx context.Context, htmlContent string, data *TOCData) (string, error) {
	if data == nil {
		return htmlContent, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	headings := extractHeadings(htmlContent, data.MinDepth, data.MaxDepth)
	if len(headings) == 0 || len(headings) < data.MinEntries {
		return htmlContent, nil
	}

	tocHTML := generateNumberedTOC(headings, data.Title)
	if tocHTML == "" {
		return htmlContent, nil
	}

	if loc := firstH1End.FindStringIndex(htmlContent); loc != nil {
		return htmlContent[:loc[1]] + tocHTML + htmlContent[loc[1]:], nil
	}

	if pos := bodyContentStart(htmlContent); pos >= 0 {
		return htmlContent[:pos] + tocHTML + htmlContent[pos:], nil
	}

	return tocHTML + htmlContent, nil
}

// FirstHeading returns the text of the first <h1>, or "".
func FirstHeading(htmlContent string) string {
	headings := extractHeadings(htmlContent, 1, 1)
	if len(headings) == 0 {
		return ""
	}
	return headings[0].Text
}

// bodyContentStart returns the index just past the <body> open tag, or -1.
func bodyContentStart(htmlContent string) int {
	lowerHTML := strings.ToLower(htmlContent)
	idx := strings.Index(lowerHTML, "<body")
	if idx == -1 {
		return -1
	}
	closeIdx := strings.Index(htmlContent[idx:], ">")
	if closeIdx == -1 {
		return -1
	}
	return idx + closeIdx + 1
}
