package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/alnah/go-mdrender/internal/assets"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// documentTemplate wraps Goldmark's fragment output in a complete HTML5 document.
const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body>
%s
</body>
</html>`

// WrapDocument places body in an HTML5 document titled title.
func WrapDocument(title, body string) string {
	if title == "" {
		title = "Document"
	}
	return fmt.Sprintf(documentTemplate, html.EscapeString(title), body)
}

// ConvertOptions control one conversion.
type ConvertOptions struct {
	SyntaxHighlight bool
	Theme           string
	TOC             *TOCData // nil disables the table of contents
}

// HTMLConverter abstracts Markdown to HTML conversion.
type HTMLConverter interface {
	ToHTML(ctx context.Context, content string, opts ConvertOptions) (string, error)
}

// GoldmarkConverter converts Markdown to HTML using goldmark (pure Go).
// It holds two engines so the highlighting toggle costs nothing per call.
type GoldmarkConverter struct {
	plain       goldmark.Markdown
	highlighted goldmark.Markdown
	pre         Preprocessor
	css         CSSInjector
	toc         TOCInjector
	styles      assets.StyleLoader
}

// ConverterOption configures a GoldmarkConverter.
type ConverterOption func(*GoldmarkConverter)

// WithStyleLoader sets where the baseline stylesheet is loaded from.
func WithStyleLoader(loader assets.StyleLoader) ConverterOption {
	return func(c *GoldmarkConverter) {
		if loader != nil {
			c.styles = loader
		}
	}
}

// NewGoldmarkConverter creates a GoldmarkConverter with GFM extensions,
// footnotes, heading IDs, and optional syntax highlighting.
func NewGoldmarkConverter(opts ...ConverterOption) *GoldmarkConverter {
	c := &GoldmarkConverter{
		plain:       newGoldmark(false),
		highlighted: newGoldmark(true),
		pre:         &MarkdownPreprocessor{Highlights: true},
		css:         &CSSInjection{},
		toc:         NewTOCInjection(),
		styles:      assets.NewEmbeddedLoader(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newGoldmark(highlight bool) goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.GFM,      // Tables, strikethrough, autolinks, task lists
		extension.Footnote, // [^1] footnotes
	}
	if highlight {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true), // theme CSS is injected separately
			),
		))
	}
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(), // required for TOC anchors
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(),
			// WithUnsafe is intentionally not used: raw HTML in Markdown is dropped.
		),
	)
}

// ToHTML converts Markdown content to a standalone HTML5 document with the
// baseline stylesheet and, when highlighting, the theme CSS.
// Supports context cancellation via goroutine + select since Goldmark
// doesn't natively support context.
func (c *GoldmarkConverter) ToHTML(ctx context.Context, content string, opts ConvertOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: panic: %v", ErrHTMLConversion, r)}
			}
		}()
		out, err := c.convert(ctx, content, opts)
		done <- result{html: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

func (c *GoldmarkConverter) convert(ctx context.Context, content string, opts ConvertOptions) (string, error) {
	md := c.plain
	if opts.SyntaxHighlight {
		md = c.highlighted
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(c.pre.Preprocess(ctx, content)), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}

	body := ConvertMarkPlaceholders(buf.String())
	doc := WrapDocument(FirstHeading(body), body)

	baseline, err := c.styles.LoadStyle(assets.BaselineStyleName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}
	doc = c.css.InjectCSS(ctx, doc, baseline)

	if opts.SyntaxHighlight {
		theme, err := ThemeCSS(opts.Theme)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
		}
		doc = c.css.InjectCSS(ctx, doc, theme)
	}

	return c.toc.InjectTOC(ctx, doc, opts.TOC)
}

// Compile-time interface check.
var _ HTMLConverter = (*GoldmarkConverter)(nil)
