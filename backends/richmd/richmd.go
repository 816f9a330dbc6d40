// Package richmd is the high-fidelity rendering backend. Importing it for
// side effects registers the "richmd" module with the backend registry:
//
//	import _ "github.com/alnah/go-mdrender/backends/richmd"
//
// A backend directory may carry a styles/ folder. styles/baseline.css
// replaces the bundled baseline stylesheet and styles/<theme>.css replaces
// the generated chroma theme of the same name.
package richmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/alnah/go-mdrender/internal/assets"
	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/pipeline"
)

// Module identity.
const (
	ModuleName = "richmd"
	Version    = "1.2.0"
)

const zoomOpen = `<div class="zoom-container">`

func init() {
	backend.Register(ModuleName, Version, Load)
}

// Load builds the richmd symbol table for the given load context.
func Load(lc backend.LoadContext) (*backend.Module, error) {
	r, err := newRenderer(lc.Dir)
	if err != nil {
		return nil, err
	}
	return &backend.Module{
		Name:    ModuleName,
		Version: Version,
		Dir:     lc.Dir,
		Symbols: map[string]any{
			backend.CapRender:     backend.RenderFunc(r.render),
			backend.CapRenderZoom: backend.RenderFunc(r.renderZoom),
			backend.CapVersion:    func() string { return Version },
			backend.CapThemes:     pipeline.Themes,
		},
	}, nil
}

type renderer struct {
	plain       goldmark.Markdown
	highlighted goldmark.Markdown
	pre         pipeline.Preprocessor
	css         pipeline.CSSInjector
	styles      assets.StyleLoader
}

func newRenderer(dir string) (*renderer, error) {
	styles, err := assets.NewStyleResolver(dir)
	if err != nil {
		return nil, fmt.Errorf("richmd: %w", err)
	}
	return &renderer{
		plain:       newGoldmark(false),
		highlighted: newGoldmark(true),
		pre:         &pipeline.MarkdownPreprocessor{Highlights: true},
		css:         &pipeline.CSSInjection{},
		styles:      styles,
	}, nil
}

func newGoldmark(highlight bool) goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
		extension.DefinitionList,
		extension.Typographer,
	}
	if highlight {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		))
	}
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithXHTML()),
	)
}

func (r *renderer) render(content string, params backend.RenderParams) (string, error) {
	return r.document(content, params, false)
}

func (r *renderer) renderZoom(content string, params backend.RenderParams) (string, error) {
	return r.document(content, params, true)
}

func (r *renderer) document(content string, params backend.RenderParams, zoom bool) (string, error) {
	ctx := context.Background()

	md := r.plain
	if params.SyntaxHighlight {
		md = r.highlighted
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(r.pre.Preprocess(ctx, content)), &buf); err != nil {
		return "", fmt.Errorf("richmd: %w", err)
	}

	body := pipeline.ConvertMarkPlaceholders(buf.String())
	title := pipeline.FirstHeading(body)
	if zoom {
		body = zoomOpen + "\n" + body + "</div>"
	}
	doc := pipeline.WrapDocument(title, body)

	baseline, err := r.styles.LoadStyle(assets.BaselineStyleName)
	if err != nil {
		return "", fmt.Errorf("richmd: %w", err)
	}
	doc = r.css.InjectCSS(ctx, doc, baseline)

	if zoom {
		zoomCSS, err := r.styles.LoadStyle(assets.ZoomStyleName)
		if err != nil {
			return "", fmt.Errorf("richmd: %w", err)
		}
		doc = r.css.InjectCSS(ctx, doc, zoomCSS)
	}

	if params.SyntaxHighlight {
		themeCSS, err := r.themeCSS(params.Theme)
		if err != nil {
			return "", fmt.Errorf("richmd: %w", err)
		}
		doc = r.css.InjectCSS(ctx, doc, themeCSS)
	}

	return doc, nil
}

// themeCSS prefers a stylesheet shipped in the backend directory.
func (r *renderer) themeCSS(theme string) (string, error) {
	if theme == "" {
		theme = pipeline.DefaultTheme
	}
	css, err := r.styles.LoadStyle(theme)
	if err == nil {
		return css, nil
	}
	if !errors.Is(err, assets.ErrStyleNotFound) && !errors.Is(err, assets.ErrInvalidAssetName) {
		return "", err
	}
	return pipeline.ThemeCSS(theme)
}
