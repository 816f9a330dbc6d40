package mdrender

import (
	"context"
	"fmt"

	"github.com/alnah/go-mdrender/internal/assets"
	"github.com/alnah/go-mdrender/internal/pipeline"
)

// goldmarkSecondary is the default tier 2 renderer.
type goldmarkSecondary struct {
	conv *pipeline.GoldmarkConverter
	toc  *pipeline.TOCData // nil disables the table of contents
}

func newGoldmarkSecondary(stylesPath string, toc bool) (*goldmarkSecondary, error) {
	var convOpts []pipeline.ConverterOption
	if stylesPath != "" {
		styles, err := assets.NewStyleResolver(stylesPath)
		if err != nil {
			return nil, fmt.Errorf("loading styles: %w", err)
		}
		convOpts = append(convOpts, pipeline.WithStyleLoader(styles))
	}

	s := &goldmarkSecondary{conv: pipeline.NewGoldmarkConverter(convOpts...)}
	if toc {
		s.toc = pipeline.DefaultTOC()
	}
	return s, nil
}

// RenderHTML implements SecondaryRenderer.
func (s *goldmarkSecondary) RenderHTML(ctx context.Context, content string, opts RenderOptions) (string, error) {
	return s.conv.ToHTML(ctx, content, pipeline.ConvertOptions{
		SyntaxHighlight: opts.EnableSyntaxHighlight,
		Theme:           opts.Theme,
		TOC:             s.toc,
	})
}

// Compile-time interface check.
var _ SecondaryRenderer = (*goldmarkSecondary)(nil)
