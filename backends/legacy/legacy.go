// Package legacy registers the "legacy" backend: plain CommonMark with no
// extensions and no stylesheet. It only exposes render, so it can serve as
// a named fallback but never passes validation as the primary identity
// with the default required capabilities.
package legacy

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/pipeline"
)

// Module identity.
const (
	ModuleName = "legacy"
	Version    = "0.9.0"
)

func init() {
	backend.Register(ModuleName, Version, Load)
}

// Load builds the legacy symbol table.
func Load(lc backend.LoadContext) (*backend.Module, error) {
	md := goldmark.New()
	render := func(content string, _ backend.RenderParams) (string, error) {
		var buf bytes.Buffer
		if err := md.Convert([]byte(content), &buf); err != nil {
			return "", fmt.Errorf("legacy: %w", err)
		}
		body := buf.String()
		return pipeline.WrapDocument(pipeline.FirstHeading(body), body), nil
	}
	return &backend.Module{
		Name:    ModuleName,
		Version: Version,
		Dir:     lc.Dir,
		Symbols: map[string]any{backend.CapRender: backend.RenderFunc(render)},
	}, nil
}
