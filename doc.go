// Package mdrender renders Markdown to HTML through a cascade of renderers
// that degrades instead of failing.
//
// # Quick Start
//
// Create a pipeline, render, and close when done:
//
//	p, err := mdrender.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	res := p.RenderString(ctx, "# Hello\n\nWorld", nil)
//	if !res.Success {
//	    log.Fatal(res.Err())
//	}
//	fmt.Println(res.HTML, res.Tier)
//
// Render never returns an error value: failures come back as a
// RenderResult with Success false, an ErrorType and an ErrorMessage.
// Use RenderResult.Err to match them with errors.Is.
//
// # Renderer Tiers
//
// Each render tries, in order:
//
//  1. The primary backend, a registered module resolved from a search
//     path and validated to expose render and render_zoom.
//  2. The secondary library, goldmark with GFM and chroma highlighting.
//  3. The text fallback, HTML-escaped content in a pre block.
//
// A tier that errors, panics or returns nothing is reported and the next
// tier runs. When every enabled tier fails the result has ErrorType
// AllRenderersFailed.
//
// # Backend Resolution
//
// The primary backend is resolved lazily on first use and shared by every
// later render. Backend configs come from a ConfigSource; named fallbacks
// are tried when the configured backend cannot load. Reconfigure reloads
// the configs and resolves again on the next render:
//
//	p, err := mdrender.New(
//	    mdrender.WithBackendName("primary"),
//	    mdrender.WithFallbacks("legacy"),
//	    mdrender.WithBackendBaseDir("/opt/mdrender/backends"),
//	)
//
// # Options
//
// Pipeline defaults come from DefaultRenderOptions or WithDefaults. Per
// call, an Overrides value replaces only the fields it sets:
//
//	res := p.RenderString(ctx, md, &mdrender.Overrides{
//	    EnableZoom: mdrender.Bool(true),
//	    Theme:      mdrender.String("dark"),
//	})
//
// # Caching
//
// Successful results are cached by content and effective options. A cache
// hit returns a copy with Cached set; callers may mutate results freely.
// RenderSource tracks the files behind cached entries so InvalidatePath,
// or WithWatch, can evict them when a file changes.
//
// # Concurrency
//
// A Pipeline is safe for concurrent use. Warmup and Prerender run in the
// background; Close waits for them.
package mdrender
