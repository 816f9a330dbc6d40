// Package pipeline implements the built-in Markdown-to-HTML stages used
// below the dynamic backend tier.
//
// This package handles:
//   - Markdown preprocessing (line normalization, BOM removal, highlight syntax)
//   - Markdown to HTML conversion via Goldmark (the secondary tier)
//   - CSS injection into HTML documents, including chroma theme CSS
//   - Numbered table of contents generation and injection
//   - Relative path rewriting against a source directory
//   - Plain-text fallback rendering (the last tier)
//
// Tier selection, caching, and error reporting live in the root mdrender
// package. Stages here return errors and never log.
package pipeline
