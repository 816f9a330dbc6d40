// Package assets provides the stylesheets embedded in rendered HTML.
//
// # Loader Architecture
//
// The package implements a layered loading system:
//
//	StyleLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem (baseline, zoom)
//	    ├── FilesystemLoader  - loads from a directory on disk
//	    └── StyleResolver     - combines both with custom-first fallback
//
// EmbeddedLoader provides the built-in baseline and zoom stylesheets compiled
// into the binary.
//
// FilesystemLoader lets backends and users provide stylesheets from a
// directory, with path traversal protection and symlink resolution.
//
// StyleResolver tries the custom FilesystemLoader first and falls back to
// EmbeddedLoader when the style is not found there. This enables overriding
// one stylesheet while keeping the others.
//
// # Directory Structure
//
//	{basePath}/
//	└── styles/
//	    └── {name}.css
//
// # Security
//
// Style names are validated to prevent path traversal attacks.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package assets
