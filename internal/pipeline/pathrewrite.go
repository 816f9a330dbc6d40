package pipeline

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RewriteRelativePaths converts relative media and link paths to absolute
// file:// URLs so a rendered document opened from anywhere still finds the
// files next to its Markdown source. If sourceDir is empty, returns the HTML
// unchanged.
//
// Rewrites:
//   - img[src], video[src], audio[src], source[src], video[poster]
//   - a[href]: relative file paths (not anchors, not URLs)
//
// Does not rewrite srcset, CSS url() references, script[src], or absolute
// paths and URLs.
func RewriteRelativePaths(htmlContent, sourceDir string) (string, error) {
	if sourceDir == "" {
		return htmlContent, nil
	}

	absSourceDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", err
	}

	nodes, err := parseDocumentOrFragment(htmlContent)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, n := range nodes {
		rewriteTree(n, absSourceDir)
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// parseDocumentOrFragment parses a full document as one root node and
// anything else as body children, so fragments come back unwrapped.
func parseDocumentOrFragment(content string) ([]*html.Node, error) {
	head := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		doc, err := html.Parse(strings.NewReader(content))
		if err != nil {
			return nil, err
		}
		return []*html.Node{doc}, nil
	}

	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	return html.ParseFragment(strings.NewReader(content), body)
}

// linkAttrs lists the attributes rewritten per element.
var linkAttrs = map[atom.Atom][]string{
	atom.Img:    {"src"},
	atom.Audio:  {"src"},
	atom.Source: {"src"},
	atom.Video:  {"src", "poster"},
	atom.A:      {"href"},
}

func rewriteTree(n *html.Node, sourceDir string) {
	if n.Type == html.ElementNode {
		for _, key := range linkAttrs[n.DataAtom] {
			for i := range n.Attr {
				if n.Attr[i].Key != key {
					continue
				}
				if abs, ok := resolveLink(n.Attr[i].Val, sourceDir); ok {
					n.Attr[i].Val = abs
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteTree(c, sourceDir)
	}
}

// resolveLink returns the file:// form of a relative link, keeping any
// ?query or #fragment. Links that leave sourceDir are not rewritten.
func resolveLink(link, sourceDir string) (string, bool) {
	if !isRelativePath(link) {
		return "", false
	}

	path, suffix := link, ""
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		path, suffix = link[:i], link[i:]
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}

	abs := filepath.Join(sourceDir, path)
	if !isPathUnderDir(abs, sourceDir) {
		return "", false
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String() + suffix, true
}

// isRelativePath reports whether link names a file relative to the source.
// Anchors, protocol-relative URLs, absolute paths and anything with a
// scheme are left alone.
func isRelativePath(link string) bool {
	if link == "" || strings.HasPrefix(link, "#") || strings.HasPrefix(link, "//") || filepath.IsAbs(link) {
		return false
	}
	u, err := url.Parse(link)
	return err != nil || u.Scheme == ""
}

func isPathUnderDir(absPath, dir string) bool {
	dir = filepath.Clean(dir)
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(filepath.Clean(absPath)+string(filepath.Separator), dir)
}
