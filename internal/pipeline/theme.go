package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultTheme is the chroma style used when none is requested.
const DefaultTheme = "github"

var themeCSS sync.Map // theme name -> CSS

// ThemeCSS returns the chroma stylesheet for the class-based highlighting
// Goldmark emits. Unknown themes resolve to chroma's fallback style.
func ThemeCSS(theme string) (string, error) {
	if theme == "" {
		theme = DefaultTheme
	}
	if css, ok := themeCSS.Load(theme); ok {
		return css.(string), nil
	}

	var b strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&b, styles.Get(theme)); err != nil {
		return "", fmt.Errorf("writing %s theme CSS: %w", theme, err)
	}

	css := b.String()
	themeCSS.Store(theme, css)
	return css, nil
}

// Themes lists the available chroma style names.
func Themes() []string {
	names := styles.Names()
	sort.Strings(names)
	return names
}

// IsTheme reports whether name is a registered chroma style.
func IsTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}
