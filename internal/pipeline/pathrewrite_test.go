package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRewriteRelativePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := "file://" + filepath.ToSlash(dir)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "relative image",
			input: `<p><img src="images/a.png" alt="a"/></p>`,
			want:  []string{`src="` + base + `/images/a.png"`, `alt="a"`},
		},
		{
			name:  "relative link keeps fragment",
			input: `<a href="docs/guide.md#setup">guide</a>`,
			want:  []string{`href="` + base + `/docs/guide.md#setup"`},
		},
		{
			name:  "percent encoded path",
			input: `<img src="my%20pic.png"/>`,
			want:  []string{`src="` + base + `/my%20pic.png"`},
		},
		{
			name:  "video and poster",
			input: `<video src="clip.mp4" poster="still.jpg"></video>`,
			want:  []string{`src="` + base + `/clip.mp4"`, `poster="` + base + `/still.jpg"`},
		},
		{
			name:  "absolute url untouched",
			input: `<img src="https://example.com/a.png"/>`,
			want:  []string{`src="https://example.com/a.png"`},
		},
		{
			name:  "mailto untouched",
			input: `<a href="mailto:a@b.c">mail</a>`,
			want:  []string{`href="mailto:a@b.c"`},
		},
		{
			name:  "anchor untouched",
			input: `<a href="#top">top</a>`,
			want:  []string{`href="#top"`},
		},
		{
			name:  "traversal untouched",
			input: `<img src="../../etc/passwd"/>`,
			want:  []string{`src="../../etc/passwd"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RewriteRelativePaths(tt.input, dir)
			if err != nil {
				t.Fatalf("RewriteRelativePaths() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("RewriteRelativePaths() = %s\nmissing %s", got, want)
				}
			}
			if strings.Contains(got, "<html>") {
				t.Error("fragment was wrapped in a document")
			}
		})
	}
}

func TestRewriteRelativePaths_FullDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := "<!DOCTYPE html>\n<html><head><title>x</title></head><body><img src=\"a.png\"/></body></html>"

	got, err := RewriteRelativePaths(input, dir)
	if err != nil {
		t.Fatalf("RewriteRelativePaths() error = %v", err)
	}
	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("doctype lost: %s", got)
	}
	if !strings.Contains(got, "file://"+filepath.ToSlash(dir)+"/a.png") {
		t.Errorf("image not rewritten: %s", got)
	}
}

func TestRewriteRelativePaths_EmptyDir(t *testing.T) {
	t.Parallel()

	input := `<img src="a.png"/>`
	got, err := RewriteRelativePaths(input, "")
	if err != nil || got != input {
		t.Errorf("RewriteRelativePaths(empty dir) = %q, %v; want input unchanged", got, err)
	}
}

func TestIsRelativePath(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"a.png":                 true,
		"./a.png":               true,
		"../a.png":              true,
		"":                      false,
		"#frag":                 false,
		"//cdn.example.com/a":   false,
		"/abs/a.png":            false,
		"http://example.com":    false,
		"data:image/png;base64": false,
	}
	for in, want := range tests {
		if got := isRelativePath(in); got != want {
			t.Errorf("isRelativePath(%q) = %v, want %v", in, got, want)
		}
	}
}
