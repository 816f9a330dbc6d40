package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-mdrender"
)

// Sentinel errors for file discovery.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// FileToRender is a single source and its HTML destination.
type FileToRender struct {
	InputPath  string
	OutputPath string
}

// discoverAll expands every input and drops duplicate sources.
func discoverAll(inputs []string, outputDir string) ([]FileToRender, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	if len(inputs) > 1 && strings.HasSuffix(outputDir, ".html") {
		return nil, fmt.Errorf("%w: --output %s names a single file but %d inputs were given", ErrUsage, outputDir, len(inputs))
	}

	seen := make(map[string]bool)
	var files []FileToRender
	for _, in := range inputs {
		found, err := discoverFiles(in, outputDir)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if seen[f.InputPath] {
				continue
			}
			seen[f.InputPath] = true
			files = append(files, f)
		}
	}
	return files, nil
}

// discoverFiles finds all markdown files under inputPath.
func discoverFiles(inputPath, outputDir string) ([]FileToRender, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateMarkdownExtension(inputPath); err != nil {
			return nil, err
		}
		return []FileToRender{{InputPath: inputPath, OutputPath: resolveOutputPath(inputPath, outputDir, "")}}, nil
	}

	var files []FileToRender
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() || !isMarkdownExt(path) {
			return nil
		}
		files = append(files, FileToRender{InputPath: path, OutputPath: resolveOutputPath(path, outputDir, inputPath)})
		return nil
	})

	return files, err
}

// resolveOutputPath determines the HTML output path for a markdown file.
func resolveOutputPath(inputPath, outputDir, baseInputDir string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)

	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), base+".html")
	}

	if strings.HasSuffix(outputDir, ".html") {
		return outputDir
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			return filepath.Join(outputDir, filepath.Dir(relPath), base+".html")
		}
	}

	return filepath.Join(outputDir, base+".html")
}

func isMarkdownExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	if !isMarkdownExt(path) {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(path))
	}
	return nil
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > mdrender.MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, mdrender.MaxWorkers)
	}
	return nil
}
