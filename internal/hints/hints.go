// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/alnah/go-mdrender/internal/backend"
	"github.com/alnah/go-mdrender/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBackend returns hints for a failed backend resolution.
// registered lists the module names the binary was built with.
func ForBackend(d *backend.Descriptor, registered []string) string {
	if d == nil || d.Success {
		return ""
	}

	var hints []string
	switch d.Code {
	case backend.CodePathNotFound:
		if len(d.AttemptedPaths) > 0 {
			hints = append(hints, "create "+d.AttemptedPaths[len(d.AttemptedPaths)-1])
		}
		hints = append(hints, "or set MDRENDER_BACKEND_DIR / backendBaseDir")
	case backend.CodeImportError:
		if len(registered) > 0 {
			hints = append(hints, "registered modules: "+strings.Join(registered, ", "))
		}
		hints = append(hints, "check the backend's module and version in config")
	case backend.CodeMissingCapabilities:
		hints = append(hints, "backend lacks: "+strings.Join(d.MissingCapabilities, ", "))
		hints = append(hints, "relax requiredCapabilities or upgrade the backend")
	case backend.CodeConfigError:
		hints = append(hints, "check the backends section of your config")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("for large documents, use --timeout flag")
}

// ForContentTooLarge returns a hint for the content size guard.
func ForContentTooLarge(limit int) string {
	return format("limit is " + strconv.Itoa(limit) + " bytes; raise it with --max-size or render.maxContentLength")
}

// ForEncoding returns a hint for undecodable source files.
func ForEncoding() string {
	return format("save the file as UTF-8 (UTF-16 and Windows-1252 are detected too)")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/mdrender/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	// Find a user config path (contains .config/mdrender) to suggest
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/mdrender") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForThemeNotFound returns hints for unknown syntax highlighting themes.
func ForThemeNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

// ForWatch returns hints for file watching errors.
// Detects container environments where bind mounts drop inotify events.
func ForWatch(err error) string {
	var hints []string

	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) {
		hints = append(hints, "raise fs.inotify.max_user_watches")
	}

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != ""

	if inCI || IsInContainer() {
		hints = append(hints, "bind mounts may not deliver file events; render without --watch")
	}

	return formatHints(hints)
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
