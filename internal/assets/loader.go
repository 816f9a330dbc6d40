package assets

// StyleLoader defines the contract for loading CSS stylesheets.
type StyleLoader interface {
	// LoadStyle loads a stylesheet by name (without .css extension).
	// Returns ErrStyleNotFound if the style doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadStyle(name string) (string, error)
}

// Built-in style names.
const (
	BaselineStyleName = "baseline"
	ZoomStyleName     = "zoom"
)
