package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceRequest is the payload for POST /api/v1/entities and
// PUT /api/v1/entities/:id/source.
//
// URL is not validated here: URL-shape checking belongs to the fetch stage,
// which reports INVALID_URL without touching the network.
type SourceRequest struct {
	URL string `json:"url"`

	// Filter is the class regex, text fragment or CSS selector.
	Filter string `json:"filter"`

	// FilterMode: "class" (default), "text" or "selector".
	FilterMode string `json:"filter_mode,omitempty" binding:"omitempty,oneof=class css text selector"`

	// Fetch triggers an immediate fetch after the source is set.
	Fetch bool `json:"fetch,omitempty"`
}

// OutputRequest is the payload for PUT /api/v1/entities/:id/output.
type OutputRequest struct {
	// Mode is a mode name ("markup", "clean", "raw", "markdown") or output_option number.
	Mode string `json:"mode" binding:"required"`
}

// TransformRequest is the payload for PUT /api/v1/entities/:id/transform.
type TransformRequest struct {
	// Source is a Go function taking one string, e.g.
	// `func f(x string) string { return strings.ToUpper(x) }`.
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
}

// ConfigFileRequest is the payload for POST /api/v1/config/save and /config/load.
type ConfigFileRequest struct {
	// Path names another board file in the directory of the configured one.
	// Optional. It must be a bare .json, .yaml or .yml file name.
	Path string `json:"path,omitempty"`
}

// Resolve returns the board file the request refers to. An empty Path is the
// configured default; any other Path is placed next to it.
func (r ConfigFileRequest) Resolve(defaultPath string) (string, error) {
	if r.Path == "" {
		return defaultPath, nil
	}
	if strings.ContainsAny(r.Path, `/\`) || r.Path != filepath.Base(r.Path) || strings.HasPrefix(r.Path, ".") {
		return "", NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("path %q must be a file name without directories", r.Path), nil)
	}
	switch strings.ToLower(filepath.Ext(r.Path)) {
	case ".json", ".yaml", ".yml":
	default:
		return "", NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("path %q must end in .json, .yaml or .yml", r.Path), nil)
	}
	return filepath.Join(filepath.Dir(defaultPath), r.Path), nil
}
