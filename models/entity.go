package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterMode selects how the filter pattern narrows a document.
type FilterMode int

const (
	// FilterByClass matches the pattern as a regular expression against
	// element class values.
	FilterByClass FilterMode = iota
	// FilterByText keeps elements whose flattened text contains the pattern.
	FilterByText
	// FilterBySelector treats the pattern as a CSS selector.
	FilterBySelector
)

func (m FilterMode) String() string {
	switch m {
	case FilterByClass:
		return "class"
	case FilterByText:
		return "text"
	case FilterBySelector:
		return "selector"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(m))
	}
}

// ParseFilterMode accepts "class" (alias "css"), "text" and "selector".
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "css":
		return FilterByClass, nil
	case "text":
		return FilterByText, nil
	case "selector":
		return FilterBySelector, nil
	}
	return FilterByClass, fmt.Errorf("unknown filter mode %q", s)
}

// OutputMode selects how the extracted fragment is rendered. The numeric
// values are the persisted output_option.
type OutputMode int

const (
	OutputMarkup    OutputMode = 0
	OutputCleanText OutputMode = 1
	OutputRawText   OutputMode = 2
	OutputMarkdown  OutputMode = 3
)

func (m OutputMode) String() string {
	switch m {
	case OutputMarkup:
		return "markup"
	case OutputCleanText:
		return "clean"
	case OutputRawText:
		return "raw"
	case OutputMarkdown:
		return "markdown"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// Valid reports whether m is one of the known output modes.
func (m OutputMode) Valid() bool {
	return m >= OutputMarkup && m <= OutputMarkdown
}

// ParseOutputMode accepts the mode names ("markup"/"html", "clean", "raw",
// "markdown") or their persisted numbers.
func ParseOutputMode(s string) (OutputMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if m := OutputMode(n); m.Valid() {
			return m, nil
		}
		return OutputMarkup, fmt.Errorf("unknown output option %d", n)
	}
	switch s {
	case "markup", "html":
		return OutputMarkup, nil
	case "clean", "text":
		return OutputCleanText, nil
	case "raw":
		return OutputRawText, nil
	case "markdown", "md":
		return OutputMarkdown, nil
	}
	return OutputMarkup, fmt.Errorf("unknown output mode %q", s)
}

// Record is one persisted entity configuration. It never carries fetched or
// derived state.
type Record struct {
	URL             string `json:"url" yaml:"url"`
	Filter          string `json:"filter" yaml:"filter"`
	IsWithCSS       bool   `json:"is_with_css" yaml:"is_with_css"`
	OutputOption    int    `json:"output_option" yaml:"output_option"`
	IsWithTransform bool   `json:"is_with_transform" yaml:"is_with_transform"`
	Transform       string `json:"transform" yaml:"transform"`

	// FilterMode overrides IsWithCSS when set. Only needed for "selector".
	FilterMode string `json:"filter_mode,omitempty" yaml:"filter_mode,omitempty"`
}

// Mode resolves the record's filter mode.
func (r Record) Mode() FilterMode {
	if r.FilterMode != "" {
		if m, err := ParseFilterMode(r.FilterMode); err == nil {
			return m
		}
	}
	if r.IsWithCSS {
		return FilterByClass
	}
	return FilterByText
}

// Output resolves the record's output mode; unknown options fall back to markup.
func (r Record) Output() OutputMode {
	if m := OutputMode(r.OutputOption); m.Valid() {
		return m
	}
	return OutputMarkup
}

// PageMetadata is best-effort page information gathered after a fetch.
type PageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
}

// EntityView is a read-only snapshot of one entity for callers.
type EntityView struct {
	ID               string       `json:"id"`
	URL              string       `json:"url"`
	Filter           string       `json:"filter"`
	FilterMode       string       `json:"filter_mode"`
	OutputMode       string       `json:"output_mode"`
	TransformEnabled bool         `json:"transform_enabled"`
	TransformSource  string       `json:"transform_source,omitempty"`
	State            string       `json:"state"`
	StatusCode       int          `json:"status_code,omitempty"`
	Message          string       `json:"message,omitempty"`
	Metadata         PageMetadata `json:"metadata"`
	FetchedAt        *time.Time   `json:"fetched_at,omitempty"`
	Text             string       `json:"text,omitempty"`
}
