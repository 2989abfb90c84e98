package models

// Version is reported by /health and the version command.
const Version = "0.1.0"

// EntityResponse wraps a single entity snapshot.
type EntityResponse struct {
	Success bool         `json:"success"`
	Entity  *EntityView  `json:"entity,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// EntityListResponse is the response for GET /api/v1/entities.
type EntityListResponse struct {
	Success  bool         `json:"success"`
	Entities []EntityView `json:"entities"`
	Status   string       `json:"status,omitempty"`
}

// FetchReport describes the outcome of one fetch cycle of one entity.
type FetchReport struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	StatusCode    int          `json:"status_code,omitempty"`
	Changed       bool         `json:"changed"`
	LayoutDrifted bool         `json:"layout_drifted,omitempty"`
	Text          string       `json:"text,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// FetchResponse is the response for POST /api/v1/entities/:id/fetch.
type FetchResponse struct {
	Success bool `json:"success"`
	FetchReport
}

// FetchAllResponse is the response for POST /api/v1/fetch-all.
type FetchAllResponse struct {
	Success bool          `json:"success"`
	Results []FetchReport `json:"results"`
	Status  string        `json:"status,omitempty"`
}

// TextResponse is the response for GET /api/v1/entities/:id/text.
type TextResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Mode    string `json:"mode"`
	Text    string `json:"text"`
}

// StatusResponse carries the board status line after a board-level action.
type StatusResponse struct {
	Success bool         `json:"success"`
	Status  string       `json:"status"`
	Count   int          `json:"count"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Entities int    `json:"entities"`
	Engine   string `json:"engine"`
	Version  string `json:"version"`
}
