package models

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Total  int          `json:"total"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Site      string              `json:"site"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
	Records   []OpportunityRecord `json:"records"`
	Stats     *RunStats           `json:"stats,omitempty"`
	Error     *ErrorDetail        `json:"error,omitempty"`
}

// CheckResponse is the response for POST /api/v1/check.
type CheckResponse struct {
	Success         bool         `json:"success"`
	LinkExists      bool         `json:"link_exists"`
	AnchorOptimized bool         `json:"anchor_optimized"`
	AnchorState     AnchorState  `json:"anchor_state"`
	Action          Action       `json:"action,omitempty"`
	AnchorText      string       `json:"anchor_text,omitempty"`
	Href            string       `json:"href,omitempty"`
	Position        string       `json:"position,omitempty"`
	Error           *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"` // "healthy" or "degraded"
	Uptime      string `json:"uptime"`
	Version     string `json:"version"`
	CachedPages int    `json:"cached_pages"`
	ActiveRuns  int    `json:"active_runs"`
}
