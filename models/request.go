package models

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// Keywords are processed in order. Required.
	Keywords []string `json:"keywords" binding:"required,min=1,max=500"`

	// Site overrides the configured site restriction.
	Site string `json:"site,omitempty"`

	// Locale selects the label set used by exports: "en" or "fr".
	Locale string `json:"locale,omitempty" binding:"omitempty,oneof=en fr"`
}

// CheckRequest is the payload for POST /api/v1/check.
type CheckRequest struct {
	Keyword      string `json:"keyword" binding:"required"`
	TargetURL    string `json:"target_url" binding:"required,url"`
	CandidateURL string `json:"candidate_url" binding:"required,url"`
}
