package models

import "time"

// Action is the remediation recommended for a (keyword, source, target) triple.
type Action string

const (
	ActionAddLink        Action = "AddLink"
	ActionOptimizeAnchor Action = "OptimizeAnchor"
)

// AnchorState describes the anchor text of the link found on the source page.
type AnchorState string

const (
	AnchorNotApplicable AnchorState = "NotApplicable"
	AnchorNotOptimized  AnchorState = "NotOptimized"
	// AnchorOptimized is computed by the classifier but never emitted in a record.
	AnchorOptimized AnchorState = "Optimized"
)

// OpportunityRecord is one actionable internal-linking recommendation.
// Records are created by the classifier and never modified afterwards.
type OpportunityRecord struct {
	Keyword     string      `json:"keyword"`
	SourceURL   string      `json:"source_url"`
	TargetURL   string      `json:"target_url"`
	Action      Action      `json:"action"`
	AnchorState AnchorState `json:"anchor_state"`

	// AnchorText is the text of the existing link (OptimizeAnchor only).
	AnchorText string `json:"anchor_text,omitempty"`

	// LinkPosition is where on the source page the existing link sits
	// (OptimizeAnchor only), e.g. "content" or "navigation".
	LinkPosition string `json:"link_position,omitempty"`

	// CheckFailed is true when the source page could not be fetched or
	// parsed. The record still says AddLink: failures are treated as
	// "no link found".
	CheckFailed bool `json:"check_failed,omitempty"`
}

// LinkCheckOutcome is the result of inspecting one source page for a link
// to one target page.
type LinkCheckOutcome struct {
	LinkExists      bool
	AnchorOptimized bool

	// AnchorText, Href and Position describe the first matching anchor.
	AnchorText string
	Href       string
	Position   string

	// Err is set when the page could not be fetched or parsed. LinkExists
	// and AnchorOptimized are then both false.
	Err error
}

// AnchorState maps the outcome onto the anchor state vocabulary.
func (o LinkCheckOutcome) AnchorState() AnchorState {
	switch {
	case !o.LinkExists:
		return AnchorNotApplicable
	case o.AnchorOptimized:
		return AnchorOptimized
	default:
		return AnchorNotOptimized
	}
}

// SearchOutcome is the tagged result of one site-restricted search.
type SearchOutcome struct {
	Keyword string
	Query   string
	URLs    []string
	Err     error
}

// OK reports whether the search succeeded. A successful search may still
// return zero URLs.
func (s SearchOutcome) OK() bool {
	return s.Err == nil
}

// RunStats summarises one pass over a keyword list.
type RunStats struct {
	Keywords          int           `json:"keywords"`
	SearchesFailed    int           `json:"searches_failed"`
	CandidatesChecked int           `json:"candidates_checked"`
	ChecksFailed      int           `json:"checks_failed"`
	OptimizedLinks    int           `json:"optimized_links"`
	AddLink           int           `json:"add_link"`
	OptimizeAnchor    int           `json:"optimize_anchor"`
	Duration          time.Duration `json:"duration_ns"`
}

// RunResult is the in-memory outcome of a run: every record in keyword
// order plus the run statistics.
type RunResult struct {
	Site    string              `json:"site"`
	Records []OpportunityRecord `json:"records"`
	Stats   RunStats            `json:"stats"`
}
