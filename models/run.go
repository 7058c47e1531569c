package models

// Run statuses.
const (
	RunQueued     = "queued"
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunCancelled  = "cancelled"
)

// RunJob tracks one keyword run submitted through the API.
type RunJob struct {
	ID        string
	Status    string
	Site      string
	Locale    string
	Keywords  []string
	Completed int
	Total     int
	Records   []OpportunityRecord
	Stats     *RunStats
	Error     *ErrorDetail
	CreatedAt int64
}

// Finished reports whether the run reached a terminal status.
func (j *RunJob) Finished() bool {
	switch j.Status {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}
