package models

import "time"

// SchedulerSource is the log source used for entries written by the scheduler
// itself rather than by a per-source scraper.
const SchedulerSource = "scheduler"

// LogAction is the kind of step recorded in the scrape audit log.
type LogAction string

const (
	ActionStart    LogAction = "start"
	ActionFetch    LogAction = "fetch"
	ActionParse    LogAction = "parse"
	ActionInsert   LogAction = "insert"
	ActionSkip     LogAction = "skip"
	ActionError    LogAction = "error"
	ActionComplete LogAction = "complete"
)

// Valid reports whether a is one of the known actions.
func (a LogAction) Valid() bool {
	switch a {
	case ActionStart, ActionFetch, ActionParse, ActionInsert, ActionSkip, ActionError, ActionComplete:
		return true
	}
	return false
}

// ScrapeLog is one append-only audit entry of a scrape run.
type ScrapeLog struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	Action    LogAction    `json:"action"`
	Message   string       `json:"message"`
	Metadata  *LogMetadata `json:"metadata,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// LogMetadata holds the structured details attached to a log entry.
type LogMetadata struct {
	Count    *int   `json:"count,omitempty"`
	Added    *int   `json:"added,omitempty"`
	Skipped  *int   `json:"skipped,omitempty"`
	Errors   *int   `json:"errors,omitempty"`
	Sources  *int   `json:"sources,omitempty"`
	Bytes    *int   `json:"bytes,omitempty"`
	Error    string `json:"error,omitempty"`
	URL      string `json:"url,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Title    string `json:"title,omitempty"`
}

// SourceStats aggregates the log entries of one source over a trailing window.
// Added and Skipped are summed from complete entries only.
type SourceStats struct {
	Source  string     `json:"source"`
	Added   int        `json:"added"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
	LastRun *time.Time `json:"last_run,omitempty"`
}

// IntPtr is a small helper for populating optional metadata counters.
func IntPtr(v int) *int {
	return &v
}
