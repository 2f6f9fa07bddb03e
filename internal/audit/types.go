package audit

import "time"

// Entry is the caller-facing payload for one audit event. Zero-value fields
// are defaulted at append time; everything else is stored verbatim.
type Entry struct {
	Timestamp    time.Time
	UserID       *uint64
	UserEmail    string
	Action       string
	Resource     string
	IPAddress    string
	UserAgent    string
	RequestID    string
	Success      bool
	ErrorMessage string
	Details      map[string]any
}

// Filter narrows audit log queries. All provided fields are ANDed; the date
// range is inclusive on both ends.
type Filter struct {
	UserID    *uint64
	UserEmail string // Case-insensitive substring match.
	Action    string
	Resource  string
	Success   *bool
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// Stats aggregates event counts for dashboard summaries.
type Stats struct {
	Total        int64            `json:"total"`
	ByAction     map[string]int64 `json:"by_action"`
	ByResource   map[string]int64 `json:"by_resource"`
	SuccessCount int64            `json:"success_count"`
	FailureCount int64            `json:"failure_count"`
}
