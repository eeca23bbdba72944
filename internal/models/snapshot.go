package models

import "time"

// Snapshot is the full output of one refresh cycle. Once published it is
// never modified; the scheduler replaces it wholesale.
type Snapshot struct {
	ID            string                 `json:"id"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   time.Time              `json:"completed_at"`
	RecordsA      int                    `json:"records_a"`
	RecordsB      int                    `json:"records_b"`
	Pairs         []MatchedPair          `json:"pairs"`
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	SourceErrors  map[Venue]string       `json:"source_errors,omitempty"`
}

// Duration is how long the cycle took.
func (s *Snapshot) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}
