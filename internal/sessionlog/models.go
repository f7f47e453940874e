// Package sessionlog pulls, stores, and assesses the activity logs of a
// finished firefighter session. The review gate reads its bundles: a
// security reviewer signs off on what the session actually did, compared
// against what the request promised.
package sessionlog

import (
	"time"

	"firegate/internal/connector"
	"firegate/internal/domain"
)

// CategoryLog is the pull result for one log category of one request.
// An empty Records slice with a zero FetchError is a valid "no activity"
// result and counts toward completeness.
type CategoryLog struct {
	RequestID string                `json:"request_id"`
	Category  domain.LogCategory    `json:"category"`
	Records   []connector.LogRecord `json:"records"`
	PulledAt  time.Time             `json:"pulled_at"`

	// FetchError holds the last pull failure for this category. A
	// non-empty value means the category is incomplete and will be
	// retried.
	FetchError string `json:"fetch_error,omitempty"`
}

// Clone returns a deep copy.
func (c *CategoryLog) Clone() *CategoryLog {
	cp := *c
	cp.Records = make([]connector.LogRecord, len(c.Records))
	for i, r := range c.Records {
		cp.Records[i] = r
		if r.Fields != nil {
			cp.Records[i].Fields = make(map[string]string, len(r.Fields))
			for k, v := range r.Fields {
				cp.Records[i].Fields[k] = v
			}
		}
	}
	return &cp
}

// Bundle is everything the review gate sees for one request: the pulled
// categories plus the heuristic assessment.
type Bundle struct {
	RequestID  string                              `json:"request_id"`
	Categories map[domain.LogCategory]*CategoryLog `json:"categories"`
	Complete   bool                                `json:"complete"`
	Assessment Assessment                          `json:"assessment"`
}

// Assessment is the automated pre-screen attached to a bundle. It never
// blocks sign-off; it directs the reviewer's attention.
type Assessment struct {
	RiskScore int `json:"risk_score"`
	// AlignmentScore grades how much of the recorded transaction usage
	// was declared up front; 100 means every executed code was listed.
	AlignmentScore int      `json:"activity_alignment_score"`
	Flags          []string `json:"flags,omitempty"`
}
