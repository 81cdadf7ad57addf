package domain

import "time"

// Default auto-send gate thresholds. A (property, FAQ key) pair becomes
// eligible for unattended sending only after enough unedited approvals.
const (
	DefaultAutoSendMinTotal = 5
	DefaultAutoSendMinRate  = 0.8
)

// AutoSendStats tracks operator feedback for one (property, FAQ key) pair.
type AutoSendStats struct {
	ID            string    `json:"id" db:"id"`
	PropertyCode  string    `json:"property_code" db:"property_code"`
	FAQKey        string    `json:"faq_key" db:"faq_key"`
	TotalCount    int       `json:"total_count" db:"total_count"`
	ApprovedCount int       `json:"approved_count" db:"approved_count"`
	EditedCount   int       `json:"edited_count" db:"edited_count"`
	ApprovalRate  float64   `json:"approval_rate" db:"approval_rate"`
	Eligible      bool      `json:"eligible" db:"eligible"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Recompute re-derives the approval rate and eligibility from the raw
// counters. Call after every counter change, inside the same transaction.
func (s *AutoSendStats) Recompute(minTotal int, minRate float64) {
	if s.TotalCount > 0 {
		s.ApprovalRate = float64(s.ApprovedCount) / float64(s.TotalCount)
	} else {
		s.ApprovalRate = 0
	}
	s.Eligible = s.TotalCount >= minTotal && s.ApprovalRate >= minRate
}
