package domain

import "time"

// Escalation levels carried on action decisions and staff notifications.
// Level 2 additionally pages the on-call operator by email.
const (
	EscalationNone   = 0
	EscalationReview = 1
	EscalationAlert  = 2
)

// NotificationKind distinguishes why a staff notification was raised.
type NotificationKind string

const (
	NotifyStaffReview NotificationKind = "STAFF_REVIEW"
	NotifyStaffAlert  NotificationKind = "STAFF_ALERT"
)

// StaffNotification is one item in the operator's work queue. Resolution
// policy is up to the operator UI; the backend only records who closed it
// and when.
type StaffNotification struct {
	ID           string           `json:"id" db:"id"`
	MessageID    *string          `json:"message_id" db:"message_id"`
	PropertyCode *string          `json:"property_code" db:"property_code"`
	Kind         NotificationKind `json:"kind" db:"kind"`
	Severity     int              `json:"severity" db:"severity"`
	Title        string           `json:"title" db:"title"`
	Body         string           `json:"body" db:"body"`
	Done         bool             `json:"done" db:"done"`
	DoneBy       *string          `json:"done_by" db:"done_by"`
	DoneAt       *time.Time       `json:"done_at" db:"done_at"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
