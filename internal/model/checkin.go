package model

import "time"

// Check-in audit statuses.
const (
	CheckinValid   = "valid"
	CheckinInvalid = "invalid"
)

// Checkin is the append-only audit row written for every check-in attempt
// that resolved a member, whatever the outcome.
type Checkin struct {
	ID             string    `json:"id"`                     // checkins.id
	UserID         string    `json:"user_id"`                // checkins.user_id
	OrganizationID string    `json:"-"`                      // checkins.organization_id
	ProcessedBy    *string   `json:"processed_by,omitempty"` // checkins.processed_by (nullable)
	Location       string    `json:"location"`               // checkins.location
	CheckedInAt    time.Time `json:"checked_in_at"`          // checkins.checked_in_at
	Status         string    `json:"status"`                 // checkins.status
}
