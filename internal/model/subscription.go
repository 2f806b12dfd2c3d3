package model

import "time"

// Subscription is a member's contract with the studio.  It is entry-based
// when RemainingEntries is set, time-based when EndDate is set, and
// unconstrained otherwise.  RemainingEntries never goes negative.
type Subscription struct {
	ID               string     // subscriptions.id
	UserID           string     // subscriptions.user_id
	OrganizationID   string     // subscriptions.organization_id
	ProductID        string     // subscriptions.product_id
	TariffName       string     // products.name (joined)
	StartDate        time.Time  // subscriptions.start_date
	EndDate          *time.Time // subscriptions.end_date (nullable)
	RemainingEntries *int       // subscriptions.remaining_entries (nullable)
	IsActive         bool       // subscriptions.is_active
}

// Profile is the member record a scanned identifier resolves to.
type Profile struct {
	ID             string `json:"id"`              // profiles.id
	OrganizationID string `json:"-"`               // profiles.organization_id
	MemberNumber   string `json:"member_number"`   // profiles.member_number
	FirstName      string `json:"first_name"`      // profiles.first_name
	LastName       string `json:"last_name"`       // profiles.last_name
	Email          string `json:"email,omitempty"` // profiles.email
}
