package audit

import "time"

// Event is an append-only record of a change made to a lead through the API.
//
// Invariants:
// - Events are never updated or deleted.
// - Scope (the lead collection owner) and Type are always set.
// - Actor and IP are best-effort; audit failures never block lead operations.
type Event struct {
	ID    string    `json:"id" db:"id"`
	Scope string    `json:"scope" db:"scope"`
	Type  EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	LeadID string `json:"lead_id,omitempty" db:"lead_id"`
	// Field is the edited lead field for lead_updated events.
	Field string `json:"field,omitempty" db:"field"`

	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventLeadCreated        EventType = "lead_created"
	EventLeadUpdated        EventType = "lead_updated"
	EventLeadDeleted        EventType = "lead_deleted"
	EventScreenshotUploaded EventType = "screenshot_uploaded"
	EventLeadsExported      EventType = "leads_exported"
)
