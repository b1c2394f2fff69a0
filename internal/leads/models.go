package leads

import (
	"strings"
	"time"
)

// Lead is a single sales lead row.
//
// Scope invariant: UserID is set on every record; whether reads are filtered
// by it is a deployment decision (see Options.ScopeByUser).
//
// Identity: ID is either a store-assigned id or a temporary id (TempIDPrefix)
// while the record only exists locally as a draft.
type Lead struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Basic info
	LeadDate        string       `json:"lead_date" db:"lead_date"` // YYYY-MM-DD
	Name            string       `json:"name" db:"name"`
	SalespersonName string       `json:"salesperson_name" db:"salesperson_name"`
	LeadSource      LeadSource   `json:"lead_source" db:"lead_source"`
	OtherSource     *string      `json:"other_source,omitempty" db:"other_source"`
	Phone           string       `json:"phone" db:"phone"`
	Email           string       `json:"email" db:"email"`
	Country         string       `json:"country" db:"country"`
	City            string       `json:"city" db:"city"`
	ClientType      ClientType   `json:"client_type" db:"client_type"`
	ServicePitch    ServicePitch `json:"service_pitch" db:"service_pitch"`

	// Activity tracking
	FirstMessageSent bool    `json:"first_message_sent" db:"first_message_sent"`
	ReplyReceived    bool    `json:"reply_received" db:"reply_received"`
	Seen             bool    `json:"seen" db:"seen"`
	Interested       bool    `json:"interested" db:"interested"`
	FollowUpNeeded   bool    `json:"follow_up_needed" db:"follow_up_needed"`
	FollowUpDate     *string `json:"follow_up_date,omitempty" db:"follow_up_date"` // YYYY-MM-DD

	// Proof
	ScreenshotURL      *string `json:"screenshot_url,omitempty" db:"screenshot_url"`
	ScreenshotFileName *string `json:"screenshot_file_name,omitempty" db:"screenshot_file_name"`
	Notes              string  `json:"notes" db:"notes"`

	// Outcome
	Status          LeadStatus  `json:"status" db:"status"`
	DealValue       *float64    `json:"deal_value,omitempty" db:"deal_value"`
	ReasonLost      *ReasonLost `json:"reason_lost,omitempty" db:"reason_lost"`
	OtherReasonLost *string     `json:"other_reason_lost,omitempty" db:"other_reason_lost"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TempIDPrefix marks ids generated locally for drafts.
const TempIDPrefix = "temp-"

// DefaultUserID owns leads when no per-user scope is configured.
const DefaultUserID = "00000000-0000-0000-0000-000000000000"

// DateLayout is the wire format of lead_date and follow_up_date.
const DateLayout = "2006-01-02"

// IsDraftID reports whether id is a temporary (not yet persisted) id.
func IsDraftID(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

// IsDraft reports whether the lead has never been persisted.
func (l Lead) IsDraft() bool { return IsDraftID(l.ID) }

// Invalid reports a lead without screenshot proof.
func (l Lead) Invalid() bool { return l.ScreenshotURL == nil || *l.ScreenshotURL == "" }

// Deal returns the deal value, 0 when unset.
func (l Lead) Deal() float64 {
	if l.DealValue == nil {
		return 0
	}
	return *l.DealValue
}

// clone deep-copies pointer fields so callers never share state with the collection.
func (l Lead) clone() Lead {
	out := l
	out.OtherSource = cloneString(l.OtherSource)
	out.FollowUpDate = cloneString(l.FollowUpDate)
	out.ScreenshotURL = cloneString(l.ScreenshotURL)
	out.ScreenshotFileName = cloneString(l.ScreenshotFileName)
	out.OtherReasonLost = cloneString(l.OtherReasonLost)
	if l.DealValue != nil {
		v := *l.DealValue
		out.DealValue = &v
	}
	if l.ReasonLost != nil {
		v := *l.ReasonLost
		out.ReasonLost = &v
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type LeadSource string

const (
	SourceGoogleMaps LeadSource = "google_maps"
	SourceInstagram  LeadSource = "instagram"
	SourceFacebook   LeadSource = "facebook"
	SourceWhatsApp   LeadSource = "whatsapp"
	SourceLinkedIn   LeadSource = "linkedin"
	SourceOther      LeadSource = "other"
)

func (s LeadSource) Valid() bool {
	switch s {
	case SourceGoogleMaps, SourceInstagram, SourceFacebook, SourceWhatsApp, SourceLinkedIn, SourceOther:
		return true
	default:
		return false
	}
}

type LeadStatus string

const (
	StatusNew        LeadStatus = "new"
	StatusReplied    LeadStatus = "replied"
	StatusInterested LeadStatus = "interested"
	StatusClosed     LeadStatus = "closed"
	StatusLost       LeadStatus = "lost"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusReplied, StatusInterested, StatusClosed, StatusLost:
		return true
	default:
		return false
	}
}

// Active reports statuses still in the pipeline.
func (s LeadStatus) Active() bool {
	return s == StatusNew || s == StatusReplied || s == StatusInterested
}

type ReasonLost string

const (
	ReasonPrice   ReasonLost = "price"
	ReasonNoReply ReasonLost = "no_reply"
	ReasonFake    ReasonLost = "fake"
	ReasonOther   ReasonLost = "other"
)

func (r ReasonLost) Valid() bool {
	switch r {
	case ReasonPrice, ReasonNoReply, ReasonFake, ReasonOther:
		return true
	default:
		return false
	}
}

type ClientType string

const (
	ClientIndividualAgent ClientType = "individual_agent"
	ClientBrokerage       ClientType = "brokerage"
	ClientDeveloper       ClientType = "developer"
)

func (c ClientType) Valid() bool {
	switch c {
	case ClientIndividualAgent, ClientBrokerage, ClientDeveloper:
		return true
	default:
		return false
	}
}

type ServicePitch string

const (
	PitchAIAutomation ServicePitch = "ai_automation"
	PitchWebsite      ServicePitch = "website"
	PitchFullPackage  ServicePitch = "full_package"
)

func (p ServicePitch) Valid() bool {
	switch p {
	case PitchAIAutomation, PitchWebsite, PitchFullPackage:
		return true
	default:
		return false
	}
}
