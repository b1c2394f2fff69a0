package notify

import "time"

// Notice is a user-facing message about an operation on the lead collection.
//
// Notices are informational: the operation that produced one has already
// finished and left the collection in a consistent state.
type Notice struct {
	ID    string `json:"id"`
	Scope string `json:"scope,omitempty"`

	Level Level `json:"level"`

	// Op is the repository operation that produced the notice (load, update, ...).
	Op     string `json:"op"`
	LeadID string `json:"lead_id,omitempty"`

	Message string `json:"message"`
	// Err carries the underlying error text for error notices.
	Err string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Success builds a success notice.
func Success(op, leadID, message string) Notice {
	return Notice{Level: LevelSuccess, Op: op, LeadID: leadID, Message: message}
}

// Info builds an informational notice.
func Info(op, leadID, message string) Notice {
	return Notice{Level: LevelInfo, Op: op, LeadID: leadID, Message: message}
}

// Failure builds an error notice. err may be nil.
func Failure(op, leadID, message string, err error) Notice {
	n := Notice{Level: LevelError, Op: op, LeadID: leadID, Message: message}
	if err != nil {
		n.Err = err.Error()
	}
	return n
}
