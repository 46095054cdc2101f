package domain

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a non-blocking message for the user. Action names a follow-up
// the client may offer, e.g. "login" after the session expired.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const ActionLogin = "login"
