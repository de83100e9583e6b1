package domain

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// NotificationTypeConnection tags the acknowledgement sent when a channel opens.
const NotificationTypeConnection = "connection"

// Notification is a server-pushed alert. It is never stored server-side.
type Notification struct {
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Interruptive reports whether the alert should interrupt the user.
func (n Notification) Interruptive() bool {
	return n.Severity == SeverityWarning || n.Severity == SeverityCritical
}
