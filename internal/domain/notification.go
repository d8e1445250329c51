package domain

import "time"

// Severity grades a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}

// TargetType selects the audience of a broadcast.
type TargetType string

const (
	TargetAll      TargetType = "all"
	TargetCompany  TargetType = "company"
	TargetRole     TargetType = "role"
	TargetSpecific TargetType = "specific"
)

// Target describes who a notification is addressed to. Value holds the
// company id, role name or user id depending on Type. CompanyID scopes role
// targets and carries the owning tenant of a specific user.
type Target struct {
	Type      TargetType
	Value     string
	CompanyID string
}

// Notification is a broadcast or targeted message with a bounded lifetime.
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	Target    Target
	CompanyID string
	SenderID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the notification is past its lifetime at now.
func (n *Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}
