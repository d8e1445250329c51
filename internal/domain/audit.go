package domain

import "time"

// AuditAction tags the kind of state-changing action recorded.
type AuditAction string

const (
	AuditTicketCreated       AuditAction = "TICKET_CREATED"
	AuditTicketUpdated       AuditAction = "TICKET_UPDATED"
	AuditTicketAssigned      AuditAction = "TICKET_ASSIGNED"
	AuditTicketAutoAssigned  AuditAction = "TICKET_AUTO_ASSIGNED"
	AuditTicketStarted       AuditAction = "TICKET_STARTED"
	AuditTicketResolved      AuditAction = "TICKET_RESOLVED"
	AuditTicketRated         AuditAction = "TICKET_RATED"
	AuditTicketApproved      AuditAction = "TICKET_APPROVED"
	AuditTicketRejected      AuditAction = "TICKET_REJECTED"
	AuditTicketCommented     AuditAction = "TICKET_COMMENTED"
	AuditTicketWorkLogged    AuditAction = "TICKET_WORK_LOGGED"
	AuditNotificationSent    AuditAction = "NOTIFICATION_BROADCAST"
	AuditSettingsInvalidated AuditAction = "SETTINGS_INVALIDATED"
	AuditSystemBootstrapped  AuditAction = "SYSTEM_BOOTSTRAPPED"
)

// AuditLogEntry is an immutable record of a state-changing action.
type AuditLogEntry struct {
	ID           string
	Action       AuditAction
	ActorID      string
	TargetUserID *string
	CompanyID    string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}
