package events

import (
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketUpdated     EventType = "ticket_updated"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketStatus      EventType = "ticket_status_changed"
	EventTicketRated       EventType = "ticket_rated"
	EventTicketReviewed    EventType = "ticket_reviewed"
	EventTicketCommented   EventType = "ticket_commented"
	EventTicketWorkLogged  EventType = "ticket_work_logged"
	EventNotificationAdded EventType = "notification_added"
)

// TicketEventTypes lists every event that carries a ticket.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketAssigned,
	EventTicketStatus,
	EventTicketRated,
	EventTicketReviewed,
	EventTicketCommented,
	EventTicketWorkLogged,
}

// Event represents a committed domain change. Ticket is a private copy taken
// after the write; handlers may read it freely.
type Event struct {
	ID             string
	Type           EventType
	Action         domain.AuditAction
	Actor          domain.Actor
	Ticket         *domain.Ticket
	PreviousStatus domain.TicketStatus
	Notification   *domain.Notification
	Timestamp      time.Time
}

// TicketID returns the id of the carried ticket, if any.
func (e Event) TicketID() string {
	if e.Ticket == nil {
		return ""
	}
	return e.Ticket.ID
}

// CompanyID returns the tenant the event belongs to.
func (e Event) CompanyID() string {
	switch {
	case e.Ticket != nil:
		return e.Ticket.CompanyID
	case e.Notification != nil:
		return e.Notification.CompanyID
	}
	return ""
}
