// Package sla derives resolution deadlines from ticket priority.
//
// The deadline is fixed once at creation. Breach is evaluated lazily: frozen
// on the ticket at resolution and computed on read for dashboards.
package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// DefaultWindow applies to priorities without a mapping.
const DefaultWindow = 24 * time.Hour

var windows = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityCritical: 1 * time.Hour,
	domain.TicketPriorityHigh:     4 * time.Hour,
	domain.TicketPriorityMedium:   12 * time.Hour,
	domain.TicketPriorityLow:      24 * time.Hour,
}

// Window returns the resolution window for priority.
func Window(priority domain.TicketPriority) time.Duration {
	if w, ok := windows[priority]; ok {
		return w
	}
	return DefaultWindow
}

// ComputeDueAt returns the SLA deadline for a ticket created at createdAt.
func ComputeDueAt(createdAt time.Time, priority domain.TicketPriority) time.Time {
	return createdAt.Add(Window(priority))
}

// IsBreached reports whether now is at or past dueAt.
func IsBreached(dueAt, now time.Time) bool {
	return !now.Before(dueAt)
}

// OpenBreached counts still-open tickets whose deadline has passed at now.
// The tickets themselves are not modified.
func OpenBreached(tickets []domain.Ticket, now time.Time) int {
	count := 0
	for i := range tickets {
		if tickets[i].IsOpen() && IsBreached(tickets[i].SLADueAt, now) {
			count++
		}
	}
	return count
}
