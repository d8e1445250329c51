// Package scope maps an actor to the set of tickets and notification
// audiences it may touch.
package scope

import (
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
)

// Predicate restricts ticket queries. Nil fields are unrestricted, so the zero
// value matches every ticket.
type Predicate struct {
	CompanyID    *string
	RequesterID  *string
	TechnicianID *string
}

// Unrestricted reports whether the predicate matches every ticket.
func (p Predicate) Unrestricted() bool {
	return p.CompanyID == nil && p.RequesterID == nil && p.TechnicianID == nil
}

// Matches reports whether ticket falls inside the predicate.
func (p Predicate) Matches(ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	if p.CompanyID != nil && ticket.CompanyID != *p.CompanyID {
		return false
	}
	if p.RequesterID != nil && ticket.RequesterID != *p.RequesterID {
		return false
	}
	if p.TechnicianID != nil && (ticket.TechnicianID == nil || *ticket.TechnicianID != *p.TechnicianID) {
		return false
	}
	return true
}

// Constrain overlays the predicate on caller supplied filters. Restricted
// fields always win, so query parameters can narrow a scope but never widen it.
func (p Predicate) Constrain(filter repository.TicketFilter) repository.TicketFilter {
	if p.CompanyID != nil {
		filter.CompanyID = ptr(*p.CompanyID)
	}
	if p.RequesterID != nil {
		filter.RequesterID = ptr(*p.RequesterID)
	}
	if p.TechnicianID != nil {
		filter.TechnicianID = ptr(*p.TechnicianID)
	}
	return filter
}

// ResolveTicketScope returns the read predicate for actor.
//
// Super Admin reads across tenants but sends broadcasts only within its own
// tenant (see ResolveBroadcastScope). Unknown roles fall back to the company
// scoped predicate.
func ResolveTicketScope(actor domain.Actor) Predicate {
	switch actor.Role {
	case domain.RoleEmployee:
		return Predicate{RequesterID: ptr(actor.UserID), CompanyID: ptr(actor.CompanyID)}
	case domain.RoleTechnician:
		return Predicate{TechnicianID: ptr(actor.UserID)}
	case domain.RoleSystemAdmin, domain.RoleSuperAdmin:
		return Predicate{}
	default:
		return Predicate{CompanyID: ptr(actor.CompanyID)}
	}
}

// CanAccessTicket reports whether actor's read scope includes ticket.
func CanAccessTicket(actor domain.Actor, ticket *domain.Ticket) bool {
	return ResolveTicketScope(actor).Matches(ticket)
}

// BroadcastScope describes where an actor may send notifications.
type BroadcastScope struct {
	Allowed bool
	// CompanyID pins every target to one tenant. Nil means any tenant.
	CompanyID *string
}

// ResolveBroadcastScope returns the write scope for administrator broadcasts.
func ResolveBroadcastScope(actor domain.Actor) BroadcastScope {
	switch actor.Role {
	case domain.RoleSystemAdmin:
		return BroadcastScope{Allowed: true}
	case domain.RoleSuperAdmin, domain.RoleAdmin:
		return BroadcastScope{Allowed: true, CompanyID: ptr(actor.CompanyID)}
	default:
		return BroadcastScope{}
	}
}

// AuditScope returns the company restriction for audit log reads, or false
// when the actor may not read the audit log at all.
func AuditScope(actor domain.Actor) (*string, bool) {
	switch actor.Role {
	case domain.RoleSystemAdmin:
		return nil, true
	case domain.RoleSuperAdmin, domain.RoleAdmin:
		return ptr(actor.CompanyID), true
	default:
		return nil, false
	}
}

func ptr(s string) *string {
	return &s
}
