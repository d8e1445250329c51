// Package workflow is the ticket state machine. Functions validate a
// transition against the ticket and the acting user and apply it in place;
// they perform no I/O.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/sla"
)

var (
	// ErrTerminal is returned for any transition on a Closed/Approved ticket.
	ErrTerminal = errors.New("ticket is closed and approved")
	// ErrInvalidTransition is returned when the current state does not allow the change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotPermitted is returned when the actor may not perform the transition.
	ErrNotPermitted = errors.New("actor not permitted for transition")
	// ErrInvalidInput is returned for malformed transition input.
	ErrInvalidInput = errors.New("invalid transition input")
)

// CreateInput carries the requester supplied fields of a new ticket.
type CreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
}

// Validate checks required fields.
func (in CreateInput) Validate() error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > 200 {
		return fmt.Errorf("%w: title must be at most 200 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.Category != "" && !in.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	return nil
}

// NewTicket builds a New ticket for requester with its SLA deadline fixed at now.
func NewTicket(requester domain.Actor, in CreateInput, now time.Time) (*domain.Ticket, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	category := in.Category
	if category == "" {
		category = domain.CategoryOther
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	return &domain.Ticket{
		CompanyID:    requester.CompanyID,
		RequesterID:  requester.UserID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Category:     category,
		Priority:     priority,
		Status:       domain.TicketStatusNew,
		ReviewStatus: domain.ReviewStatusNone,
		SLADueAt:     sla.ComputeDueAt(now, priority),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Assign attaches technicianID and moves the ticket to Assigned.
func Assign(ticket *domain.Ticket, technicianID string, now time.Time) error {
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	if strings.TrimSpace(technicianID) == "" {
		return fmt.Errorf("%w: technician is required", ErrInvalidInput)
	}
	switch ticket.Status {
	case domain.TicketStatusNew, domain.TicketStatusAssigned, domain.TicketStatusInProgress:
	default:
		return fmt.Errorf("%w: cannot assign a %s ticket", ErrInvalidTransition, ticket.Status)
	}
	id := technicianID
	ticket.TechnicianID = &id
	ticket.Status = domain.TicketStatusAssigned
	ticket.UpdatedAt = now
	return nil
}

// StartWork moves an Assigned ticket to In Progress.
func StartWork(ticket *domain.Ticket, actor domain.Actor, now time.Time) error {
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	if !isAssignedTechnician(ticket, actor) && !actor.Role.CanAssign() {
		return ErrNotPermitted
	}
	if ticket.Status != domain.TicketStatusAssigned {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, ticket.Status, domain.TicketStatusInProgress)
	}
	ticket.Status = domain.TicketStatusInProgress
	ticket.UpdatedAt = now
	return nil
}

// Resolve marks the ticket Resolved and freezes the SLA breach flag at now.
func Resolve(ticket *domain.Ticket, actor domain.Actor, now time.Time) error {
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	if !isAssignedTechnician(ticket, actor) && !actor.Role.CanAssign() {
		return ErrNotPermitted
	}
	switch ticket.Status {
	case domain.TicketStatusAssigned, domain.TicketStatusInProgress:
	default:
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, ticket.Status, domain.TicketStatusResolved)
	}
	resolvedAt := now
	ticket.Status = domain.TicketStatusResolved
	ticket.SLABreached = sla.IsBreached(ticket.SLADueAt, now)
	ticket.ResolvedAt = &resolvedAt
	ticket.UpdatedAt = now
	return nil
}

// Transition applies a generic status change. Only In Progress and Resolved
// are reachable this way; assignment and review have dedicated actions.
func Transition(ticket *domain.Ticket, actor domain.Actor, next domain.TicketStatus, now time.Time) error {
	switch next {
	case domain.TicketStatusInProgress:
		return StartWork(ticket, actor, now)
	case domain.TicketStatusResolved:
		return Resolve(ticket, actor, now)
	}
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, ticket.Status, next)
}

// Rate records the requester's rating and opens the review cycle.
func Rate(ticket *domain.Ticket, actor domain.Actor, rating int, feedback string, now time.Time) error {
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	if actor.UserID != ticket.RequesterID {
		return ErrNotPermitted
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if ticket.Status != domain.TicketStatusResolved {
		return fmt.Errorf("%w: only resolved tickets can be rated", ErrInvalidTransition)
	}
	r := rating
	ticket.Rating = &r
	if fb := strings.TrimSpace(feedback); fb != "" {
		ticket.Feedback = &fb
	} else {
		ticket.Feedback = nil
	}
	ticket.ReviewStatus = domain.ReviewStatusPending
	ticket.UpdatedAt = now
	return nil
}

// ReviewDecision is an administrator's verdict on a rated ticket.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

// Review closes or reopens a ticket awaiting review. Rejection returns the
// ticket to Assigned when a technician is attached, otherwise to New, and
// leaves reviewStatus at Rejected.
func Review(ticket *domain.Ticket, actor domain.Actor, decision ReviewDecision, notes string, now time.Time) error {
	if ticket.IsTerminal() {
		return ErrTerminal
	}
	if !actor.Role.IsAdministrator() {
		return ErrNotPermitted
	}
	if ticket.ReviewStatus != domain.ReviewStatusPending {
		return fmt.Errorf("%w: ticket is not pending review", ErrInvalidTransition)
	}
	switch decision {
	case ReviewApprove:
		closedAt := now
		ticket.Status = domain.TicketStatusClosed
		ticket.ReviewStatus = domain.ReviewStatusApproved
		ticket.ClosedAt = &closedAt
	case ReviewReject:
		if ticket.HasTechnician() {
			ticket.Status = domain.TicketStatusAssigned
		} else {
			ticket.Status = domain.TicketStatusNew
		}
		ticket.ReviewStatus = domain.ReviewStatusRejected
		ticket.ResolvedAt = nil
	default:
		return fmt.Errorf("%w: unknown review action %q", ErrInvalidInput, decision)
	}
	if n := strings.TrimSpace(notes); n != "" {
		ticket.ReviewNotes = &n
	}
	ticket.UpdatedAt = now
	return nil
}

// CanLogWork reports whether actor may append work log entries.
func CanLogWork(ticket *domain.Ticket, actor domain.Actor) bool {
	return isAssignedTechnician(ticket, actor) || actor.Role.CanAssign()
}

func isAssignedTechnician(ticket *domain.Ticket, actor domain.Actor) bool {
	return ticket.HasTechnician() && *ticket.TechnicianID == actor.UserID
}
