package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/assignment"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
	"github.com/spec-kit/helpdesk-dispatch/internal/settings"
	"github.com/spec-kit/helpdesk-dispatch/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

const maxEntryLength = 5000

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets  repository.TicketRepository
	assigner *AssignmentService
	settings settings.Reader
	effects  sideEffects
	clock    clock.Clock
	logger   *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Assigner   *AssignmentService
	Settings   settings.Reader
	Auditor    Auditor
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// TicketListFilter describes caller supplied listing filters. Scope
// restrictions are applied on top and always win.
type TicketListFilter struct {
	CompanyID      *string
	RequesterID    *string
	TechnicianID   *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Categories     []domain.TicketCategory
	ReviewStatuses []domain.ReviewStatus
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketDetailsPatch lists the metadata fields that may change outside the
// state machine. Nil fields are left untouched.
type TicketDetailsPatch struct {
	Title       *string
	Description *string
	Category    *domain.TicketCategory
	Priority    *domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	reader := deps.Settings
	if reader == nil {
		reader = settings.Static(settings.Defaults())
	}
	return &TicketService{
		tickets:  deps.TicketRepo,
		assigner: deps.Assigner,
		settings: reader,
		effects:  sideEffects{auditor: deps.Auditor, dispatcher: deps.Dispatcher, logger: logger},
		clock:    clk,
		logger:   logger,
	}
}

// CreateTicket files a new ticket for actor. When auto-assign on create is
// enabled the ticket is dispatched immediately; failing to find a technician
// leaves it New and does not fail the creation.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input workflow.CreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(actor.CompanyID) == "" {
		return nil, apperrors.NewValidationError("requester has no company", nil)
	}
	ticket, err := workflow.NewTicket(actor, input, s.clock.Now())
	if err != nil {
		return nil, translate(err, "ticket")
	}
	ticket.ID = uuid.NewString()
	ticket.ExternalKey = generateTicketKey()
	ticket.Version = 1

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, translate(err, "ticket")
	}
	s.effects.afterCommit(ctx, mutation{
		action: domain.AuditTicketCreated,
		event:  events.EventTicketCreated,
		actor:  actor,
		ticket: ticket,
		metadata: map[string]any{
			"priority":   string(ticket.Priority),
			"category":   string(ticket.Category),
			"sla_due_at": ticket.SLADueAt,
		},
	})

	if s.assigner == nil || !s.settings.Snapshot().AutoAssignOnCreate {
		return ticket, nil
	}
	assigned, err := s.assigner.autoAssign(ctx, actor, ticket, map[string]any{"trigger": "create"})
	if err != nil {
		level := s.logger.Warn
		if errors.Is(err, assignment.ErrNoEligibleTechnician) {
			level = s.logger.Info
		}
		level("auto-assign on create skipped",
			zap.Error(err),
			zap.String("ticket_id", ticket.ID),
			zap.String("company_id", ticket.CompanyID))
		return ticket, nil
	}
	return assigned, nil
}

// GetTicket returns a ticket with its comments and work log if actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.loadInScope(ctx, actor, ticketID)
}

// ListTickets returns tickets inside actor's scope matching filter.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		CompanyID:      filter.CompanyID,
		RequesterID:    filter.RequesterID,
		TechnicianID:   filter.TechnicianID,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		Categories:     filter.Categories,
		ReviewStatuses: filter.ReviewStatuses,
		SearchTerm:     filter.SearchTerm,
		CreatedFrom:    filter.CreatedFrom,
		CreatedTo:      filter.CreatedTo,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, scope.ResolveTicketScope(actor).Constrain(repoFilter))
	if err != nil {
		return nil, translate(err, "ticket")
	}
	return tickets, nil
}

// UpdateTicketDetails patches title, description, category or priority.
// Requesters may edit their own ticket while it is New; assigners may edit any
// open ticket in scope. slaDueAt is never recomputed.
func (s *TicketService) UpdateTicketDetails(ctx context.Context, actor domain.Actor, ticketID string, patch TicketDetailsPatch) (*domain.Ticket, error) {
	changed := map[string]any{}
	return s.mutate(ctx, actor, ticketID, domain.AuditTicketUpdated, events.EventTicketUpdated, changed,
		func(ticket *domain.Ticket) error {
			if ticket.IsTerminal() || ticket.Status == domain.TicketStatusClosed {
				return workflow.ErrTerminal
			}
			isRequester := ticket.RequesterID == actor.UserID
			if !actor.Role.CanAssign() && !(isRequester && ticket.Status == domain.TicketStatusNew) {
				return workflow.ErrNotPermitted
			}
			next := workflow.CreateInput{
				Title:       ticket.Title,
				Description: ticket.Description,
				Category:    ticket.Category,
				Priority:    ticket.Priority,
			}
			if patch.Title != nil {
				next.Title = *patch.Title
				changed["title"] = strings.TrimSpace(*patch.Title)
			}
			if patch.Description != nil {
				next.Description = *patch.Description
				changed["description"] = true
			}
			if patch.Category != nil {
				next.Category = *patch.Category
				changed["category"] = string(*patch.Category)
			}
			if patch.Priority != nil {
				next.Priority = *patch.Priority
				changed["priority"] = string(*patch.Priority)
			}
			if len(changed) == 0 {
				return apperrors.NewValidationError("no fields to update", nil)
			}
			if err := next.Validate(); err != nil {
				return err
			}
			ticket.Title = strings.TrimSpace(next.Title)
			ticket.Description = strings.TrimSpace(next.Description)
			ticket.Category = next.Category
			ticket.Priority = next.Priority
			ticket.UpdatedAt = s.clock.Now()
			return nil
		})
}

// TransitionStatus moves a ticket to In Progress or Resolved.
func (s *TicketService) TransitionStatus(ctx context.Context, actor domain.Actor, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	action := domain.AuditTicketUpdated
	switch next {
	case domain.TicketStatusInProgress:
		action = domain.AuditTicketStarted
	case domain.TicketStatusResolved:
		action = domain.AuditTicketResolved
	}
	meta := map[string]any{}
	return s.mutate(ctx, actor, ticketID, action, events.EventTicketStatus, meta, func(ticket *domain.Ticket) error {
		if err := workflow.Transition(ticket, actor, next, s.clock.Now()); err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusResolved {
			meta["sla_breached"] = ticket.SLABreached
		}
		return nil
	})
}

// ResolveTicket resolves a ticket and freezes its SLA breach flag.
func (s *TicketService) ResolveTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	meta := map[string]any{}
	return s.mutate(ctx, actor, ticketID, domain.AuditTicketResolved, events.EventTicketStatus, meta, func(ticket *domain.Ticket) error {
		if err := workflow.Resolve(ticket, actor, s.clock.Now()); err != nil {
			return err
		}
		meta["sla_breached"] = ticket.SLABreached
		return nil
	})
}

// RateTicket records the requester's rating and opens the review cycle.
func (s *TicketService) RateTicket(ctx context.Context, actor domain.Actor, ticketID string, rating int, feedback string) (*domain.Ticket, error) {
	meta := map[string]any{"rating": rating}
	return s.mutate(ctx, actor, ticketID, domain.AuditTicketRated, events.EventTicketRated, meta, func(ticket *domain.Ticket) error {
		return workflow.Rate(ticket, actor, rating, feedback, s.clock.Now())
	})
}

// ReviewTicket approves or rejects a ticket awaiting review.
func (s *TicketService) ReviewTicket(ctx context.Context, actor domain.Actor, ticketID string, decision workflow.ReviewDecision, notes string) (*domain.Ticket, error) {
	action := domain.AuditTicketApproved
	if decision == workflow.ReviewReject {
		action = domain.AuditTicketRejected
	}
	meta := map[string]any{"decision": string(decision)}
	return s.mutate(ctx, actor, ticketID, action, events.EventTicketReviewed, meta, func(ticket *domain.Ticket) error {
		return workflow.Review(ticket, actor, decision, notes, s.clock.Now())
	})
}

// AddComment appends a comment. Comments are accepted in every status.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, text string) (*domain.Comment, error) {
	text, err := validateEntry("comment", text)
	if err != nil {
		return nil, err
	}
	ticket, err := s.loadInScope(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		AuthorID:  actor.UserID,
		Text:      text,
		CreatedAt: now,
	}
	if err := s.tickets.AppendComment(ctx, comment); err != nil {
		return nil, translate(err, "ticket")
	}
	ticket.Comments = append(ticket.Comments, *comment)
	ticket.UpdatedAt = now
	s.effects.afterCommit(ctx, mutation{
		action:   domain.AuditTicketCommented,
		event:    events.EventTicketCommented,
		actor:    actor,
		ticket:   ticket,
		metadata: map[string]any{"comment_id": comment.ID},
	})
	return comment, nil
}

// AddWorkLog appends a technician work note.
func (s *TicketService) AddWorkLog(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.WorkLogEntry, error) {
	note, err := validateEntry("note", note)
	if err != nil {
		return nil, err
	}
	ticket, err := s.loadInScope(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanLogWork(ticket, actor) {
		return nil, apperrors.NewForbidden("only the assigned technician or an assigner may log work")
	}
	now := s.clock.Now()
	entry := &domain.WorkLogEntry{
		ID:           uuid.NewString(),
		TicketID:     ticket.ID,
		TechnicianID: actor.UserID,
		Note:         note,
		CreatedAt:    now,
	}
	if err := s.tickets.AppendWorkLog(ctx, entry); err != nil {
		return nil, translate(err, "ticket")
	}
	ticket.WorkLog = append(ticket.WorkLog, *entry)
	ticket.UpdatedAt = now
	s.effects.afterCommit(ctx, mutation{
		action:   domain.AuditTicketWorkLogged,
		event:    events.EventTicketWorkLogged,
		actor:    actor,
		ticket:   ticket,
		metadata: map[string]any{"work_log_id": entry.ID},
	})
	return entry, nil
}

// mutate loads the ticket in scope, applies fn, persists with a version check
// and runs the side effects. meta may be filled by fn.
func (s *TicketService) mutate(
	ctx context.Context,
	actor domain.Actor,
	ticketID string,
	action domain.AuditAction,
	event events.EventType,
	meta map[string]any,
	fn func(*domain.Ticket) error,
) (*domain.Ticket, error) {
	ticket, err := s.loadInScope(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	previous := ticket.Status
	if err := fn(ticket); err != nil {
		return nil, translate(err, "ticket")
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, translate(err, "ticket")
	}
	s.effects.afterCommit(ctx, mutation{
		action:         action,
		event:          event,
		actor:          actor,
		ticket:         ticket,
		previousStatus: previous,
		metadata:       meta,
	})
	return ticket, nil
}

// loadInScope hides tickets outside the actor's scope as NOT_FOUND.
func (s *TicketService) loadInScope(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return loadTicketInScope(ctx, s.tickets, actor, ticketID)
}

func loadTicketInScope(ctx context.Context, tickets repository.TicketRepository, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewValidationError("ticket id is required", nil)
	}
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, translate(err, "ticket")
	}
	if !scope.CanAccessTicket(actor, ticket) {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

func validateEntry(field, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError(field+" is required", nil)
	}
	if utf8.RuneCountInString(text) > maxEntryLength {
		return "", apperrors.NewValidationError(field+" is too long", map[string]any{"max_length": maxEntryLength})
	}
	return text, nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
