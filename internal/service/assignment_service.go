package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/assignment"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// AssignmentService dispatches tickets to technicians, either to an explicit
// technician or to the best scoring member of the technician pool.
type AssignmentService struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	poolCompanyID string
	effects       sideEffects
	clock         clock.Clock
	logger        *zap.Logger
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	TicketRepo              repository.TicketRepository
	UserRepo                repository.UserRepository
	TechnicianPoolCompanyID string
	Auditor                 Auditor
	Dispatcher              events.Dispatcher
	Clock                   clock.Clock
	Logger                  *zap.Logger
}

// AssignInput selects manual or automatic assignment.
type AssignInput struct {
	TechnicianID string
	Auto         bool
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &AssignmentService{
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		poolCompanyID: deps.TechnicianPoolCompanyID,
		effects:       sideEffects{auditor: deps.Auditor, dispatcher: deps.Dispatcher, logger: logger},
		clock:         clk,
		logger:        logger,
	}
}

// AssignTicket assigns ticketID. Manual assignment accepts any existing user
// id without scoring; automatic assignment picks the best scoring technician.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID string, input AssignInput) (*domain.Ticket, error) {
	if !actor.Role.CanAssign() {
		return nil, apperrors.NewForbidden("role may not assign tickets")
	}
	technicianID := strings.TrimSpace(input.TechnicianID)
	if !input.Auto && technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id is required unless auto_assign is set", nil)
	}

	ticket, err := loadTicketInScope(ctx, s.tickets, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if input.Auto {
		return s.autoAssign(ctx, actor, ticket, nil)
	}

	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, translate(err, "technician")
	}
	previous := ticket.Status
	if err := workflow.Assign(ticket, technician.ID, s.clock.Now()); err != nil {
		return nil, translate(err, "ticket")
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, translate(err, "ticket")
	}
	s.effects.afterCommit(ctx, mutation{
		action:         domain.AuditTicketAssigned,
		event:          events.EventTicketAssigned,
		actor:          actor,
		ticket:         ticket,
		previousStatus: previous,
		targetUserID:   &technician.ID,
		metadata:       map[string]any{"technician_id": technician.ID, "auto": false},
	})
	return ticket, nil
}

// autoAssign scores the technician pool against ticket using workloads read
// fresh from storage. On any error the ticket is left unchanged.
func (s *AssignmentService) autoAssign(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, extra map[string]any) (*domain.Ticket, error) {
	candidates, err := s.users.ListTechnicians(ctx, s.poolCompanyID)
	if err != nil {
		return nil, translate(err, "technician")
	}
	workloads, err := s.tickets.CountActiveByTechnician(ctx, ticket.CompanyID)
	if err != nil {
		return nil, translate(err, "ticket")
	}
	best, score, err := assignment.SelectBest(candidates, ticket, assignment.Workloads(workloads))
	if err != nil {
		return nil, translate(err, "technician")
	}

	updated := ticket.Clone()
	previous := updated.Status
	if err := workflow.Assign(updated, best.ID, s.clock.Now()); err != nil {
		return nil, translate(err, "ticket")
	}
	if err := s.tickets.Update(ctx, updated); err != nil {
		return nil, translate(err, "ticket")
	}

	metadata := map[string]any{
		"technician_id": best.ID,
		"auto":          true,
		"score":         score,
		"candidates":    len(candidates),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	s.logger.Debug("ticket auto-assigned",
		zap.String("ticket_id", updated.ID),
		zap.String("technician_id", best.ID),
		zap.Int("score", score))
	s.effects.afterCommit(ctx, mutation{
		action:         domain.AuditTicketAutoAssigned,
		event:          events.EventTicketAssigned,
		actor:          actor,
		ticket:         updated,
		previousStatus: previous,
		targetUserID:   &best.ID,
		metadata:       metadata,
	})
	return updated, nil
}
