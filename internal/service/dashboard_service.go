package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
)

// DashboardService computes SLA aggregates within the caller's read scope.
type DashboardService struct {
	tickets repository.TicketRepository
	clock   clock.Clock
}

// NewDashboardService constructs the service.
func NewDashboardService(tickets repository.TicketRepository, clk clock.Clock) *DashboardService {
	if clk == nil {
		clk = clock.Real()
	}
	return &DashboardService{tickets: tickets, clock: clk}
}

// SLADashboard holds the aggregates and the instant they were computed for.
type SLADashboard struct {
	Stats      domain.TicketStats
	ComputedAt time.Time
}

// SLADashboard counts tickets per status and SLA breaches. Open breaches are
// computed against now and never persisted.
func (s *DashboardService) SLADashboard(ctx context.Context, actor domain.Actor) (*SLADashboard, error) {
	now := s.clock.Now()
	filter := scope.ResolveTicketScope(actor).Constrain(repository.TicketFilter{})
	stats, err := s.tickets.Stats(ctx, filter, now)
	if err != nil {
		return nil, translate(err, "ticket")
	}
	return &SLADashboard{Stats: *stats, ComputedAt: now}, nil
}
