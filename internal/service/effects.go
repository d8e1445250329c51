package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/events"
)

// Auditor records audit entries without blocking.
type Auditor interface {
	Record(ctx context.Context, rec audit.Record) domain.AuditLogEntry
}

// mutation describes one committed ticket change.
type mutation struct {
	action         domain.AuditAction
	event          events.EventType
	actor          domain.Actor
	ticket         *domain.Ticket
	previousStatus domain.TicketStatus
	targetUserID   *string
	metadata       map[string]any
}

// sideEffects runs the best-effort work that follows a committed mutation:
// exactly one audit entry and one event for the async subscribers.
type sideEffects struct {
	auditor    Auditor
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (s sideEffects) afterCommit(ctx context.Context, m mutation) {
	metadata := map[string]any{
		"ticket_id":  m.ticket.ID,
		"company_id": m.ticket.CompanyID,
		"status":     string(m.ticket.Status),
	}
	if m.previousStatus != "" && m.previousStatus != m.ticket.Status {
		metadata["previous_status"] = string(m.previousStatus)
	}
	for k, v := range m.metadata {
		metadata[k] = v
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Record{
			Action:       m.action,
			Actor:        m.actor,
			TargetUserID: m.targetUserID,
			CompanyID:    m.ticket.CompanyID,
			Metadata:     metadata,
		})
	}
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:             uuid.NewString(),
		Type:           m.event,
		Action:         m.action,
		Actor:          m.actor,
		Ticket:         m.ticket.Clone(),
		PreviousStatus: m.previousStatus,
		Timestamp:      m.ticket.UpdatedAt,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.Error(err),
			zap.String("ticket_id", m.ticket.ID),
			zap.String("company_id", m.ticket.CompanyID),
			zap.String("action", string(m.action)))
	}
}
